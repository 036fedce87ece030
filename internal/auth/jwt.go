package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingToken = errors.New("missing token")

// Claims is the payload the external auth service signs into every
// token. The relay only consumes tokens, it never issues them.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseToken validates a signed token and extracts the claims. HMAC
// only; a token signed with any other method is rejected outright.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// UserIDFromRequest resolves the authenticated user for a websocket
// upgrade. Browsers cannot set headers on a websocket handshake, so the
// token is accepted from the Authorization header or a ?token= query
// parameter.
func UserIDFromRequest(r *http.Request, secret string) (int64, error) {
	tokenString := ""

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
