package hub

import (
	"Memoria/internal/model"
	"Memoria/internal/repo"
	"context"
)

// Denial reasons surfaced to the initiating connection.
const (
	ReasonNotFriends     = "not_friends"
	ReasonNotMember      = "not_member"
	ReasonNotAuthor      = "not_author"
	ReasonNotFound       = "not_found"
	ReasonInvalidPayload = "invalid_payload"
	ReasonInternal       = "internal_error"
)

// Decision is the outcome of an authorization predicate. Denials are
// ordinary control flow, never errors: the relay converts them into an
// action:denied notice to the initiator and nothing else.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

func denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Gate validates relay actions against the relationship oracle. Its
// predicates are side-effect free; errors are oracle I/O failures, not
// denials.
type Gate struct {
	oracle repo.RelationshipRepository
}

func NewGate(oracle repo.RelationshipRepository) *Gate {
	return &Gate{oracle: oracle}
}

// CanMessage allows a private message iff an accepted friendship exists
// between the two users, in either direction.
func (g *Gate) CanMessage(ctx context.Context, senderID, receiverID int64) (Decision, error) {
	accepted, err := g.oracle.IsAccepted(ctx, senderID, receiverID)
	if err != nil {
		return denied(ReasonInternal), err
	}
	if !accepted {
		return denied(ReasonNotFriends), nil
	}
	return allowed, nil
}

// CanPostToGroup allows posting (and channel subscription) iff a
// membership record exists. A missing group and a missing membership
// are indistinguishable to the caller, so group existence never leaks
// to non-members.
func (g *Gate) CanPostToGroup(ctx context.Context, userID int64, groupID string) (Decision, error) {
	member, err := g.oracle.IsMember(ctx, userID, groupID)
	if err != nil {
		return denied(ReasonInternal), err
	}
	if !member {
		return denied(ReasonNotMember), nil
	}
	return allowed, nil
}

// CanMutate allows edit/delete only for the message author. There is no
// moderator override.
func (g *Gate) CanMutate(userID int64, msg *model.Message) Decision {
	if msg == nil || msg.SenderID != userID {
		return denied(ReasonNotAuthor)
	}
	return allowed
}
