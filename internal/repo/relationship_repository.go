package repo

import (
	"Memoria/internal/db"
	"Memoria/internal/model"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const relationshipReadTimeout = 5 * time.Second

// RelationshipRepository answers relationship questions against state
// owned by the surrounding CRUD service. Reads are strongly consistent
// and never cached here: acceptance can be revoked at any moment and
// the next authorization check must see it.
type RelationshipRepository interface {
	// IsAccepted reports whether an accepted friendship edge exists
	// between the two users, in either direction.
	IsAccepted(ctx context.Context, userA, userB int64) (bool, error)

	// IsMember reports whether the user belongs to the group.
	IsMember(ctx context.Context, userID int64, groupID string) (bool, error)

	// FriendsOf returns the accepted friends of a user, for presence
	// notification fan-out.
	FriendsOf(ctx context.Context, userID int64) ([]int64, error)
}

type relationshipRepository struct {
	friendships *db.Repository[model.Friendship]
	members     *db.Repository[model.GroupMember]
	logger      *zap.Logger
}

func NewRelationshipRepository(friendships *db.Repository[model.Friendship], members *db.Repository[model.GroupMember], logger *zap.Logger) RelationshipRepository {
	return &relationshipRepository{
		friendships: friendships,
		members:     members,
		logger:      logger,
	}
}

func (r *relationshipRepository) IsAccepted(ctx context.Context, userA, userB int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, relationshipReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("accepted", true).
		Or(
			bson.M{"user_a": userA, "user_b": userB},
			bson.M{"user_a": userB, "user_b": userA},
		).
		Build()

	accepted, err := r.friendships.Exists(ctx, filter)
	if err != nil {
		r.logger.Error("friendship lookup failed",
			zap.Int64("user_a", userA),
			zap.Int64("user_b", userB),
			zap.Error(err),
		)
		return false, fmt.Errorf("friendship lookup failed: %w", err)
	}
	return accepted, nil
}

func (r *relationshipRepository) IsMember(ctx context.Context, userID int64, groupID string) (bool, error) {
	if groupID == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, relationshipReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("user_id", userID).
		Eq("group_id", groupID).
		Build()

	member, err := r.members.Exists(ctx, filter)
	if err != nil {
		r.logger.Error("membership lookup failed",
			zap.Int64("user_id", userID),
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return false, fmt.Errorf("membership lookup failed: %w", err)
	}
	return member, nil
}

func (r *relationshipRepository) FriendsOf(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, relationshipReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("accepted", true).
		Or(
			bson.M{"user_a": userID},
			bson.M{"user_b": userID},
		).
		Build()

	edges, err := r.friendships.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("friends lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("friends lookup failed: %w", err)
	}

	friends := make([]int64, 0, len(edges))
	for _, edge := range edges {
		if edge.UserA == userID {
			friends = append(friends, edge.UserB)
		} else {
			friends = append(friends, edge.UserA)
		}
	}
	return friends, nil
}
