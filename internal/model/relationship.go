package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friendship is a friendship edge between two users, written by the
// surrounding CRUD service. The relay only ever reads these documents.
// The edge is stored directed (requester -> addressee) but is treated
// as undirected once accepted.
type Friendship struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserA     int64              `json:"userA" bson:"user_a"`
	UserB     int64              `json:"userB" bson:"user_b"`
	Accepted  bool               `json:"accepted" bson:"accepted"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// GroupMember records membership of a user in a group chat. Read-only
// to the relay, same as Friendship.
type GroupMember struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID   int64              `json:"userId" bson:"user_id"`
	GroupID  string             `json:"groupId" bson:"group_id"`
	JoinedAt time.Time          `json:"joinedAt" bson:"joined_at"`
}
