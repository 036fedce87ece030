package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status lifecycle. A message is never removed from the
// collection; Delete turns it into a tombstone so the id stays valid
// for clients correlating delivered events.
const (
	StatusSent    = 1
	StatusEdited  = 2
	StatusDeleted = 3
)

// Message represents a relayed chat message in MongoDB. Exactly one of
// ReceiverID (private message) or GroupID (group message) is set.
type Message struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderID   int64              `json:"senderId" bson:"sender_id"`
	ReceiverID *int64             `json:"receiverId" bson:"receiver_id,omitempty"`
	GroupID    *string            `json:"groupId" bson:"group_id,omitempty"`
	Body       string             `json:"body" bson:"body"`
	Status     int                `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	EditedAt   *time.Time         `json:"editedAt" bson:"edited_at"`
}

// IsGroup reports whether the message targets a group channel.
func (m *Message) IsGroup() bool {
	return m.GroupID != nil
}

// IsTombstone reports whether the message has been deleted.
func (m *Message) IsTombstone() bool {
	return m.Status == StatusDeleted
}
