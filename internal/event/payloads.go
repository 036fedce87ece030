package event

import (
	"encoding/json"
	"time"
)

// -----------------------------------------------------------------
// Client -> Server payloads
// -----------------------------------------------------------------

// SendMessagePayload accompanies message:send. Exactly one of
// ReceiverID (private) or GroupID (group) must be set.
type SendMessagePayload struct {
	ReceiverID *int64  `json:"receiverId,omitempty"`
	GroupID    *string `json:"groupId,omitempty"`
	Body       string  `json:"body"`
}

// EditMessagePayload accompanies message:edit.
type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// DeleteMessagePayload accompanies message:delete.
type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

// ChannelPayload accompanies channel:join and channel:leave.
type ChannelPayload struct {
	GroupID string `json:"groupId"`
}

// -----------------------------------------------------------------
// Server -> Client payloads
// -----------------------------------------------------------------

type PresenceChangedPayload struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

type MessageReceivedPayload struct {
	MessageID  string  `json:"messageId"`
	SenderID   int64   `json:"senderId"`
	ReceiverID *int64  `json:"receiverId,omitempty"`
	GroupID    *string `json:"groupId,omitempty"`
	Body       string  `json:"body"`
	SentAt     int64   `json:"sentAt"`
}

type MessageEditedPayload struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
	EditedAt  int64  `json:"editedAt"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

type ActionDeniedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// -----------------------------------------------------------------
// Constructors - each returns a ready-to-deliver envelope
// -----------------------------------------------------------------

func NewPresenceChanged(userID int64, online bool) WsEvent {
	return envelope(EventPresenceChanged, PresenceChangedPayload{
		UserID: userID,
		Online: online,
	})
}

func NewMessageReceived(messageID string, senderID int64, receiverID *int64, groupID *string, body string, sentAt time.Time) WsEvent {
	return envelope(EventMessageReceived, MessageReceivedPayload{
		MessageID:  messageID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		GroupID:    groupID,
		Body:       body,
		SentAt:     sentAt.Unix(),
	})
}

func NewMessageEdited(messageID, body string, editedAt time.Time) WsEvent {
	return envelope(EventMessageEdited, MessageEditedPayload{
		MessageID: messageID,
		Body:      body,
		EditedAt:  editedAt.Unix(),
	})
}

func NewMessageDeleted(messageID string) WsEvent {
	return envelope(EventMessageDeleted, MessageDeletedPayload{
		MessageID: messageID,
	})
}

func NewActionDenied(action, reason string) WsEvent {
	return envelope(EventActionDenied, ActionDeniedPayload{
		Action: action,
		Reason: reason,
	})
}

func envelope(name string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{
		Event:   name,
		Payload: raw,
	}
}
