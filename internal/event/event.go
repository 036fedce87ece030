package event

import "encoding/json"

// Client to Server
const (
	EventMessageSend   = "message:send"
	EventMessageEdit   = "message:edit"
	EventMessageDelete = "message:delete"
	EventChannelJoin   = "channel:join"
	EventChannelLeave  = "channel:leave"
)

// Server to Client
const (
	EventPresenceChanged = "presence:changed"
	EventMessageReceived = "message:received"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventActionDenied    = "action:denied"
)

// WsEvent is the wire envelope for everything crossing the socket, in
// both directions. Payload carries the variant-specific body; Event is
// the discriminator and must be one of the constants above.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
