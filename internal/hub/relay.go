package hub

import (
	"Memoria/internal/event"
	"Memoria/internal/model"
	"Memoria/internal/repo"
	"context"
	"time"

	"go.uber.org/zap"
)

// Relay orchestrates persistence and fan-out for every authorized
// action. It is the only component touching both the authorization gate
// and the delivery side. Denials and not-found results go to the
// initiating connection only; a per-recipient delivery failure is
// logged and skipped, never aborting the rest of a fan-out.
type Relay struct {
	registry *Registry
	channels *ChannelManager
	gate     *Gate
	messages repo.MessageRepository
	logger   *zap.Logger
}

func NewRelay(registry *Registry, channels *ChannelManager, gate *Gate, messages repo.MessageRepository, logger *zap.Logger) *Relay {
	return &Relay{
		registry: registry,
		channels: channels,
		gate:     gate,
		messages: messages,
		logger:   logger,
	}
}

// -----------------------------------------------------------------
// Send
// -----------------------------------------------------------------

// HandleSend processes message:send for both private and group targets.
func (r *Relay) HandleSend(ctx context.Context, from Sink, p event.SendMessagePayload) {
	if p.Body == "" || (p.ReceiverID == nil) == (p.GroupID == nil) {
		r.deny(from, event.EventMessageSend, ReasonInvalidPayload)
		return
	}

	if p.GroupID != nil {
		r.sendGroup(ctx, from, *p.GroupID, p.Body)
		return
	}
	r.sendPrivate(ctx, from, *p.ReceiverID, p.Body)
}

func (r *Relay) sendPrivate(ctx context.Context, from Sink, receiverID int64, body string) {
	senderID := from.UserID()

	decision, err := r.gate.CanMessage(ctx, senderID, receiverID)
	if err != nil {
		r.logger.Error("private send authorization failed",
			zap.Int64("sender_id", senderID),
			zap.Int64("receiver_id", receiverID),
			zap.Error(err),
		)
	}
	if !decision.Allowed {
		r.deny(from, event.EventMessageSend, decision.Reason)
		return
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: &receiverID,
		Body:       body,
		Status:     model.StatusSent,
		CreatedAt:  time.Now(),
	}

	id, err := r.messages.InsertMessage(ctx, msg)
	if err != nil {
		r.deny(from, event.EventMessageSend, ReasonInternal)
		return
	}

	ev := event.NewMessageReceived(id, senderID, &receiverID, nil, body, msg.CreatedAt)

	// The sender's own other devices get the message too, so every
	// device of both parties converges on the same conversation.
	r.deliverToUser(senderID, ev)
	if receiverID != senderID {
		r.deliverToUser(receiverID, ev)
	}
}

func (r *Relay) sendGroup(ctx context.Context, from Sink, groupID, body string) {
	senderID := from.UserID()

	decision, err := r.gate.CanPostToGroup(ctx, senderID, groupID)
	if err != nil {
		r.logger.Error("group send authorization failed",
			zap.Int64("sender_id", senderID),
			zap.String("group_id", groupID),
			zap.Error(err),
		)
	}
	if !decision.Allowed {
		r.deny(from, event.EventMessageSend, decision.Reason)
		return
	}

	msg := &model.Message{
		SenderID:  senderID,
		GroupID:   &groupID,
		Body:      body,
		Status:    model.StatusSent,
		CreatedAt: time.Now(),
	}

	id, err := r.messages.InsertMessage(ctx, msg)
	if err != nil {
		r.deny(from, event.EventMessageSend, ReasonInternal)
		return
	}

	ev := event.NewMessageReceived(id, senderID, nil, &groupID, body, msg.CreatedAt)
	delivered := r.channels.Broadcast(groupID, ev)

	r.logger.Debug("group message relayed",
		zap.String("message_id", id),
		zap.String("group_id", groupID),
		zap.Int("delivered", delivered),
	)
}

// -----------------------------------------------------------------
// Edit
// -----------------------------------------------------------------

// HandleEdit processes message:edit. A tombstoned message, an unknown
// id, and a lost race against a concurrent delete all surface as
// not_found to the initiator; no edited event is emitted in any of
// those cases.
func (r *Relay) HandleEdit(ctx context.Context, from Sink, p event.EditMessagePayload) {
	if p.MessageID == "" || p.Body == "" {
		r.deny(from, event.EventMessageEdit, ReasonInvalidPayload)
		return
	}

	msg, err := r.messages.FindByID(ctx, p.MessageID)
	if err != nil {
		r.deny(from, event.EventMessageEdit, ReasonInternal)
		return
	}
	if msg == nil || msg.IsTombstone() {
		r.deny(from, event.EventMessageEdit, ReasonNotFound)
		return
	}

	if decision := r.gate.CanMutate(from.UserID(), msg); !decision.Allowed {
		r.deny(from, event.EventMessageEdit, decision.Reason)
		return
	}

	now := time.Now()
	ok, err := r.messages.UpdateStatus(ctx, p.MessageID,
		[]int{model.StatusSent, model.StatusEdited},
		model.StatusEdited, &p.Body, &now)
	if err != nil {
		r.deny(from, event.EventMessageEdit, ReasonInternal)
		return
	}
	if !ok {
		// Lost the race against a concurrent delete.
		r.deny(from, event.EventMessageEdit, ReasonNotFound)
		return
	}

	r.fanOutToRecipients(msg, event.NewMessageEdited(p.MessageID, p.Body, now))
}

// -----------------------------------------------------------------
// Delete
// -----------------------------------------------------------------

// HandleDelete processes message:delete. The message becomes a
// tombstone (status=deleted, body cleared) rather than being removed,
// so the deleted event can carry an id recipients already know.
func (r *Relay) HandleDelete(ctx context.Context, from Sink, p event.DeleteMessagePayload) {
	if p.MessageID == "" {
		r.deny(from, event.EventMessageDelete, ReasonInvalidPayload)
		return
	}

	msg, err := r.messages.FindByID(ctx, p.MessageID)
	if err != nil {
		r.deny(from, event.EventMessageDelete, ReasonInternal)
		return
	}
	if msg == nil || msg.IsTombstone() {
		r.deny(from, event.EventMessageDelete, ReasonNotFound)
		return
	}

	if decision := r.gate.CanMutate(from.UserID(), msg); !decision.Allowed {
		r.deny(from, event.EventMessageDelete, decision.Reason)
		return
	}

	cleared := ""
	ok, err := r.messages.UpdateStatus(ctx, p.MessageID,
		[]int{model.StatusSent, model.StatusEdited},
		model.StatusDeleted, &cleared, nil)
	if err != nil {
		r.deny(from, event.EventMessageDelete, ReasonInternal)
		return
	}
	if !ok {
		r.deny(from, event.EventMessageDelete, ReasonNotFound)
		return
	}

	r.fanOutToRecipients(msg, event.NewMessageDeleted(p.MessageID))
}

// -----------------------------------------------------------------
// Channel join / leave
// -----------------------------------------------------------------

// HandleJoin subscribes the connection to a group channel after a
// membership check.
func (r *Relay) HandleJoin(ctx context.Context, from Sink, p event.ChannelPayload) {
	if p.GroupID == "" {
		r.deny(from, event.EventChannelJoin, ReasonInvalidPayload)
		return
	}

	decision, err := r.gate.CanPostToGroup(ctx, from.UserID(), p.GroupID)
	if err != nil {
		r.logger.Error("channel join authorization failed",
			zap.Int64("user_id", from.UserID()),
			zap.String("group_id", p.GroupID),
			zap.Error(err),
		)
	}
	if !decision.Allowed {
		r.deny(from, event.EventChannelJoin, decision.Reason)
		return
	}

	r.channels.Join(p.GroupID, from)
	r.registry.TrackJoin(from.ConnID(), p.GroupID)
}

// HandleLeave unsubscribes the connection. Leaving needs no
// authorization and is idempotent.
func (r *Relay) HandleLeave(from Sink, p event.ChannelPayload) {
	if p.GroupID == "" {
		r.deny(from, event.EventChannelLeave, ReasonInvalidPayload)
		return
	}

	r.channels.Leave(p.GroupID, from.ConnID())
	r.registry.TrackLeave(from.ConnID(), p.GroupID)
}

// -----------------------------------------------------------------
// Fan-out helpers
// -----------------------------------------------------------------

func (r *Relay) deny(from Sink, action, reason string) {
	if !from.Deliver(event.NewActionDenied(action, reason)) {
		r.logger.Debug("denial notice dropped: connection gone",
			zap.String("conn_id", from.ConnID()),
			zap.String("action", action),
			zap.String("reason", reason),
		)
	}
}

func (r *Relay) deliverToUser(userID int64, ev event.WsEvent) {
	for _, sink := range r.registry.ConnectionsOf(userID) {
		if !sink.Deliver(ev) {
			r.logger.Debug("delivery skipped: connection unavailable",
				zap.Int64("user_id", userID),
				zap.String("conn_id", sink.ConnID()),
				zap.String("event", ev.Event),
			)
		}
	}
}

// fanOutToRecipients routes a mutation event to the original message's
// audience: the channel for group messages, both parties' connections
// for private ones.
func (r *Relay) fanOutToRecipients(msg *model.Message, ev event.WsEvent) {
	if msg.IsGroup() {
		r.channels.Broadcast(*msg.GroupID, ev)
		return
	}

	r.deliverToUser(msg.SenderID, ev)
	if msg.ReceiverID != nil && *msg.ReceiverID != msg.SenderID {
		r.deliverToUser(*msg.ReceiverID, ev)
	}
}
