package hub

import (
	"Memoria/internal/event"
	"Memoria/internal/repo"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

// Hub wires the relay core together: it owns the connection registry,
// the channel manager, the presence tracker and the relay engine, runs
// the register/unregister loop and the inbound worker pool, and
// upgrades HTTP requests into clients.
type Hub struct {
	registry *Registry
	channels *ChannelManager
	presence *PresenceTracker
	relay    *Relay
	logger   *zap.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewHub(messages repo.MessageRepository, oracle repo.RelationshipRepository, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	registry := NewRegistry()
	channels := NewChannelManager()
	gate := NewGate(oracle)

	h := &Hub{
		registry:   registry,
		channels:   channels,
		presence:   NewPresenceTracker(registry, oracle, logger),
		relay:      NewRelay(registry, channels, gate, messages, logger),
		logger:     logger,
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make(chan inboundMessage, 4096), // buffer for burst handling
		ctx:        ctx,
		cancel:     cancel,
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

// run serializes connect/disconnect bookkeeping. Presence fan-out does
// I/O, so only the transition detection happens here; the tracker
// queues each transition and fans out on its own goroutine, in per-user
// order.
func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	first, err := h.registry.Register(c)
	if err != nil {
		// Invariant violation: the transport handed us a connection id
		// that is already bound to another user. Abort this connection,
		// not the process.
		h.logger.Error("INVARIANT VIOLATION: rejecting rebound connection",
			zap.String("conn_id", c.ID),
			zap.Int64("user_id", c.userID),
			zap.Error(err),
		)
		c.Close()
		return
	}

	h.logger.Info("client registered",
		zap.String("conn_id", c.ID),
		zap.Int64("user_id", c.userID),
		zap.Bool("first_connection", first),
	)

	if first {
		h.presence.HandleOnline(c.userID)
	}
}

func (h *Hub) removeClient(c *Client) {
	userID, joined, last, ok := h.registry.Unregister(c.ID)
	if !ok {
		c.Close()
		return
	}

	// Cascade: a dead connection must not linger in any channel, or
	// later broadcasts would try to deliver to it.
	for _, groupID := range joined {
		h.channels.Leave(groupID, c.ID)
	}

	c.Close()

	h.logger.Info("client removed",
		zap.String("conn_id", c.ID),
		zap.Int64("user_id", userID),
		zap.Int("channels_left", len(joined)),
		zap.Bool("last_connection", last),
	)

	if last {
		h.presence.HandleOffline(userID)
	}
}

// handleEvent dispatches one inbound client event. Each event runs on a
// context detached from the connection: a disconnect mid-flight does
// not cancel an already-accepted action.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	ctx := context.Background()

	switch ev.Event {
	case event.EventMessageSend:
		var p event.SendMessagePayload
		if !h.unmarshal(ev, &p, c) {
			return
		}
		h.relay.HandleSend(ctx, c, p)

	case event.EventMessageEdit:
		var p event.EditMessagePayload
		if !h.unmarshal(ev, &p, c) {
			return
		}
		h.relay.HandleEdit(ctx, c, p)

	case event.EventMessageDelete:
		var p event.DeleteMessagePayload
		if !h.unmarshal(ev, &p, c) {
			return
		}
		h.relay.HandleDelete(ctx, c, p)

	case event.EventChannelJoin:
		var p event.ChannelPayload
		if !h.unmarshal(ev, &p, c) {
			return
		}
		h.relay.HandleJoin(ctx, c, p)

	case event.EventChannelLeave:
		var p event.ChannelPayload
		if !h.unmarshal(ev, &p, c) {
			return
		}
		h.relay.HandleLeave(c, p)

	default:
		h.logger.Warn("unknown event type",
			zap.String("event", ev.Event),
			zap.String("conn_id", c.ID),
		)
	}
}

func (h *Hub) unmarshal(ev event.WsEvent, target any, c *Client) bool {
	if err := json.Unmarshal(ev.Payload, target); err != nil {
		h.logger.Warn("malformed payload",
			zap.String("event", ev.Event),
			zap.String("conn_id", c.ID),
			zap.Error(err),
		)
		c.Deliver(event.NewActionDenied(ev.Event, ReasonInvalidPayload))
		return false
	}
	return true
}

// IsOnline exposes the presence read for the HTTP surface.
func (h *Hub) IsOnline(userID int64) bool {
	return h.presence.IsOnline(userID)
}

// Registry accessors for the monitor service.
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) Channels() *ChannelManager {
	return h.channels
}

func (h *Hub) Stop() {
	h.cancel()

	// Close all client connections
	for _, cb := range h.registry.connShards {
		cb.RLock()
		for _, entry := range cb.conns {
			if c, ok := entry.sink.(*Client); ok {
				c.Close()
			}
		}
		cb.RUnlock()
	}

	// h.inbound stays open: a read pump that lost the shutdown race may
	// still attempt one last handoff, and a send on a closed channel
	// would panic. Workers exit on the cancelled context instead.
	h.wg.Wait()
}

var (
	websocketUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
)

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "http://localhost:4200":
		return true
	case "https://www.memoria.social":
		return true
	default:
		return false
	}
}

// ServeWS upgrades an authenticated request into a relay client. The
// caller has already resolved the user identity from the token.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, conn, h)
}
