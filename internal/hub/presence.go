package hub

import (
	"Memoria/internal/event"
	"Memoria/internal/repo"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const presenceNotifyTimeout = 5 * time.Second

// PresenceTracker turns the registry's reference-counted connection
// edges into presence notifications. Only the 0->1 and 1->0 count
// transitions reach it; a second device connecting or a non-final
// disconnect emits nothing. Notification is best-effort: a friend with
// no live connection simply receives nothing, there is no queuing or
// replay.
//
// Transitions for one user are fanned out strictly in the order they
// were enqueued, through a per-user FIFO drained by a single goroutine.
// The friends lookup does I/O, so without the queue a fast
// connect/disconnect flap could announce offline before online and
// leave every friend believing the user is online.
type PresenceTracker struct {
	registry *Registry
	oracle   repo.RelationshipRepository
	logger   *zap.Logger

	mu     sync.Mutex
	queues map[int64]*transitionQueue
}

type transitionQueue struct {
	transitions []bool
	draining    bool
}

func NewPresenceTracker(registry *Registry, oracle repo.RelationshipRepository, logger *zap.Logger) *PresenceTracker {
	return &PresenceTracker{
		registry: registry,
		oracle:   oracle,
		logger:   logger,
		queues:   make(map[int64]*transitionQueue),
	}
}

// HandleOnline announces to the user's accepted friends that the user
// came online. Callers invoke it only for a true 0->1 edge; it returns
// immediately, the fan-out runs on the user's drainer goroutine.
func (p *PresenceTracker) HandleOnline(userID int64) {
	p.enqueue(userID, true)
}

// HandleOffline announces to the user's accepted friends that the user
// went offline. Callers invoke it only for a true 1->0 edge.
func (p *PresenceTracker) HandleOffline(userID int64) {
	p.enqueue(userID, false)
}

// IsOnline is a point-in-time read of the user's aggregate state.
func (p *PresenceTracker) IsOnline(userID int64) bool {
	return p.registry.IsOnline(userID)
}

func (p *PresenceTracker) enqueue(userID int64, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.queues[userID]
	if !ok {
		q = &transitionQueue{}
		p.queues[userID] = q
	}
	q.transitions = append(q.transitions, online)

	if !q.draining {
		q.draining = true
		go p.drain(userID, q)
	}
}

// drain delivers one user's transitions in FIFO order. Exactly one
// drainer runs per user at a time; it retires itself once the queue is
// empty.
func (p *PresenceTracker) drain(userID int64, q *transitionQueue) {
	for {
		p.mu.Lock()
		if len(q.transitions) == 0 {
			q.draining = false
			delete(p.queues, userID)
			p.mu.Unlock()
			return
		}
		online := q.transitions[0]
		q.transitions = q.transitions[1:]
		p.mu.Unlock()

		p.notifyFriends(userID, online)
	}
}

func (p *PresenceTracker) notifyFriends(userID int64, online bool) {
	// Detached from any connection lifetime: the transition already
	// happened and must be announced even if the triggering socket is
	// gone.
	ctx, cancel := context.WithTimeout(context.Background(), presenceNotifyTimeout)
	defer cancel()

	friends, err := p.oracle.FriendsOf(ctx, userID)
	if err != nil {
		p.logger.Error("presence fan-out skipped: friends lookup failed",
			zap.Int64("user_id", userID),
			zap.Bool("online", online),
			zap.Error(err),
		)
		return
	}

	ev := event.NewPresenceChanged(userID, online)

	delivered := 0
	for _, friendID := range friends {
		for _, sink := range p.registry.ConnectionsOf(friendID) {
			if sink.Deliver(ev) {
				delivered++
			} else {
				p.logger.Debug("presence delivery skipped",
					zap.Int64("user_id", userID),
					zap.String("conn_id", sink.ConnID()),
				)
			}
		}
	}

	p.logger.Debug("presence transition announced",
		zap.Int64("user_id", userID),
		zap.Bool("online", online),
		zap.Int("friends", len(friends)),
		zap.Int("delivered", delivered),
	)
}
