package hub

import (
	"Memoria/internal/event"
	"Memoria/internal/model"
	"sync"
)

type channelBucket struct {
	sync.RWMutex
	channels map[string]map[string]Sink // groupID -> connID -> sink
}

// ChannelManager maintains the logical broadcast groups. A channel is
// created lazily on first join and garbage-collected when its last
// subscriber leaves; there is no persistent channel state. It performs
// no authorization and persists nothing - both are the caller's job.
type ChannelManager struct {
	shards [shardCount]*channelBucket
}

func NewChannelManager() *ChannelManager {
	cm := &ChannelManager{}
	for i := 0; i < shardCount; i++ {
		cm.shards[i] = &channelBucket{
			channels: make(map[string]map[string]Sink),
		}
	}
	return cm
}

// Join subscribes a connection to a channel. Joining twice is a no-op.
func (cm *ChannelManager) Join(groupID string, s Sink) {
	b := cm.shards[getShard(groupID)]
	b.Lock()
	defer b.Unlock()

	subs, ok := b.channels[groupID]
	if !ok {
		subs = make(map[string]Sink)
		b.channels[groupID] = subs
	}
	subs[s.ConnID()] = s
}

// Leave removes a connection from a channel. Leaving a channel the
// connection never joined is a no-op.
func (cm *ChannelManager) Leave(groupID, connID string) {
	b := cm.shards[getShard(groupID)]
	b.Lock()
	defer b.Unlock()

	subs, ok := b.channels[groupID]
	if !ok {
		return
	}
	delete(subs, connID)

	if len(subs) == 0 {
		delete(b.channels, groupID)
	}
}

// Broadcast delivers the event to every connection currently subscribed
// to the channel and returns how many deliveries succeeded. Subscribers
// are snapshotted under RLock and delivered to without holding it; a
// failed recipient never blocks the rest of the fan-out.
func (cm *ChannelManager) Broadcast(groupID string, ev event.WsEvent) int {
	b := cm.shards[getShard(groupID)]

	b.RLock()
	subs, ok := b.channels[groupID]
	if !ok || len(subs) == 0 {
		b.RUnlock()
		return 0
	}

	sinks := make([]Sink, 0, len(subs))
	for _, s := range subs {
		sinks = append(sinks, s)
	}
	b.RUnlock()

	delivered := 0
	for _, s := range sinks {
		if s.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the current subscriber count of a channel.
func (cm *ChannelManager) Subscribers(groupID string) int {
	b := cm.shards[getShard(groupID)]
	b.RLock()
	defer b.RUnlock()
	return len(b.channels[groupID])
}

// Contains reports whether a connection is subscribed to a channel.
func (cm *ChannelManager) Contains(groupID, connID string) bool {
	b := cm.shards[getShard(groupID)]
	b.RLock()
	defer b.RUnlock()

	subs, ok := b.channels[groupID]
	if !ok {
		return false
	}
	_, subscribed := subs[connID]
	return subscribed
}

// Snapshot returns channel info for the monitor API.
func (cm *ChannelManager) Snapshot() []model.ChannelInfo {
	channels := make([]model.ChannelInfo, 0)
	for _, b := range cm.shards {
		b.RLock()
		for groupID, subs := range b.channels {
			channels = append(channels, model.ChannelInfo{
				GroupID:     groupID,
				Subscribers: len(subs),
			})
		}
		b.RUnlock()
	}
	return channels
}
