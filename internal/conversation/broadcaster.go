// ABOUTME: In-memory fan-out of conversation state changes to observers
// ABOUTME: Non-blocking publish; slow subscribers miss changes and re-read the snapshot

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// ChangeKind names the part of the state a mutation touched.
type ChangeKind string

const (
	ChangeConversations ChangeKind = "conversations"
	ChangeCurrent       ChangeKind = "current"
	ChangeMessages      ChangeKind = "messages"
	ChangeContent       ChangeKind = "content"
	ChangeSources       ChangeKind = "sources"
	ChangeFollowUps     ChangeKind = "follow_ups"
	ChangeSealed        ChangeKind = "sealed"
	ChangeStatus        ChangeKind = "status"
	ChangeError         ChangeKind = "error"
	ChangeActivity      ChangeKind = "activity"
	ChangeReset         ChangeKind = "reset"
)

// Change is one committed mutation together with the state it produced.
// State is a private copy; receivers may keep it.
type Change struct {
	Kind  ChangeKind
	State State
}

// Broadcaster provides in-memory pub/sub for state changes.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan Change // subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan Change),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns a channel that receives changes
// and a subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan Change, string) {
	subID := uuid.New().String()
	ch := make(chan Change, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends a change to all subscribers.
// Non-blocking: changes are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(change Change) {
	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- change:
		default:
			b.logger.Debug("dropped change for slow subscriber",
				"sub_id", id,
				"kind", change.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, exists := b.subscribers[subID]
	if !exists {
		return
	}

	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
// Later subscriptions receive an already-closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
