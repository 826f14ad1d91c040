package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/coinduel/backend/internal/models"
)

// Redis pub/sub channels carrying row-change notifications. Payloads are full
// row snapshots; consumers must treat them as hints and re-read the
// authoritative row (delivery is at-least-once and may reorder).
const (
	ChannelQueue   = "queue_events"
	ChannelSession = "session_events"
	ChannelRound   = "round_events"
)

// Event types
const (
	TypeQueueMatched   = "queue_matched"
	TypeQueueCancelled = "queue_cancelled"
	TypeSessionCreated = "session_created"
	TypeSessionFlipped = "session_flipped"
	TypeRoundStarted   = "round_started"
	TypeRoundFlipping  = "round_flipping"
	TypeRoundCompleted = "round_completed"
	TypeRoundCancelled = "round_cancelled"
	TypeBetPlaced      = "bet_placed"
)

// Notifier publishes row-change events to Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a notifier. A nil Redis client yields a no-op notifier
// so callers don't have to guard every publish.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) publish(ctx context.Context, channel string, payload map[string]interface{}) {
	if n == nil || n.rdb == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] marshal failed for channel %s: %v", channel, err)
		return
	}
	if subs, err := n.rdb.Publish(ctx, channel, b).Result(); err != nil {
		log.Printf("[EVENTS] publish to %s failed: %v", channel, err)
	} else {
		log.Printf("[EVENTS] published %s to %s (subscribers=%d)", payload["type"], channel, subs)
	}
}

// PublishQueueEvent notifies a queue entry's owner (and match partner) of a
// status change on their entry
func (n *Notifier) PublishQueueEvent(ctx context.Context, eventType string, entry *models.QueueEntry) {
	n.publish(ctx, ChannelQueue, map[string]interface{}{
		"type":  eventType,
		"entry": entry,
	})
}

// PublishSessionEvent notifies both participants of a session transition
func (n *Notifier) PublishSessionEvent(ctx context.Context, eventType string, session *models.GameSession) {
	n.publish(ctx, ChannelSession, map[string]interface{}{
		"type":    eventType,
		"session": session,
	})
}

// PublishRoundEvent notifies all pool watchers of a round transition
func (n *Notifier) PublishRoundEvent(ctx context.Context, eventType string, round *models.MultiplayerRound) {
	n.publish(ctx, ChannelRound, map[string]interface{}{
		"type":  eventType,
		"round": round,
	})
}

// PublishBetEvent notifies all pool watchers of a new or increased bet
func (n *Notifier) PublishBetEvent(ctx context.Context, round *models.MultiplayerRound, bet *models.MultiplayerBet) {
	n.publish(ctx, ChannelRound, map[string]interface{}{
		"type":  TypeBetPlaced,
		"round": round,
		"bet":   bet,
	})
}
