package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/coinduel/backend/internal/events"
)

// StartEventSubscriber subscribes to the game event channels and fans the
// events out over WebSocket. Queue and session events are routed only to the
// involved players; round events go to everyone watching the pool.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, events.ChannelQueue, events.ChannelSession, events.ChannelRound)
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] Event subscriber started")
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				dispatch(hub, msg)
			}
		}
	}()
}

func dispatch(hub *Hub, msg *redis.Message) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		log.Printf("[WS] Invalid event payload on %s: %v", msg.Channel, err)
		return
	}

	var eventType string
	json.Unmarshal(payload["type"], &eventType)

	// Re-wrap as a flat message for clients
	out := map[string]interface{}{"type": eventType}
	for k, v := range payload {
		if k != "type" {
			out[k] = v
		}
	}

	switch msg.Channel {
	case events.ChannelQueue:
		var entry struct {
			UserID      string `json:"user_id"`
			MatchedWith string `json:"matched_with"`
		}
		json.Unmarshal(payload["entry"], &entry)
		if entry.UserID != "" {
			hub.SendToUser(entry.UserID, out)
		}

	case events.ChannelSession:
		var session struct {
			Player1ID string `json:"player1_id"`
			Player2ID string `json:"player2_id"`
		}
		json.Unmarshal(payload["session"], &session)
		if session.Player1ID != "" {
			hub.SendToUser(session.Player1ID, out)
		}
		if session.Player2ID != "" {
			hub.SendToUser(session.Player2ID, out)
		}

	case events.ChannelRound:
		hub.Broadcast(out)
	}
}
