package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	broadcastChannel    = "ws:broadcast"
	userChannelPattern  = "ws:user:*"
	userChannelPrefix   = "ws:user:"
)

// Relay subscribes to the fleet-wide broadcast channel and the per-user
// pattern channel, routing incoming messages into the local Hub. This is
// what lets any process in the fleet (a sync-engine node, a webapi node)
// push to a user's browser regardless of which node owns the socket.
type Relay struct {
	client *redis.Client
	hub    *Hub
}

func NewRelay(client *redis.Client, hub *Hub) *Relay {
	return &Relay{client: client, hub: hub}
}

// PublishToUser publishes an event to a user's channel; any node running
// a Relay subscription will deliver it to that user's local sockets.
func (r *Relay) PublishToUser(ctx context.Context, userID string, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ws: encode event: %w", err)
	}
	channel := userChannelPrefix + userID
	if err := r.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("ws: publish to %s: %w", channel, err)
	}
	return nil
}

// Run subscribes to the broadcast and per-user pattern channels and
// blocks, dispatching to the Hub until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, broadcastChannel, userChannelPattern)
	defer pubsub.Close() //nolint:errcheck

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(msg)
		}
	}
}

func (r *Relay) dispatch(msg *redis.Message) {
	if msg.Channel == broadcastChannel {
		r.hub.Broadcast([]byte(msg.Payload))
		return
	}

	userID := strings.TrimPrefix(msg.Channel, userChannelPrefix)
	if userID == msg.Channel {
		slog.Warn("ws: relay received message on unrecognized channel", "channel", msg.Channel)
		return
	}
	r.hub.PushToUser(userID, []byte(msg.Payload))
}
