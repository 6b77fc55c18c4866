package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const discordGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// discordIntentGuildsAndMessages is GUILD_MESSAGES | DIRECT_MESSAGES (512 | 4096).
const discordIntentGuildsAndMessages = 4608

// DiscordGateway is a long-lived task per connected bot, modeling the
// community-chat platform's persistent-socket realtime path (design note
// §9: "Gateway-style socket"). It feeds the same on-message callback the
// webhook ingest path uses, with its own reconnect loop and heartbeat.
type DiscordGateway struct {
	botToken  string
	onMessage func(ctx context.Context, payload map[string]any)
	log       *slog.Logger
}

// NewDiscordGateway builds a gateway connection manager for botToken.
// onMessage is invoked for every MESSAGE_CREATE event's "d" payload.
func NewDiscordGateway(botToken string, onMessage func(ctx context.Context, payload map[string]any), log *slog.Logger) *DiscordGateway {
	return &DiscordGateway{botToken: botToken, onMessage: onMessage, log: log}
}

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	T  string          `json:"t"`
}

type gatewayHello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// Run connects and reconnects until ctx is cancelled, backing off 5s then
// 10s between attempts, matching the design note's fixed two-step backoff
// rather than an unbounded exponential schedule.
func (g *DiscordGateway) Run(ctx context.Context) {
	backoffs := []time.Duration{5 * time.Second, 10 * time.Second}
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := g.connectOnce(ctx); err != nil {
			g.log.Warn("discord gateway connection ended", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffs[min(attempt, len(backoffs)-1)]):
		}
		attempt++
	}
}

func (g *DiscordGateway) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, discordGatewayURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	var helloData gatewayHello
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		return err
	}

	identify := gatewayPayload{Op: 2, D: mustMarshal(map[string]any{
		"token":   g.botToken,
		"intents": discordIntentGuildsAndMessages,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "inboxd",
			"device":  "inboxd",
		},
	})}
	if err := conn.WriteJSON(identify); err != nil {
		return err
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go g.heartbeat(heartbeatCtx, conn, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	for {
		var event gatewayPayload
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		if event.T == "MESSAGE_CREATE" {
			var payload map[string]any
			if err := json.Unmarshal(event.D, &payload); err == nil {
				g.onMessage(ctx, payload)
			}
		}
	}
}

func (g *DiscordGateway) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(gatewayPayload{Op: 1, D: json.RawMessage("null")}); err != nil {
				return
			}
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
