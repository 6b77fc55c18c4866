package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/agent"
	"github.com/inboxd/inboxd/internal/auth"
	"github.com/inboxd/inboxd/internal/cache"
	"github.com/inboxd/inboxd/internal/config"
	"github.com/inboxd/inboxd/internal/crypto"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/pipeline"
	"github.com/inboxd/inboxd/internal/scheduler"
	"github.com/inboxd/inboxd/internal/store"
	"github.com/inboxd/inboxd/internal/sync"
	"github.com/inboxd/inboxd/internal/vectorstore"
	"github.com/inboxd/inboxd/internal/webapi"
	"github.com/inboxd/inboxd/internal/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inboxd",
		Short: "Unified inbox: ingest, prioritize, and draft replies across messaging platforms",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("http-addr", ":8080", "address for the HTTP/WS API")
	f.String("db-path", "/state/inboxd.db", "path to the SQLite database")
	f.String("redis-addr", "127.0.0.1:6379", "Redis address for cache/rate-limit/pubsub")
	f.String("redis-password", "", "Redis password")
	f.String("jwt-secret", "", "HMAC secret signing access/refresh tokens")
	f.Int("access-token-minutes", 15, "access token lifetime in minutes")
	f.String("encryption-secret", "", "passphrase used to derive the AES-256 token-at-rest key")
	f.Int("sync-interval-secs", 120, "fleet sync interval, loaded into config only (the scheduler ticks on a fixed 120s)")
	f.Int("snooze-reap-secs", 60, "snooze reap interval, loaded into config only (the scheduler ticks on a fixed 60s)")
	f.Int("score-decay-secs", 3600, "score decay interval, loaded into config only (the scheduler ticks on a fixed 3600s)")
	f.String("gmail-client-id", "", "Gmail OAuth client ID")
	f.String("gmail-client-secret", "", "Gmail OAuth client secret")
	f.String("gmail-pubsub-topic", "", "Gmail Pub/Sub topic template")
	f.String("slack-client-id", "", "Slack OAuth client ID")
	f.String("slack-client-secret", "", "Slack OAuth client secret")
	f.String("discord-client-id", "", "Discord OAuth client ID")
	f.String("discord-client-secret", "", "Discord OAuth client secret")
	f.String("discord-bot-token", "", "Discord bot token for the gateway connection")
	f.String("webhook-secret-gmail", "", "shared secret for Gmail webhook deliveries")
	f.String("webhook-secret-slack", "", "shared secret for Slack webhook deliveries")
	f.String("webhook-secret-discord", "", "shared secret for Discord webhook deliveries")
	f.String("webhook-secret-telegram", "", "shared secret for Telegram webhook deliveries")
	f.String("vectorstore-url", "", "base URL of the vector search service (empty disables semantic search)")
	f.String("vectorstore-api-key", "", "API key for the vector search service")

	bindFlag := func(viperKey, flagName string) { _ = viper.BindPFlag(viperKey, f.Lookup(flagName)) }
	bindFlag("http_addr", "http-addr")
	bindFlag("db_path", "db-path")
	bindFlag("redis_addr", "redis-addr")
	bindFlag("redis_password", "redis-password")
	bindFlag("jwt_secret", "jwt-secret")
	bindFlag("access_token_minutes", "access-token-minutes")
	bindFlag("encryption_secret", "encryption-secret")
	bindFlag("sync_interval_secs", "sync-interval-secs")
	bindFlag("snooze_reap_secs", "snooze-reap-secs")
	bindFlag("score_decay_secs", "score-decay-secs")
	bindFlag("gmail_client_id", "gmail-client-id")
	bindFlag("gmail_client_secret", "gmail-client-secret")
	bindFlag("gmail_pubsub_topic", "gmail-pubsub-topic")
	bindFlag("slack_client_id", "slack-client-id")
	bindFlag("slack_client_secret", "slack-client-secret")
	bindFlag("discord_client_id", "discord-client-id")
	bindFlag("discord_client_secret", "discord-client-secret")
	bindFlag("discord_bot_token", "discord-bot-token")
	bindFlag("webhook_secret_gmail", "webhook-secret-gmail")
	bindFlag("webhook_secret_slack", "webhook-secret-slack")
	bindFlag("webhook_secret_discord", "webhook-secret-discord")
	bindFlag("webhook_secret_telegram", "webhook-secret-telegram")
	bindFlag("vectorstore_url", "vectorstore-url")
	bindFlag("vectorstore_api_key", "vectorstore-api-key")

	viper.SetEnvPrefix("INBOXD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	slog.Info("inboxd starting", "http_addr", cfg.HTTPAddr, "db_path", cfg.DBPath)

	feedStore, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer feedStore.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	appCache := cache.New(redisClient)
	rateLimiter := cache.NewRateLimiter(redisClient)

	cipher := crypto.NewTokenCipher(cfg.EncryptionSecret)
	authManager := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)

	registry := buildAdapterRegistry(cfg)

	hub := ws.NewHub()
	var relay *ws.Relay
	if redisClient != nil {
		relay = ws.NewRelay(redisClient, hub)
	}

	var embedder pipeline.Embedder
	var vsClient *vectorstore.Client
	if cfg.VectorStoreURL != "" {
		vsClient = vectorstore.New(cfg.VectorStoreURL, cfg.VectorStoreAPIKey)
		embedder = vsClient
	}

	runner := agent.NewRunner()
	pl := pipeline.New(feedStore, appCache, runner, embedder, relay)
	syncEngine := sync.New(feedStore, cipher, registry, pl)
	summarizer := agent.NewThreadSummarizer(runner)

	holderID := cfg.HolderID
	if holderID == "" {
		holderID = uuid.NewString()
	}
	sched := scheduler.New(feedStore, syncEngine, holderID)

	webhookSecrets := map[model.Platform]string{
		model.PlatformGmail:    cfg.WebhookSecretGmail,
		model.PlatformSlack:    cfg.WebhookSecretSlack,
		model.PlatformDiscord:  cfg.WebhookSecretDiscord,
		model.PlatformTelegram: cfg.WebhookSecretTelegram,
	}

	server := webapi.New(webapi.Config{
		Addr:           cfg.HTTPAddr,
		Store:          feedStore,
		Cache:          appCache,
		RateLimiter:    rateLimiter,
		AuthManager:    authManager,
		Pipeline:       pl,
		SyncEngine:     syncEngine,
		Summarizer:     summarizer,
		Hub:            hub,
		Registry:       registry,
		Cipher:         cipher,
		VectorStore:    vsClient,
		WebhookSecrets: webhookSecrets,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient != nil {
		go relay.Run(ctx)
	}

	go startDiscordGateway(ctx, cfg, syncEngine)

	go func() {
		if err := server.Start(); err != nil {
			slog.Error("webapi: server error", "error", err)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			slog.Error("scheduler: error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("inboxd: received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("webapi: shutdown error", "error", err)
	}

	return nil
}

// buildAdapterRegistry registers a live adapter for every platform with
// configured credentials, and a DisabledAdapter (so the registry always
// has an entry and never panics on an unconfigured platform) otherwise.
func buildAdapterRegistry(cfg config.Config) *adapter.Registry {
	registry := adapter.NewRegistry()

	if cfg.GmailClientID != "" && cfg.GmailClientSecret != "" {
		registry.Register(adapter.NewGmailAdapter(adapter.GmailConfig{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			PubSubTopic:  cfg.GmailPubSubTopic,
		}))
	} else {
		registry.Register(adapter.NewDisabledAdapter(model.PlatformGmail, "gmail OAuth client not configured"))
	}

	if cfg.SlackClientID != "" && cfg.SlackClientSecret != "" {
		registry.Register(adapter.NewSlackAdapter(adapter.SlackConfig{
			ClientID:     cfg.SlackClientID,
			ClientSecret: cfg.SlackClientSecret,
		}))
	} else {
		registry.Register(adapter.NewDisabledAdapter(model.PlatformSlack, "slack OAuth client not configured"))
	}

	if cfg.DiscordClientID != "" && cfg.DiscordClientSecret != "" {
		registry.Register(adapter.NewDiscordAdapter(adapter.DiscordConfig{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
		}))
	} else {
		registry.Register(adapter.NewDisabledAdapter(model.PlatformDiscord, "discord OAuth client not configured"))
	}

	registry.Register(adapter.NewTelegramAdapter())

	return registry
}

// startDiscordGateway runs the realtime Discord gateway connection when a
// bot token is configured, ingesting each delivered DM through the same
// webhook path a REST-delivered platform uses.
func startDiscordGateway(ctx context.Context, cfg config.Config, syncEngine *sync.Engine) {
	if cfg.DiscordBotToken == "" {
		return
	}

	onMessage := func(msgCtx context.Context, payload map[string]any) {
		platformUserID, _ := payload["platform_user_id"].(string)
		if platformUserID == "" {
			slog.Warn("discord gateway: payload missing platform_user_id, dropping")
			return
		}
		userID, err := syncEngine.ResolveWebhookOwner(model.PlatformDiscord, platformUserID)
		if err != nil {
			slog.Warn("discord gateway: no connected account for payload", "platform_user_id", platformUserID)
			return
		}

		threadID, _ := payload["thread_id"].(string)
		messageID, _ := payload["message_id"].(string)
		raw := adapter.RawMessage{Platform: model.PlatformDiscord, Payload: payload, ThreadID: threadID, MessageID: messageID}
		if err := syncEngine.IngestOne(msgCtx, userID, model.PlatformDiscord, raw); err != nil {
			slog.Error("discord gateway: ingest failed", "error", err)
		}
	}

	gateway := adapter.NewDiscordGateway(cfg.DiscordBotToken, onMessage, slog.Default())
	gateway.Run(ctx)
}
