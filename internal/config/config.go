// Package config loads inboxd's runtime configuration from flags, env
// vars, and defaults via viper, matching the teacher's Load() shape.
package config

import "github.com/spf13/viper"

// Config holds all runtime configuration for inboxd.
type Config struct {
	HTTPAddr           string
	DBPath             string
	RedisAddr          string
	RedisPassword      string
	JWTSecret          string
	AccessTokenMinutes int
	EncryptionSecret   string
	SyncIntervalSecs   int
	SnoozeReapSecs     int
	ScoreDecaySecs     int
	HolderID           string

	GmailClientID       string
	GmailClientSecret   string
	GmailPubSubTopic    string
	SlackClientID       string
	SlackClientSecret   string
	DiscordClientID     string
	DiscordClientSecret string
	DiscordBotToken     string

	WebhookSecretGmail    string
	WebhookSecretSlack    string
	WebhookSecretDiscord  string
	WebhookSecretTelegram string

	VectorStoreURL    string
	VectorStoreAPIKey string
}

// Load reads configuration from viper, which merges flag values, env
// vars, and defaults (set up by the cobra command in cmd/inboxd).
func Load() Config {
	return Config{
		HTTPAddr:           viper.GetString("http_addr"),
		DBPath:             viper.GetString("db_path"),
		RedisAddr:          viper.GetString("redis_addr"),
		RedisPassword:      viper.GetString("redis_password"),
		JWTSecret:          viper.GetString("jwt_secret"),
		AccessTokenMinutes: viper.GetInt("access_token_minutes"),
		EncryptionSecret:   viper.GetString("encryption_secret"),
		SyncIntervalSecs:   viper.GetInt("sync_interval_secs"),
		SnoozeReapSecs:     viper.GetInt("snooze_reap_secs"),
		ScoreDecaySecs:     viper.GetInt("score_decay_secs"),
		HolderID:           viper.GetString("holder_id"),

		GmailClientID:       viper.GetString("gmail_client_id"),
		GmailClientSecret:   viper.GetString("gmail_client_secret"),
		GmailPubSubTopic:    viper.GetString("gmail_pubsub_topic"),
		SlackClientID:       viper.GetString("slack_client_id"),
		SlackClientSecret:   viper.GetString("slack_client_secret"),
		DiscordClientID:     viper.GetString("discord_client_id"),
		DiscordClientSecret: viper.GetString("discord_client_secret"),
		DiscordBotToken:     viper.GetString("discord_bot_token"),

		WebhookSecretGmail:    viper.GetString("webhook_secret_gmail"),
		WebhookSecretSlack:    viper.GetString("webhook_secret_slack"),
		WebhookSecretDiscord:  viper.GetString("webhook_secret_discord"),
		WebhookSecretTelegram: viper.GetString("webhook_secret_telegram"),

		VectorStoreURL:    viper.GetString("vectorstore_url"),
		VectorStoreAPIKey: viper.GetString("vectorstore_api_key"),
	}
}
