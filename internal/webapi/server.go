// Package webapi exposes the HTTP and WebSocket surface of inboxd: the
// feed/thread/message/draft/send endpoints, platform connection
// management, webhook receivers, and the realtime feed socket. Routing
// follows the teacher's stdlib http.ServeMux method+pattern style.
package webapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inboxd/inboxd/internal/adapter"
	"github.com/inboxd/inboxd/internal/agent"
	"github.com/inboxd/inboxd/internal/auth"
	"github.com/inboxd/inboxd/internal/cache"
	"github.com/inboxd/inboxd/internal/crypto"
	"github.com/inboxd/inboxd/internal/model"
	"github.com/inboxd/inboxd/internal/store"
	"github.com/inboxd/inboxd/internal/vectorstore"
	"github.com/inboxd/inboxd/internal/ws"
)

// Pipeline is the narrow pipeline capability webapi needs: on-demand
// draft generation. Ingestion itself runs through SyncEngine.
type Pipeline interface {
	GenerateDraft(ctx context.Context, msg model.Message, threadMessages []string) string
}

// SyncEngine is the narrow sync capability webapi needs: triggering an
// immediate per-platform sync and ingesting a single webhook delivery.
type SyncEngine interface {
	TriggerSync(ctx context.Context, userID string, platform model.Platform) error
	IngestOne(ctx context.Context, userID string, platform model.Platform, raw adapter.RawMessage) error
	ResolveWebhookOwner(platform model.Platform, platformUserID string) (string, error)
}

// Summarizer is the narrow thread-summary capability webapi needs.
type Summarizer interface {
	Summarize(ctx context.Context, messages []string) string
}

// Server is the HTTP/WS server for inboxd's API.
type Server struct {
	store       *store.FeedStore
	cache       *cache.Cache
	rateLimiter *cache.RateLimiter
	authManager *auth.Manager
	pipeline    Pipeline
	syncEngine  SyncEngine
	summarizer  Summarizer
	hub         *ws.Hub
	registry    *adapter.Registry
	cipher      *crypto.TokenCipher
	vectorstore *vectorstore.Client
	webhookSecrets map[model.Platform]string

	runtimeConfig   APIConfig
	runtimeConfigMu sync.Mutex

	mux    *http.ServeMux
	server *http.Server
}

// Config bundles Server's construction-time dependencies and the
// runtime-tunable defaults exposed via /api/v1/config.
type Config struct {
	Addr           string
	Store          *store.FeedStore
	Cache          *cache.Cache
	RateLimiter    *cache.RateLimiter
	AuthManager    *auth.Manager
	Pipeline       Pipeline
	SyncEngine     SyncEngine
	Summarizer     Summarizer
	Hub            *ws.Hub
	Registry       *adapter.Registry
	Cipher         *crypto.TokenCipher
	VectorStore    *vectorstore.Client
	WebhookSecrets map[model.Platform]string
}

func New(cfg Config) *Server {
	s := &Server{
		store:          cfg.Store,
		cache:          cfg.Cache,
		rateLimiter:    cfg.RateLimiter,
		authManager:    cfg.AuthManager,
		pipeline:       cfg.Pipeline,
		syncEngine:     cfg.SyncEngine,
		summarizer:     cfg.Summarizer,
		hub:            cfg.Hub,
		registry:       cfg.Registry,
		cipher:         cfg.Cipher,
		vectorstore:    cfg.VectorStore,
		webhookSecrets: cfg.WebhookSecrets,
		runtimeConfig: APIConfig{
			SyncIntervalSeconds:       120,
			SnoozeReapIntervalSeconds: 60,
			ScoreDecayIntervalSeconds: 3600,
			PlatformRateLimits:        map[string]int{"default": cache.StandardLimit},
		},
		mux: http.NewServeMux(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket upgrades need no write timeout
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut down.
func (s *Server) Start() error {
	slog.Info("webapi: listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webapi: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	authed := s.authManager.Middleware

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/openapi.yaml", s.handleOpenAPISpec)

	s.mux.Handle("GET /api/v1/feed", authed(http.HandlerFunc(s.handleGetFeed)))
	s.mux.Handle("GET /api/v1/thread/{platform}/{thread_id}", authed(http.HandlerFunc(s.handleGetThread)))
	s.mux.Handle("PATCH /api/v1/message/{id}", authed(http.HandlerFunc(s.handlePatchMessage)))
	s.mux.Handle("POST /api/v1/draft/{id}", authed(http.HandlerFunc(s.handlePostDraft)))
	s.mux.Handle("PUT /api/v1/draft/{id}", authed(http.HandlerFunc(s.handlePutDraft)))
	s.mux.Handle("POST /api/v1/send/{id}", authed(http.HandlerFunc(s.handlePostSend)))
	s.mux.Handle("POST /api/v1/message/{id}/reclassify", authed(http.HandlerFunc(s.handleReclassify)))

	s.mux.Handle("GET /api/v1/platforms", authed(http.HandlerFunc(s.handleListPlatforms)))
	s.mux.Handle("POST /api/v1/platforms/{platform}/connect", authed(http.HandlerFunc(s.handleConnectPlatform)))
	s.mux.Handle("DELETE /api/v1/platforms/{platform}", authed(http.HandlerFunc(s.handleDisconnectPlatform)))

	s.mux.Handle("GET /api/v1/config", authed(http.HandlerFunc(s.handleGetConfig)))
	s.mux.Handle("PUT /api/v1/config", authed(http.HandlerFunc(s.handleUpdateConfig)))

	s.mux.HandleFunc("POST /webhooks/{platform}", s.handleWebhook)

	s.mux.HandleFunc("GET /ws/feed", s.handleWSFeed)
}
