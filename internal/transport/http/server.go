// Package httptransport is the thin HTTP layer: one endpoint per protocol
// action and its callback form. It verifies, validates and acknowledges
// synchronously, then hands verified messages to the gateway router, the
// correlator or the business hook without embedding any business logic.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"becknet/internal/audit"
	"becknet/internal/correlate"
	"becknet/internal/gateway"
	"becknet/internal/platform/metrics"
	"becknet/internal/protocol"
	"becknet/internal/signing"
)

// Hook is the collaborator boundary. Business logic implements it per action;
// a nil returned payload means no callback is owed for this message.
type Hook interface {
	OnVerifiedRequest(ctx context.Context, env protocol.Envelope, payload json.RawMessage) (json.RawMessage, error)
}

// Config tunes inbound validation and role behavior.
type Config struct {
	// Gateway enables the discovery fan-out for inbound search requests.
	Gateway          bool
	AllowedDomains   []string
	StrictTimestamps bool
	FreshnessWindow  time.Duration
	// ProcessTimeout bounds the asynchronous processing of one message.
	ProcessTimeout time.Duration
}

// Server wires the inbound pipeline. All fields are injected; it owns no
// shared state of its own.
type Server struct {
	verifier   *signing.Verifier
	resolver   signing.KeyResolver
	builder    *protocol.Builder
	correlator *correlate.Correlator
	router     *gateway.Router
	emitter    *gateway.Emitter
	hook       Hook
	trail      *audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cfg        Config
}

// NewServer builds the transport layer. router may be nil for nodes without
// fan-out responsibility; hook may be nil for pure gateway deployments.
func NewServer(
	verifier *signing.Verifier,
	resolver signing.KeyResolver,
	builder *protocol.Builder,
	correlator *correlate.Correlator,
	router *gateway.Router,
	emitter *gateway.Emitter,
	hook Hook,
	trail *audit.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Server {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 30 * time.Second
	}
	return &Server{
		verifier:   verifier,
		resolver:   resolver,
		builder:    builder,
		correlator: correlator,
		router:     router,
		emitter:    emitter,
		hook:       hook,
		trail:      trail,
		logger:     logger,
		metrics:    m,
		cfg:        cfg,
	}
}

// Routes wires all action endpoints. The action set is closed: each route is
// bound to its handler here at wiring time, so an unsupported action is a
// plain 404 rather than a runtime string dispatch.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	for _, action := range protocol.Actions() {
		r.Post("/"+string(action), s.handleRequest(action))
		r.Post("/"+string(action.Callback()), s.handleCallback(action.Callback()))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
