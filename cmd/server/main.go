package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"becknet/internal/audit"
	"becknet/internal/correlate"
	"becknet/internal/gateway"
	"becknet/internal/platform/config"
	"becknet/internal/platform/httpserver"
	"becknet/internal/platform/logger"
	"becknet/internal/platform/metrics"
	platformredis "becknet/internal/platform/redis"
	"becknet/internal/protocol"
	"becknet/internal/registry"
	"becknet/internal/signing"
	httptransport "becknet/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic plugs in through the transport hook.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	signingKey, err := signing.DecodePrivateKey(cfg.Identity.SigningPrivateKey)
	if err != nil {
		log.Error("invalid signing key", "error", err.Error())
		os.Exit(1)
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}

	regOpts := []registry.Option{registry.WithMetrics(m)}
	if rdb != nil {
		regOpts = append(regOpts, registry.WithSharedCache(rdb.Client))
		defer rdb.Close()
	}
	upstream := registry.NewHTTPUpstream(cfg.Registry.BaseURL, cfg.Registry.LookupTimeout)
	reg := registry.NewClient(upstream, cfg.Registry.CacheTTL, log, regOpts...)

	var trailStore audit.Store = audit.NewMemoryStore()
	if cfg.Postgres.URL != "" {
		pg, err := audit.NewPostgresStore(context.Background(), cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres unavailable", "error", err.Error())
			os.Exit(1)
		}
		defer pg.Close()
		trailStore = pg
	}
	trail := audit.NewPublisher(trailStore, log)

	correlator := correlate.New(cfg.Correlate.Grace, log, correlate.WithMetrics(m))
	dispatcher := gateway.NewDispatcher(
		cfg.Identity.SubscriberID, cfg.Identity.UniqueKeyID,
		signingKey, cfg.Protocol.AuthValidity, log, m,
	)

	var router *gateway.Router
	isGateway := cfg.Identity.Type == "BG"
	if isGateway {
		router = gateway.NewRouter(
			reg, correlator, dispatcher,
			cfg.Gateway.FanoutLimit, cfg.Gateway.EdgeTimeout, cfg.Protocol.SearchTTL,
			log, m,
		)
	}

	builder := &protocol.Builder{
		SubscriberID:  cfg.Identity.SubscriberID,
		SubscriberURL: cfg.Identity.SubscriberURL,
		Country:       cfg.Protocol.Country,
		City:          cfg.Protocol.City,
		CoreVersion:   cfg.Protocol.CoreVersion,
		SearchTTL:     cfg.Protocol.SearchTTL,
		OrderTTL:      cfg.Protocol.OrderTTL,
	}
	emitter := gateway.NewEmitter(dispatcher, correlator, cfg.Gateway.URL, cfg.Protocol.OrderTTL, log)
	verifier := &signing.Verifier{Leeway: cfg.Protocol.ClockSkewLeeway}

	srv := httptransport.NewServer(
		verifier, reg, builder, correlator, router, emitter,
		nil, // business hook: plugged in by the embedding application
		trail, log, m,
		httptransport.Config{
			Gateway:          isGateway,
			AllowedDomains:   cfg.Protocol.AllowedDomains,
			StrictTimestamps: cfg.Protocol.StrictTimestamps,
			FreshnessWindow:  cfg.Protocol.FreshnessWindow,
		},
	)

	server := httpserver.New(cfg.Server.Addr, srv.Routes())

	log.Info("starting becknet node",
		"addr", cfg.Server.Addr,
		"subscriber_id", cfg.Identity.SubscriberID,
		"type", cfg.Identity.Type,
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
