package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"becknet/internal/correlate"
	"becknet/internal/platform/metrics"
	"becknet/internal/protocol"
	"becknet/internal/registry"
)

// Router multicasts discovery requests to the eligible participant set and
// aggregates their callbacks. It is the only component that combines the
// registry's eligibility listing with the correlator's fan-out mode.
type Router struct {
	registry    *registry.Client
	correlator  *correlate.Correlator
	dispatcher  *Dispatcher
	fanoutLimit int
	edgeTimeout time.Duration
	searchTTL   time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewRouter builds a multicast router. fanoutLimit bounds concurrent dispatch
// per discovery request; edgeTimeout bounds each individual dispatch and is
// distinct from the aggregation deadline.
func NewRouter(reg *registry.Client, corr *correlate.Correlator, disp *Dispatcher, fanoutLimit int, edgeTimeout, searchTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry:    reg,
		correlator:  corr,
		dispatcher:  disp,
		fanoutLimit: fanoutLimit,
		edgeTimeout: edgeTimeout,
		searchTTL:   searchTTL,
		logger:      logger,
		metrics:     m,
	}
}

// Fanout handles one verified discovery request: computes the eligible set,
// registers the aggregation window, dispatches to every target concurrently,
// and streams accepted replies back to the requester as they arrive. The
// synchronous acknowledgement to the requester has already been sent by the
// transport layer; this runs after it.
//
// Partial results are the normal case: unreachable participants never
// contribute, the window simply expires with received < expected.
func (r *Router) Fanout(ctx context.Context, env protocol.Envelope, body []byte) error {
	eligible, err := r.registry.ListEligible(ctx, env.Domain, env.City)
	if err != nil {
		return fmt.Errorf("fanout %s: %w", env.TransactionID, err)
	}
	r.metrics.ObserveFanout(len(eligible))

	deadline := time.Now().Add(r.searchTTL)
	if ttl, err := protocol.ParseTTL(env.TTL); err == nil && ttl > 0 {
		deadline = time.Now().Add(ttl)
	}

	if err := r.correlator.Register(env.TransactionID, len(eligible), deadline); err != nil {
		return fmt.Errorf("fanout %s: %w", env.TransactionID, err)
	}

	if len(eligible) == 0 {
		r.logger.Info("no eligible participants for discovery",
			"transaction_id", env.TransactionID,
			"domain", env.Domain,
			"city", env.City,
		)
		return nil
	}

	stream, ok := r.correlator.Replies(env.TransactionID)
	if ok {
		go r.forward(env, stream)
	}

	go r.dispatchAll(env, eligible, body)
	return nil
}

// dispatchAll sends the discovery request to every eligible participant with
// bounded concurrency. Per-edge failures are logged and counted, never
// retried here: retrying a discovery fan-out duplicates cost across the
// whole network, so retries belong to the layer above if anywhere.
func (r *Router) dispatchAll(env protocol.Envelope, eligible []registry.Participant, body []byte) {
	g := new(errgroup.Group)
	g.SetLimit(r.fanoutLimit)

	for _, p := range eligible {
		p := p
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), r.edgeTimeout)
			defer cancel()

			if err := r.dispatcher.Send(ctx, p.SubscriberURL, env.Action, body); err != nil {
				r.logger.Warn("fanout target unreachable",
					"transaction_id", env.TransactionID,
					"target", p.SubscriberID,
					"error", err.Error(),
				)
			}
			return nil
		})
	}
	g.Wait()
}

// forward streams each accepted reply to the original requester immediately.
// The aggregation deadline only ages the correlation entry out; it never
// gates forwarding.
func (r *Router) forward(env protocol.Envelope, stream <-chan correlate.Reply) {
	for reply := range stream {
		ctx, cancel := context.WithTimeout(context.Background(), r.edgeTimeout)
		err := r.dispatcher.Send(ctx, env.BapURI, env.Action.Callback(), reply.Payload)
		cancel()
		if err != nil {
			r.logger.Warn("forwarding reply to requester failed",
				"transaction_id", env.TransactionID,
				"responder", reply.ResponderID,
				"error", err.Error(),
			)
			continue
		}
		r.metrics.IncReplyForwarded()
	}
}

// AcceptReply records a verified discovery callback and hands the raw body to
// the forwarding stream. The responder is identified by the callback's
// counterparty id.
func (r *Router) AcceptReply(env protocol.Envelope, raw json.RawMessage) correlate.AcceptResult {
	result := r.correlator.Accept(env.TransactionID, env.BppID, raw)
	switch result {
	case correlate.LateOrUnknown:
		r.logger.Info("dropping late or unknown discovery reply",
			"transaction_id", env.TransactionID,
			"responder", env.BppID,
		)
	case correlate.DuplicateResponder:
		r.logger.Info("dropping duplicate discovery reply",
			"transaction_id", env.TransactionID,
			"responder", env.BppID,
		)
	}
	return result
}
