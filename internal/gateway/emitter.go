package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"becknet/internal/correlate"
	"becknet/internal/protocol"
)

// Emitter is the single outbound hook offered to the business layer: given a
// built envelope and an opaque payload, it signs, routes and, for requests,
// registers the correlation so the eventual callback finds its way home.
type Emitter struct {
	dispatcher *Dispatcher
	correlator *correlate.Correlator
	// gatewayURL is where discovery requests go; every other request is
	// addressed directly to its counterparty.
	gatewayURL string
	orderTTL   time.Duration
	logger     *slog.Logger
}

// NewEmitter builds the business layer's outbound port.
func NewEmitter(disp *Dispatcher, corr *correlate.Correlator, gatewayURL string, orderTTL time.Duration, logger *slog.Logger) *Emitter {
	return &Emitter{
		dispatcher: disp,
		correlator: corr,
		gatewayURL: gatewayURL,
		orderTTL:   orderTTL,
		logger:     logger,
	}
}

// Emit sends a reply or initiates a new request for the given envelope.
// Callback envelopes go back to the requester with no new correlation;
// request envelopes register one first, so the matching callback can be
// awaited via the correlator.
func (e *Emitter) Emit(ctx context.Context, env protocol.Envelope, payload json.RawMessage) error {
	body, err := json.Marshal(protocol.Message{Context: env, Payload: payload})
	if err != nil {
		return fmt.Errorf("emit %s: %w", env.TransactionID, err)
	}

	if env.Action.IsCallback() {
		return e.dispatcher.Send(ctx, env.BapURI, env.Action, body)
	}
	if !env.Action.Valid() {
		return fmt.Errorf("emit %s: unknown action %q", env.TransactionID, env.Action)
	}

	ttl := e.orderTTL
	if parsed, err := protocol.ParseTTL(env.TTL); err == nil && parsed > 0 {
		ttl = parsed
	}

	// Discovery goes through the gateway and collects an unknown number of
	// replies; everything else is point-to-point with exactly one.
	expected := 1
	target := env.BppURI
	if env.Action == protocol.ActionSearch {
		expected = correlate.Unbounded
		target = e.gatewayURL
	}
	if target == "" {
		return fmt.Errorf("emit %s: no receiver for %s", env.TransactionID, env.Action)
	}

	if err := e.correlator.Register(env.TransactionID, expected, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("emit %s: %w", env.TransactionID, err)
	}
	if err := e.dispatcher.Send(ctx, target, env.Action, body); err != nil {
		// A synchronous rejection is final; waiting out the deadline for a
		// callback that will never come helps nobody.
		e.correlator.Close(env.TransactionID)
		return err
	}
	return nil
}

// Await exposes the correlator's outcome wait to the business layer.
func (e *Emitter) Await(ctx context.Context, txnID string) (correlate.Outcome, error) {
	return e.correlator.Await(ctx, txnID)
}
