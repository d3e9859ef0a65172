// Package gateway implements outbound dispatch and the discovery fan-out:
// one inbound search is multicast to every eligible participant and their
// replies are streamed back to the requester as they arrive.
package gateway

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"becknet/internal/platform/metrics"
	"becknet/internal/protocol"
	"becknet/internal/signing"
)

// Dispatcher sends signed messages to other participants' callback URLs and
// interprets the synchronous ACK/NACK envelope they answer with. The later
// asynchronous callback, if any, arrives separately on this node's own
// endpoints.
type Dispatcher struct {
	client       *http.Client
	subscriberID string
	uniqueKeyID  string
	signingKey   ed25519.PrivateKey
	validity     time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewDispatcher builds a dispatcher signing as the given identity.
func NewDispatcher(subscriberID, uniqueKeyID string, key ed25519.PrivateKey, validity time.Duration, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		client:       &http.Client{},
		subscriberID: subscriberID,
		uniqueKeyID:  uniqueKeyID,
		signingKey:   key,
		validity:     validity,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
	}
}

// Send signs the exact body bytes and POSTs them to the target's action
// endpoint. A transport failure, non-2xx status, or synchronous NACK all
// count as a dispatch failure.
func (d *Dispatcher) Send(ctx context.Context, baseURL string, action protocol.Action, body []byte) error {
	created := d.now().Unix()
	expires := d.now().Add(d.validity).Unix()
	sig, err := signing.Sign(body, created, expires, d.signingKey)
	if err != nil {
		return fmt.Errorf("sign dispatch to %s: %w", baseURL, err)
	}

	url := strings.TrimSuffix(baseURL, "/") + "/" + string(action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build dispatch to %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", signing.BuildAuthHeader(d.subscriberID, d.uniqueKeyID, sig, created, expires))

	resp, err := d.client.Do(req)
	if err != nil {
		d.metrics.IncDispatchFailure()
		return fmt.Errorf("dispatch %s to %s: %w", action, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.metrics.IncDispatchFailure()
		return fmt.Errorf("dispatch %s to %s: status %d", action, url, resp.StatusCode)
	}

	var ack protocol.AckResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ack); err != nil {
		// Some participants answer 200 with an empty body; treat a missing
		// envelope as accepted since the status already said so.
		return nil
	}
	if !ack.IsAck() {
		d.metrics.IncDispatchFailure()
		if ack.Error != nil {
			return fmt.Errorf("dispatch %s to %s: nack: %w", action, url, *ack.Error)
		}
		return fmt.Errorf("dispatch %s to %s: nack", action, url)
	}
	return nil
}
