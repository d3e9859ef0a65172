package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Upstream is the registry's remote contract: read-mostly, eventually
// consistent, and treated as potentially unavailable.
type Upstream interface {
	Lookup(ctx context.Context, req LookupRequest) ([]Participant, error)
	Subscribe(ctx context.Context, sub Subscription) error
}

// HTTPUpstream talks to the registry service over HTTP.
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUpstream builds an upstream client for the given registry base URL.
func NewHTTPUpstream(baseURL string, timeout time.Duration) *HTTPUpstream {
	return &HTTPUpstream{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Lookup queries the registry for participants matching the filter.
func (u *HTTPUpstream) Lookup(ctx context.Context, req LookupRequest) ([]Participant, error) {
	var participants []Participant
	if err := u.post(ctx, "/lookup", req, &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

// Subscribe submits a new participant's details to the registry.
func (u *HTTPUpstream) Subscribe(ctx context.Context, sub Subscription) error {
	return u.post(ctx, "/subscribe", sub, nil)
}

func (u *HTTPUpstream) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: registry returned %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
