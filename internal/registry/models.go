// Package registry resolves network participants to their public keys,
// callback URLs and eligibility metadata via the shared trust registry,
// with a time-bounded cache, request coalescing and stale-copy fallback.
package registry

import (
	"errors"
	"time"
)

// Status is a participant's lifecycle state in the registry. Only active
// participants are selected as fan-out targets or trusted for decisions;
// their keys may still verify signatures, but the caller must treat the
// result as untrusted.
type Status string

const (
	StatusSubscribed Status = "SUBSCRIBED"
	StatusActive     Status = "ACTIVE"
	StatusInactive   Status = "INACTIVE"
)

// Participant is a network identity as published by the registry. This layer
// only ever reads cached copies; participants are created and updated by
// registry responses alone.
type Participant struct {
	SubscriberID     string    `json:"subscriber_id"`
	SubscriberURL    string    `json:"subscriber_url"`
	Type             string    `json:"type"`
	Domains          []string  `json:"domains"`
	Cities           []string  `json:"cities"`
	UniqueKeyID      string    `json:"ukId"`
	SigningPublicKey string    `json:"signing_public_key"`
	EncrPublicKey    string    `json:"encr_public_key"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
	Status           Status    `json:"status"`
}

// ActiveAt reports whether the participant is active and within its key
// validity interval at the given instant.
func (p Participant) ActiveAt(now time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidUntil.IsZero() && now.After(p.ValidUntil) {
		return false
	}
	return true
}

// Serves reports whether the participant serves both the domain and the city.
// A "*" entry matches any city.
func (p Participant) Serves(domain, city string) bool {
	if !contains(p.Domains, domain) {
		return false
	}
	return contains(p.Cities, city) || contains(p.Cities, "*")
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// Record is a cached participant copy. Stale marks a grace-period fallback
// returned because the registry was unreachable; the caller decides whether
// a stale key is acceptable for its purpose.
type Record struct {
	Participant
	FetchedAt time.Time
	Stale     bool
}

// LookupRequest is the upstream registry lookup filter.
type LookupRequest struct {
	SubscriberID string `json:"subscriber_id,omitempty"`
	UniqueKeyID  string `json:"ukId,omitempty"`
	Domain       string `json:"domain,omitempty"`
	City         string `json:"city,omitempty"`
	Type         string `json:"type,omitempty"`
}

// Subscription carries a new participant's details for registration. Not on
// the verify hot path; included for completeness of the registry contract.
type Subscription struct {
	SubscriberID     string    `json:"subscriber_id"`
	SubscriberURL    string    `json:"subscriber_url"`
	CallbackURL      string    `json:"callback_url"`
	Domain           string    `json:"domain"`
	Type             string    `json:"type"`
	City             string    `json:"city_code"`
	SigningPublicKey string    `json:"signing_public_key"`
	EncrPublicKey    string    `json:"encryption_public_key"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
}

var (
	// ErrNotFound means the registry has no such participant.
	ErrNotFound = errors.New("participant not found in registry")
	// ErrUnavailable means the registry was unreachable and no cached copy
	// exists to fall back on.
	ErrUnavailable = errors.New("registry unavailable")
)
