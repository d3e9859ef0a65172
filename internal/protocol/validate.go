package protocol

import "time"

// ValidateOptions tunes inbound context validation.
type ValidateOptions struct {
	// AllowedDomains restricts the domain code when non-empty.
	AllowedDomains []string
	// StrictTimestamps enables the freshness window check.
	StrictTimestamps bool
	FreshnessWindow  time.Duration
	Now              time.Time
}

// Validate checks an inbound context envelope and returns the specific
// protocol error to NACK with, or nil when the context is acceptable.
// Payload semantics are out of scope; only metadata is checked here.
func (env Envelope) Validate(opts ValidateOptions) *Error {
	if env.Domain == "" || env.BapID == "" || env.BapURI == "" ||
		env.TransactionID == "" || env.MessageID == "" || env.Timestamp == "" {
		e := NewError(CodeInvalidContext, "missing required context field")
		return &e
	}
	if req, ok := env.Action.Request(); ok {
		if !req.Valid() {
			e := NewError(CodeInvalidAction, "")
			return &e
		}
	} else if !env.Action.Valid() {
		e := NewError(CodeInvalidAction, "")
		return &e
	}
	if len(opts.AllowedDomains) > 0 {
		found := false
		for _, d := range opts.AllowedDomains {
			if d == env.Domain {
				found = true
				break
			}
		}
		if !found {
			e := NewError(CodeInvalidDomain, "")
			return &e
		}
	}
	if opts.StrictTimestamps {
		ts, err := time.Parse(time.RFC3339, env.Timestamp)
		if err != nil {
			e := NewError(CodeInvalidContext, "unparseable timestamp")
			return &e
		}
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		diff := now.Sub(ts)
		if diff < 0 {
			diff = -diff
		}
		if diff > opts.FreshnessWindow {
			e := NewError(CodeStaleTimestamp, "")
			return &e
		}
	}
	return nil
}
