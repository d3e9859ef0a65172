package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Envelope is the per-message context attached to every request and callback.
// TransactionID is shared by all messages of one logical exchange; MessageID
// is unique per physical message, even across retries.
type Envelope struct {
	Domain        string `json:"domain"`
	Country       string `json:"country"`
	City          string `json:"city"`
	Action        Action `json:"action"`
	CoreVersion   string `json:"core_version"`
	BapID         string `json:"bap_id"`
	BapURI        string `json:"bap_uri"`
	BppID         string `json:"bpp_id,omitempty"`
	BppURI        string `json:"bpp_uri,omitempty"`
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	Timestamp     string `json:"timestamp"`
	TTL           string `json:"ttl,omitempty"`
}

// Message is the wire shape of every endpoint body: the context envelope plus
// an opaque payload this layer never interprets.
type Message struct {
	Context Envelope        `json:"context"`
	Payload json.RawMessage `json:"message"`
	Error   *Error          `json:"error,omitempty"`
}

// ErrNotARequest reports an attempt to derive a callback envelope from a
// message that is not a request.
var ErrNotARequest = errors.New("envelope is not a request action")

// Builder stamps envelopes with this node's identity and the configured
// per-action TTLs. It is stateless and safe for concurrent use.
type Builder struct {
	SubscriberID  string
	SubscriberURL string
	Country       string
	City          string
	CoreVersion   string
	SearchTTL     time.Duration
	OrderTTL      time.Duration
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewEnvelope builds the context for an outbound request. An empty txnID
// starts a new transaction; callers carry the id forward for every later
// message of the same exchange. Discovery has no fixed receiver, so bppID
// and bppURI stay empty for search.
func (b *Builder) NewEnvelope(action Action, domain, city, txnID, bppID, bppURI string) (Envelope, error) {
	if !action.Valid() {
		return Envelope{}, fmt.Errorf("unknown action %q", action)
	}
	if txnID == "" {
		txnID = uuid.NewString()
	}
	if city == "" {
		city = b.City
	}
	env := Envelope{
		Domain:        domain,
		Country:       b.Country,
		City:          city,
		Action:        action,
		CoreVersion:   b.CoreVersion,
		BapID:         b.SubscriberID,
		BapURI:        b.SubscriberURL,
		TransactionID: txnID,
		MessageID:     uuid.NewString(),
		Timestamp:     b.now().UTC().Format(time.RFC3339),
		TTL:           FormatTTL(b.ttlFor(action)),
	}
	if action != ActionSearch {
		env.BppID = bppID
		env.BppURI = bppURI
	}
	return env, nil
}

// CallbackEnvelope derives the reply context from an observed request: same
// transaction id, callback action, fresh message id and timestamp, this node
// filled in as the responder. Correlation ids never originate on the reply
// side, which is why this is the only way to construct a callback context.
func (b *Builder) CallbackEnvelope(orig Envelope) (Envelope, error) {
	if !orig.Action.Valid() {
		return Envelope{}, ErrNotARequest
	}
	env := orig
	env.Action = orig.Action.Callback()
	env.BppID = b.SubscriberID
	env.BppURI = b.SubscriberURL
	env.MessageID = uuid.NewString()
	env.Timestamp = b.now().UTC().Format(time.RFC3339)
	return env, nil
}

func (b *Builder) ttlFor(action Action) time.Duration {
	if action == ActionSearch {
		return b.SearchTTL
	}
	return b.OrderTTL
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

var ttlPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseTTL parses the ISO-8601 duration subset used on envelopes (PT...H/M/S).
func ParseTTL(ttl string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(ttl)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("invalid ttl %q", ttl)
	}
	var d time.Duration
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		d += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		min, _ := strconv.Atoi(m[2])
		d += time.Duration(min) * time.Minute
	}
	if m[3] != "" {
		s, _ := strconv.Atoi(m[3])
		d += time.Duration(s) * time.Second
	}
	return d, nil
}

// FormatTTL renders a duration as the ISO-8601 subset used on envelopes.
func FormatTTL(d time.Duration) string {
	d = d.Round(time.Second)
	out := "PT"
	if h := int(d.Hours()); h > 0 {
		out += strconv.Itoa(h) + "H"
		d -= time.Duration(h) * time.Hour
	}
	if m := int(d.Minutes()); m > 0 {
		out += strconv.Itoa(m) + "M"
		d -= time.Duration(m) * time.Minute
	}
	if s := int(d.Seconds()); s > 0 || out == "PT" {
		out += strconv.Itoa(s) + "S"
	}
	return out
}
