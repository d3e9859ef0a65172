// Package audit records every message this node receives or sends, with its
// processing status. The trail carries envelope identifiers and error text
// only; payload contents are never interpreted or stored beyond the raw body.
package audit

import "time"

// Direction distinguishes received messages from dispatched ones.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Status tracks a message through its processing lifecycle.
type Status string

const (
	StatusReceived  Status = "received"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Entry is one message observation. Keep it transport-agnostic so stores and
// sinks can fan out.
type Entry struct {
	ID            string
	Direction     Direction
	Action        string
	TransactionID string
	MessageID     string
	SenderID      string
	Status        Status
	Error         string
	Timestamp     time.Time
}
