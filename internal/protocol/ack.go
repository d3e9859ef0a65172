package protocol

// AckStatus is the synchronous acknowledgement status.
type AckStatus string

const (
	StatusACK  AckStatus = "ACK"
	StatusNACK AckStatus = "NACK"
)

// Ack is the inner acknowledgement object.
type Ack struct {
	Status AckStatus `json:"status"`
}

// AckMessage wraps the acknowledgement for the wire.
type AckMessage struct {
	Ack Ack `json:"ack"`
}

// AckResponse is the body of every synchronous endpoint response. A NACK is
// final: no asynchronous callback follows for that transaction.
type AckResponse struct {
	Message AckMessage `json:"message"`
	Error   *Error     `json:"error,omitempty"`
}

// NewAck builds a positive acknowledgement.
func NewAck() AckResponse {
	return AckResponse{Message: AckMessage{Ack: Ack{Status: StatusACK}}}
}

// NewNack builds a negative acknowledgement carrying the specific error.
func NewNack(code Code, message string) AckResponse {
	e := NewError(code, message)
	return AckResponse{
		Message: AckMessage{Ack: Ack{Status: StatusNACK}},
		Error:   &e,
	}
}

// IsAck reports whether the response acknowledged the message.
func (r AckResponse) IsAck() bool {
	return r.Message.Ack.Status == StatusACK
}
