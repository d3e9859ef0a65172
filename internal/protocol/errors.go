package protocol

import "fmt"

// ErrorType is the normalized failure taxonomy carried on NACK responses.
type ErrorType string

const (
	ContextError ErrorType = "CONTEXT-ERROR"
	CoreError    ErrorType = "CORE-ERROR"
	DomainError  ErrorType = "DOMAIN-ERROR"
	PolicyError  ErrorType = "POLICY-ERROR"
)

// Code is a protocol error code. Context errors are 10xxx, core errors 20xxx.
type Code string

const (
	CodeInvalidContext    Code = "10000"
	CodeInvalidDomain     Code = "10001"
	CodeInvalidAction     Code = "10002"
	CodeStaleTimestamp    Code = "10003"
	CodeInvalidRequest    Code = "20000"
	CodeInvalidSignature  Code = "20001"
	CodeStaleRequest      Code = "20002"
	CodeInvalidResponse   Code = "20003"
	CodeRequestTimeout    Code = "20004"
	CodeSchemaInvalid     Code = "20005"
	CodeAlgorithmMismatch Code = "20006"
)

var errorMessages = map[Code]struct {
	typ ErrorType
	msg string
}{
	CodeInvalidContext:    {ContextError, "Invalid request context"},
	CodeInvalidDomain:     {ContextError, "Invalid domain"},
	CodeInvalidAction:     {ContextError, "Invalid action"},
	CodeStaleTimestamp:    {ContextError, "Invalid timestamp - stale request"},
	CodeInvalidRequest:    {CoreError, "Invalid request"},
	CodeInvalidSignature:  {CoreError, "Invalid signature"},
	CodeStaleRequest:      {CoreError, "Stale request"},
	CodeInvalidResponse:   {CoreError, "Invalid response"},
	CodeRequestTimeout:    {CoreError, "Request timed out"},
	CodeSchemaInvalid:     {CoreError, "Schema validation failed"},
	CodeAlgorithmMismatch: {CoreError, "Signing algorithm mismatch"},
}

// Error is the structured error object attached to NACK responses.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    Code      `json:"code"`
	Message string    `json:"message"`
}

// NewError builds an Error from a code; an empty message falls back to the
// code's registered text.
func NewError(code Code, message string) Error {
	info, ok := errorMessages[code]
	if !ok {
		info.typ = DomainError
		info.msg = "Unknown error"
	}
	if message == "" {
		message = info.msg
	}
	return Error{Type: info.typ, Code: code, Message: message}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Type, e.Code, e.Message)
}
