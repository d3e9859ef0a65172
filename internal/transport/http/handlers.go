package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"becknet/internal/audit"
	"becknet/internal/correlate"
	"becknet/internal/protocol"
	"becknet/internal/signing"
)

const maxBodyBytes = 4 << 20

// handleRequest serves one request action endpoint: verify, validate,
// acknowledge synchronously, then process asynchronously. Cryptographic and
// envelope failures never reach the business hook.
func (s *Server) handleRequest(action protocol.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, raw, ok := s.admit(w, r, action)
		if !ok {
			return
		}
		writeAck(w)

		go s.processRequest(action, msg, raw)
	}
}

// handleCallback serves one callback action endpoint. Accepted replies are
// matched to their pending correlation; late, unknown and duplicate replies
// are dropped without being surfaced as errors.
func (s *Server) handleCallback(action protocol.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, raw, ok := s.admit(w, r, action)
		if !ok {
			return
		}
		writeAck(w)

		env := msg.Context
		if s.cfg.Gateway && s.router != nil {
			s.router.AcceptReply(env, raw)
			s.record(env, audit.StatusProcessed, "")
			return
		}

		responder := env.BppID
		if responder == "" {
			responder = env.BapID
		}
		result := s.correlator.Accept(env.TransactionID, responder, raw)
		switch result {
		case correlate.LateOrUnknown, correlate.DuplicateResponder:
			s.logger.Info("dropping callback",
				"transaction_id", env.TransactionID,
				"action", env.Action,
				"responder", responder,
				"reason", string(result),
			)
		}
		s.record(env, audit.StatusProcessed, "")
	}
}

// admit runs the shared inbound gate: body read, signature verification and
// context validation. It writes the NACK itself and reports !ok on rejection.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, action protocol.Action) (protocol.Message, []byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeNack(w, http.StatusBadRequest, protocol.CodeInvalidRequest, "unreadable body")
		return protocol.Message{}, nil, false
	}

	if !s.verify(w, r, raw) {
		return protocol.Message{}, nil, false
	}

	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		writeNack(w, http.StatusBadRequest, protocol.CodeSchemaInvalid, "")
		return protocol.Message{}, nil, false
	}

	env := msg.Context
	if env.Action != action {
		writeNack(w, http.StatusBadRequest, protocol.CodeInvalidAction, "action does not match endpoint")
		return protocol.Message{}, nil, false
	}
	if nackErr := env.Validate(protocol.ValidateOptions{
		AllowedDomains:   s.cfg.AllowedDomains,
		StrictTimestamps: s.cfg.StrictTimestamps,
		FreshnessWindow:  s.cfg.FreshnessWindow,
	}); nackErr != nil {
		writeNack(w, http.StatusBadRequest, nackErr.Code, nackErr.Message)
		return protocol.Message{}, nil, false
	}

	s.record(env, audit.StatusReceived, "")
	return msg, raw, true
}

// verify checks the signature header over the exact body bytes. The gateway
// countersigns forwarded messages, so the gateway header is accepted where
// the origin header is absent.
func (s *Server) verify(w http.ResponseWriter, r *http.Request, raw []byte) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		header = r.Header.Get("X-Gateway-Authorization")
	}
	if header == "" {
		s.metrics.ObserveVerify(string(signing.MalformedHeader))
		writeNack(w, http.StatusUnauthorized, protocol.CodeInvalidRequest, "missing authorization header")
		return false
	}

	result, parsed := s.verifier.Verify(r.Context(), raw, header, s.resolver)
	s.metrics.ObserveVerify(string(result))
	switch result {
	case signing.Valid:
		return true
	case signing.MalformedHeader:
		writeNack(w, http.StatusBadRequest, protocol.CodeInvalidRequest, "malformed authorization header")
	case signing.Expired:
		writeNack(w, http.StatusUnauthorized, protocol.CodeStaleRequest, "")
	case signing.UnknownSigner:
		writeNack(w, http.StatusUnauthorized, protocol.CodeInvalidSignature, "signer not found in registry")
	default:
		writeNack(w, http.StatusUnauthorized, protocol.CodeInvalidSignature, "")
	}
	if result != signing.MalformedHeader {
		s.logger.Warn("rejected inbound message",
			"result", string(result),
			"signer", parsed.SubscriberID,
		)
	}
	return false
}

// processRequest runs after the synchronous acknowledgement. Discovery fans
// out through the router on gateway nodes; everything else flows through the
// business hook, whose reply (if any) is emitted as the matching callback.
func (s *Server) processRequest(action protocol.Action, msg protocol.Message, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	env := msg.Context

	if action == protocol.ActionSearch && s.cfg.Gateway && s.router != nil {
		if err := s.router.Fanout(ctx, env, raw); err != nil {
			s.logger.Error("discovery fan-out failed",
				"transaction_id", env.TransactionID,
				"error", err.Error(),
			)
			s.record(env, audit.StatusFailed, err.Error())
			return
		}
		s.record(env, audit.StatusProcessed, "")
		return
	}

	if s.hook == nil {
		s.record(env, audit.StatusProcessed, "")
		return
	}

	reply, err := s.hook.OnVerifiedRequest(ctx, env, msg.Payload)
	if err != nil {
		s.logger.Error("business hook failed",
			"transaction_id", env.TransactionID,
			"action", env.Action,
			"error", err.Error(),
		)
		s.record(env, audit.StatusFailed, err.Error())
		return
	}
	if reply == nil {
		s.record(env, audit.StatusProcessed, "")
		return
	}

	cbEnv, err := s.builder.CallbackEnvelope(env)
	if err != nil {
		s.record(env, audit.StatusFailed, err.Error())
		return
	}
	if err := s.emitter.Emit(ctx, cbEnv, reply); err != nil {
		s.logger.Error("callback dispatch failed",
			"transaction_id", env.TransactionID,
			"action", cbEnv.Action,
			"error", err.Error(),
		)
		s.record(env, audit.StatusFailed, err.Error())
		return
	}
	s.record(cbEnv, audit.StatusProcessed, "")
}

func (s *Server) record(env protocol.Envelope, status audit.Status, errText string) {
	direction := audit.Inbound
	if status == audit.StatusProcessed && env.Action.IsCallback() && env.BppID == s.builder.SubscriberID {
		direction = audit.Outbound
	}
	s.trail.Record(context.Background(), audit.Entry{
		Direction:     direction,
		Action:        string(env.Action),
		TransactionID: env.TransactionID,
		MessageID:     env.MessageID,
		SenderID:      env.BapID,
		Status:        status,
		Error:         errText,
		Timestamp:     time.Now(),
	})
}
