package httptransport

import (
	"encoding/json"
	"net/http"

	"becknet/internal/protocol"
)

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(protocol.NewAck())
}

// writeNack sends the final synchronous rejection. A NACK never produces a
// later asynchronous callback for that transaction.
func writeNack(w http.ResponseWriter, status int, code protocol.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.NewNack(code, message))
}
