// Package server is the native RPC collaborator of spec.md §6: a
// JSON-over-HTTP surface, wire-encoding-agnostic in the sense the spec
// requires (no protobuf/gRPC stubs are generated — the spec explicitly
// puts that out of scope), using gorilla/mux for routing the way
// server/server.go routes the teacher's HTTP API. Every handler holds no
// state of its own; it decodes a request, calls exactly one
// *engine.Engine operation, and encodes the result.
package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

// envelope is the JSON shape every successful response is wrapped in,
// matching the {"token":..., "user":...}-style flat bodies of
// server/auth_handler.go but under a single "result" key so RPC clients
// never have to guess the field name per operation.
type envelope struct {
	Result any `json:"result,omitempty"`
	Error  *errBody `json:"error,omitempty"`
}

type errBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, envelope{Result: v})
}

// writeError maps a sonarerr.Kind to an RPC status code per spec.md §7's
// "each kind maps to a stable RPC status code at the collaborator
// boundary; messages never leak blob keys, hashes, or file paths" — the
// Message field always comes from the Error's own Message, never its
// wrapped cause, so that leak can't happen here even if a lower layer
// slipped up.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := sonarerr.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if e, ok := sonarerr.As(err); ok {
		msg = e.Message
	}
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("rpc operation failed", zap.Error(err))
	}
	writeJSON(w, status, envelope{Error: &errBody{Kind: string(kind), Message: msg}})
}

func statusFor(kind sonarerr.Kind) int {
	switch kind {
	case sonarerr.KindNotFound:
		return http.StatusNotFound
	case sonarerr.KindInvalidArgument, sonarerr.KindInvalidID:
		return http.StatusBadRequest
	case sonarerr.KindConflict:
		return http.StatusConflict
	case sonarerr.KindUnauthenticated:
		return http.StatusUnauthorized
	case sonarerr.KindPermissionDenied:
		return http.StatusForbidden
	case sonarerr.KindUnsupportedMime:
		return http.StatusUnsupportedMediaType
	case sonarerr.KindProvider:
		return http.StatusBadGateway
	case sonarerr.KindIO, sonarerr.KindHashMismatch, sonarerr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return sonarerr.InvalidArgument("body", "malformed json")
	}
	return nil
}
