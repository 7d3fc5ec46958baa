package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/sonar-music/sonar/internal/sonarerr"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxIsAdmin
)

// cors mirrors server/server.go's manual CORS middleware, generalized to a
// plain net/http middleware (no framework-specific router hook) so it
// composes with mux.Router.Use the same way.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the session token from an "Authorization: Bearer
// <token>" header, the wire rendition of spec.md §6's "every operation's
// request carries an authenticated session token".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// authRequired wraps a handler with token validation, stashing the
// authorized user id and admin flag in the request context for the
// handler to read via userFromContext. Unauthenticated/expired tokens
// short-circuit with sonarerr.Unauthenticated per spec.md §4.7.
func (s *Server) authRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, isAdmin, err := s.engine.Auth.Authorize(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, s.log, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxIsAdmin, isAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// adminRequired additionally enforces spec.md §4.7's admin-only operation
// gate once authRequired has already populated the context.
func (s *Server) adminRequired(next http.HandlerFunc) http.HandlerFunc {
	return s.authRequired(func(w http.ResponseWriter, r *http.Request) {
		if !isAdminFromContext(r.Context()) {
			writeError(w, s.log, sonarerr.PermissionDenied("this operation"))
			return
		}
		next(w, r)
	})
}

func userFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxUserID).(int64)
	return id
}

func isAdminFromContext(ctx context.Context) bool {
	admin, _ := ctx.Value(ctxIsAdmin).(bool)
	return admin
}
