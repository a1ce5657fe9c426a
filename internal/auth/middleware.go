package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tobsdb/tdbadmin/pkg"
)

type ctxKey struct{}

var admin = Identity{Name: "admin", Role: UserRoleAdmin}

// FromContext returns the identity Middleware attached to the request.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware rejects requests without a valid bearer token and read-only
// callers on anything but GET. Preflight requests pass through.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, admin)))
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			// browsers can't set headers on websocket upgrades
			token = r.URL.Query().Get("token")
		}
		if len(token) == 0 {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		id, err := v.Validate(token)
		if err != nil {
			pkg.DebugLog("rejected token:", err)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if r.Method != http.MethodGet && !id.HasClearance(UserRoleReadWrite) {
			writeError(w, http.StatusForbidden, "Read only user")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// writeError sends the same body shape as every other API error, with the
// message under the general ("") key of errors.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(struct {
		Message string            `json:"message"`
		Status  int               `json:"status"`
		Errors  map[string]string `json:"errors"`
	}{message, status, map[string]string{"": message}})
	if err != nil {
		pkg.ErrorLog("writing response", err)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	return strings.TrimSpace(token), ok
}
