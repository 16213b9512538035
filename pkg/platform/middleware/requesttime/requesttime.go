// Package requesttime pins one "now" per request so log lines and durations
// computed anywhere in the request agree.
package requesttime

import (
	"net/http"
	"time"

	"insured/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
