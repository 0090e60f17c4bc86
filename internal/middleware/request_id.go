package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bizsim/agegate/internal/util/logger"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestID tags every request with an id and logs the outcome.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logger.Debug("%s %s request_id=%s duration=%s", r.Method, r.URL.Path, id, time.Since(start))
	})
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
