package testutil

import (
	"net/http"
	"time"

	"firegate/pkg/requestcontext"
)

// WithActor adds an acting identity to the request context, simulating
// the identity-header middleware.
func WithActor(req *http.Request, actor string) *http.Request {
	if actor == "" {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), actor))
}

// WithClock pins the request-scoped time, simulating the request-time
// middleware with a deterministic instant.
func WithClock(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
