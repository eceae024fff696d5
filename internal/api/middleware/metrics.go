package middleware

import (
	"net/http"
	"sync/atomic"
)

// MetricsCollector counts requests by outcome class.
type MetricsCollector struct {
	requests     atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	inFlight     atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

type MetricsSnapshot struct {
	RequestCount int64 `json:"request_count"`
	ErrorCount   int64 `json:"error_count"`
	ClientErrors int64 `json:"client_errors"`
	ServerErrors int64 `json:"server_errors"`
	InFlight     int64 `json:"in_flight"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	c, s := mc.clientErrors.Load(), mc.serverErrors.Load()
	return MetricsSnapshot{
		RequestCount: mc.requests.Load(),
		ErrorCount:   c + s,
		ClientErrors: c,
		ServerErrors: s,
		InFlight:     mc.inFlight.Load(),
	}
}

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requests.Add(1)
		mc.inFlight.Add(1)
		defer mc.inFlight.Add(-1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		switch {
		case rw.statusCode >= 500:
			mc.serverErrors.Add(1)
		case rw.statusCode >= 400:
			mc.clientErrors.Add(1)
		}
	})
}
