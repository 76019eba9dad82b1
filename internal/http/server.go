// Package http serves the ledger API: batch insert plus the action-style
// read endpoints consumed by the dashboard.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"racha/internal/cache"
	"racha/internal/core"
	"racha/internal/services"
	"racha/internal/sheets"
)

// BatchInserter runs the allocate-then-write sequence for a normalized batch.
type BatchInserter interface {
	InsertBatch(ctx context.Context, now time.Time, records []core.PurchaseRecord) (services.InsertResult, error)
}

type Server struct {
	http.Server
	roster   core.Roster
	store    sheets.Store
	inserter BatchInserter

	recordsCache  *cache.LRU[[]core.PurchaseRecord]
	snapshotCache *cache.LRU[map[string]core.Money]
	janitor       *cache.Janitor
	rateLimiter   *rateLimiter

	// clock decides the active partition; injected so tests can pin it.
	clock func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and caches, returning a ready-to-run server.
func NewServer(addr string, roster core.Roster, store sheets.Store, inserter BatchInserter, cacheSize int, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		roster:        roster,
		store:         store,
		inserter:      inserter,
		recordsCache:  cache.NewLRU[[]core.PurchaseRecord](cacheSize, cacheTTL),
		snapshotCache: cache.NewLRU[map[string]core.Money](cacheSize, cacheTTL),
		janitor:       cache.NewJanitor(),
		rateLimiter:   newRateLimiter(60, time.Minute),
		clock:         time.Now,
	}
	s.janitor.Register(s.recordsCache)
	s.janitor.Register(s.snapshotCache)
	s.janitor.Start(10 * time.Minute)

	mux.HandleFunc("/api", s.withObservability(s.handleAPI))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	return s
}

// Shutdown stops the background loops and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.rateLimiter.close()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withObservability tags each request with an ID, logs start and completion,
// rate-limits writes and sets the security headers.
func (s *Server) withObservability(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		ip := clientIP(r)
		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"action", r.URL.Query().Get("action"),
			"client_ip", ip)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", ip)
			w.Header().Set("Retry-After", "60")
			writeErro(w, http.StatusTooManyRequests, "limite de requisições excedido, tente novamente em instantes")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// The active partition must be reachable for the service to take writes.
	if _, err := s.store.ReadSentinels(ctx, core.MonthOf(s.clock())); err != nil {
		slog.WarnContext(ctx, "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
