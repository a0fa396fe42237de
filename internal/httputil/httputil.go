package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// Validator checks request structs tagged with `validate`.
var Validator = validator.New()

// NewRouter creates a chi router with standard middleware (RequestID, RealIP, Timeout, Recoverer, Logger).
// RealIP rewrites RemoteAddr from X-Forwarded-For/X-Real-IP, which any client can
// set, so it is only installed when trustProxy says a trusted proxy sets them.
func NewRouter(log *slog.Logger, trustProxy bool) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(Recoverer(log))
	r.Use(RequestLogger(log))

	return r
}

// WriteJSON writes a JSON response with proper headers.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

// HealthHandler returns a simple health check endpoint.
func HealthHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Warn("healthz write failed", "err", err)
		}
	}
}

// RequestLogger is a lightweight HTTP logger that uses slog.
func RequestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Recoverer logs panics via slog while preserving chi's Recoverer behavior.
func Recoverer(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered", "panic", rec, "path", r.URL.Path, "method", r.Method, "request_id", middleware.GetReqID(r.Context()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterIdleTTL    = 10 * time.Minute
	maxLimiterIdleTTL = 24 * time.Hour
)

// RateLimiter hands out one token bucket per client address. Buckets idle long
// enough to have refilled are dropped.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per client with the given burst.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := limiterIdleTTL
	if rps > 0 {
		refill := float64(burst) / rps * float64(time.Second)
		switch {
		case refill > float64(maxLimiterIdleTTL):
			idle = maxLimiterIdleTTL
		case time.Duration(refill) > idle:
			idle = time.Duration(refill)
		}
	}
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  idle,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, c := range l.limiters {
			if now.Sub(c.lastSeen) >= l.idleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.limiters[key]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = c
	}
	c.lastSeen = now
	return c.lim
}

// Clients reports how many client buckets are held.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// the host part of RemoteAddr.
func (l *RateLimiter) Middleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.limiter(clientKey(r.RemoteAddr)).Allow() {
				Fail(log, w, "rate limit exceeded", nil, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Fail writes an error response with consistent logging.
func Fail(log *slog.Logger, w http.ResponseWriter, message string, err error, status int) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, "err", err)
	} else {
		log.Warn(message, "err", err)
	}
	http.Error(w, message, status)
}

// ValidationError reports the first failed field of a validator error as 400.
func ValidationError(log *slog.Logger, w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		Fail(log, w, fmt.Sprintf("invalid %s: failed %q", strings.ToLower(fe.Field()), fe.Tag()), err, http.StatusBadRequest)
		return
	}
	Fail(log, w, "invalid request", err, http.StatusBadRequest)
}
