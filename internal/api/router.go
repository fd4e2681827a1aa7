package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signal/internal/api/handlers"
	"github.com/wonny/aegis-signal/pkg/logger"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// Handlers groups the route handlers; nil handlers leave their routes unregistered
type Handlers struct {
	Pools    *handlers.PoolHandler
	Calendar *handlers.CalendarHandler
	Classify *handlers.ClassifyHandler
	Signals  *handlers.SignalHandler
	Metrics  http.Handler
}

// LatencyRecorder observes per-route latency
type LatencyRecorder interface {
	RecordHTTP(route, method string, seconds float64)
}

// RouterOptions carries the optional middleware dependencies
type RouterOptions struct {
	Limiter   *redis.RateLimiter
	RateLimit redis.RateLimitConfig
	Recorder  LatencyRecorder
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger, opts RouterOptions) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	if h.Pools != nil {
		// latest 를 {date} 보다 먼저 등록
		api.HandleFunc("/pools/latest", h.Pools.GetLatest).Methods("GET")
		api.HandleFunc("/pools/{date}", h.Pools.GetPool).Methods("GET")
		api.HandleFunc("/pools/{date}/{code}", h.Pools.GetMembership).Methods("GET")
	}
	if h.Calendar != nil {
		api.HandleFunc("/calendar", h.Calendar.GetCalendar).Methods("GET")
	}
	if h.Classify != nil {
		api.HandleFunc("/classify", h.Classify.Classify).Methods("POST")
	}
	if h.Signals != nil {
		api.HandleFunc("/runs/latest", h.Signals.GetLatestRun).Methods("GET")
		api.HandleFunc("/runs/{id}", h.Signals.GetRun).Methods("GET")
		api.HandleFunc("/runs/{id}/signals", h.Signals.ListSignals).Methods("GET")
	}

	if opts.Limiter != nil {
		api.Use(rateLimitMiddleware(opts.Limiter, opts.RateLimit, log))
	}

	r.Use(loggingMiddleware(log, opts.Recorder))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "aegis-signal-api",
	})
}

// loggingMiddleware logs HTTP requests and observes latency per route template
func loggingMiddleware(log *logger.Logger, rec LatencyRecorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			elapsed := time.Since(start)
			if rec != nil {
				route := "unmatched"
				if cur := mux.CurrentRoute(r); cur != nil {
					if tpl, err := cur.GetPathTemplate(); err == nil {
						route = tpl
					}
				}
				rec.RecordHTTP(route, r.Method, elapsed.Seconds())
			}

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": elapsed,
			}).Debug("HTTP request")
		})
	}
}

// rateLimitMiddleware throttles per client IP; limiter failures let the request through
func rateLimitMiddleware(limiter *redis.RateLimiter, cfg redis.RateLimitConfig, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := cfg
			c.Key = clientIP(r)

			allowed, remaining, err := limiter.Allow(r.Context(), c)
			if err != nil {
				log.WithError(err).Warn("Rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(c.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(c.Window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Real-IP"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
