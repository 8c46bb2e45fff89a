package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unifiro-api/internal/infrastructure/metrics"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-IP token bucket holding at most requests tokens,
// refilled evenly over window. It is local to the process.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	interval time.Duration
	burst    int
	idle     time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	ml := &MemoryLimiter{
		limiters: make(map[string]*ipLimiter),
		interval: window / time.Duration(requests),
		burst:    requests,
		idle:     window,
		stop:     make(chan struct{}),
	}
	go ml.cleanup()
	return ml
}

func (ml *MemoryLimiter) get(key string) *rate.Limiter {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if v, ok := ml.limiters[key]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(rate.Every(ml.interval), ml.burst)
	ml.limiters[key] = &ipLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l := ml.get(key)
	if l.Allow() {
		return true, 0, nil
	}
	return false, ml.interval, nil
}

// cleanup drops buckets idle for a full window; they are full again anyway.
func (ml *MemoryLimiter) cleanup() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ml.stop:
			return
		case <-t.C:
			ml.mu.Lock()
			for ip, v := range ml.limiters {
				if time.Since(v.lastSeen) > ml.idle {
					delete(ml.limiters, ip)
				}
			}
			ml.mu.Unlock()
		}
	}
}

func (ml *MemoryLimiter) Close() {
	ml.stopOnce.Do(func() { close(ml.stop) })
}

type tooManyRequests struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// RateLimit enforces l per client IP. A limiter error lets the request through.
func RateLimit(l Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeJSON(w, http.StatusTooManyRequests, tooManyRequests{
					Status: http.StatusTooManyRequests,
					Error:  "Too many requests, please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects RealIP to have run; it strips the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
