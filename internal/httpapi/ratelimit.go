package httpapi

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPLimiter hands out one token bucket per client key.
type IPLimiter struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	visitors map[string]*visitor
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewIPLimiter allows burst requests at once, refilling at r per second.
// Buckets idle for ten minutes are dropped.
func NewIPLimiter(r rate.Limit, burst int) *IPLimiter {
	l := &IPLimiter{
		rate:     r,
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether key may proceed now, and otherwise how long until it may.
func (l *IPLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	v := l.visitors[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	res := v.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *IPLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *IPLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, key)
		}
	}
}

func (l *IPLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (s *Server) withAuthLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AuthLimiter != nil {
			if ok, wait := s.AuthLimiter.Allow(clientIP(r)); !ok {
				w.Header().Set("retry-after", retryAfterSeconds(wait))
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
				return
			}
		}
		next(w, r)
	}
}
