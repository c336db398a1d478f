package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter keeps a token bucket per client IP.
type ipLimiter struct {
	interval time.Duration
	burst    int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time

	nowFunc func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter allows burst requests per client, refilled at one request
// per interval. A zero interval allows everything.
func newIPLimiter(interval time.Duration, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}

	return &ipLimiter{
		interval: interval,
		burst:    burst,
		visitors: make(map[string]*visitor),
		nowFunc:  time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	if l.interval <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	l.sweep(now)

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{
			limiter: rate.NewLimiter(rate.Every(l.interval), l.burst),
		}
		l.visitors[ip] = v
	}

	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep forgets visitors whose bucket has been full for a while. It runs
// at most once a minute.
func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now

	idle := l.interval * time.Duration(l.burst)
	if idle < 10*time.Minute {
		idle = 10 * time.Minute
	}

	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, ip)
		}
	}
}

// rateLimited serves 429 Too Many Requests to clients that exceed the
// limit of l.
func (s *Server) rateLimited(l *ipLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			s.deps.Logger.Warn("rate limit exceeded", "path", r.URL.Path, "ip", ip)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(l.interval.Seconds()))))
			s.writeErrorPage(w, r, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP is the IP of the connecting client. Forwarding headers are
// ignored, they can be set by anyone.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
