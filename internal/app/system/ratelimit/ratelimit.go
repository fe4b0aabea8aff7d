// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key inside a fixed window that starts with the
// first request. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int           // max requests per window
	duration time.Duration // window duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit requests per duration for each key.
// A background goroutine prunes expired windows until Stop is called.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go l.cleanupLoop(duration * 2)
	return l
}

// Allow records one request for key and reports whether it is within limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]

	if !exists || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}

	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests are left for key in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || l.now().After(w.expiresAt) {
		return l.limit
	}
	if remaining := l.limit - w.count; remaining > 0 {
		return remaining
	}
	return 0
}

// Reset clears the window for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP extracts the client IP from an HTTP request.
// X-Forwarded-For (first entry) and X-Real-IP win over RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// SignInLimiter guards the sign-in endpoint. It tracks attempts per client IP
// and per identifier (email or username, case-folded) so that both spraying
// from one address and targeting one account are throttled.
type SignInLimiter struct {
	ipLimiter      *Limiter
	accountLimiter *Limiter
}

// NewSignInLimiter returns a limiter with the default budget:
// 10 attempts per IP per minute, 5 attempts per identifier per 5 minutes.
func NewSignInLimiter() *SignInLimiter {
	return NewSignInLimiterWithConfig(10, time.Minute, 5, 5*time.Minute)
}

// NewSignInLimiterWithConfig creates a sign-in limiter with custom limits.
func NewSignInLimiterWithConfig(ipLimit int, ipWindow time.Duration, accountLimit int, accountWindow time.Duration) *SignInLimiter {
	return &SignInLimiter{
		ipLimiter:      New(ipLimit, ipWindow),
		accountLimiter: New(accountLimit, accountWindow),
	}
}

// Allow records an attempt from ip against identifier and reports whether
// it may proceed.
func (sl *SignInLimiter) Allow(ip, identifier string) bool {
	if !sl.ipLimiter.Allow(ip) {
		return false
	}
	if key := accountKey(identifier); key != "" {
		return sl.accountLimiter.Allow(key)
	}
	return true
}

// Succeeded clears the identifier window after a successful sign-in.
func (sl *SignInLimiter) Succeeded(identifier string) {
	if key := accountKey(identifier); key != "" {
		sl.accountLimiter.Reset(key)
	}
}

// Stop releases both limiters' background goroutines.
func (sl *SignInLimiter) Stop() {
	sl.ipLimiter.Stop()
	sl.accountLimiter.Stop()
}

func accountKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
