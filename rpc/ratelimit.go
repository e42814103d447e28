package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// submitLimiter throttles extrinsic submissions per client address. Idle
// entries are swept on access so no background goroutine is needed.
type submitLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func newSubmitLimiter(perSecond float64, burst int) *submitLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &submitLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// allow reports whether source may submit now. A nil limiter allows
// everything.
func (l *submitLimiter) allow(source string) bool {
	if l == nil {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, entry := range l.visitors {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.visitors[source]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
