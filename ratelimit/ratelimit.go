package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mezonai/hashchain/logx"
)

// Config holds the sliding window settings
type Config struct {
	MaxRequests     int           // Maximum number of requests allowed per window
	WindowSize      time.Duration // Time window for rate limiting
	CleanupInterval time.Duration // How often to drop idle keys

	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means requests are keyed on the peer address only.
	TrustedProxies []string
}

// DefaultConfig allows 10 appends per second per client
func DefaultConfig() *Config {
	return &Config{
		MaxRequests:     10,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter implements sliding window rate limiting per key
type Limiter struct {
	config   *Config
	now      func() time.Time
	trusted  []*net.IPNet
	requests map[string][]time.Time
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop. Call Stop to end it.
// Unparseable trusted proxy entries are logged and ignored.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		config:   config,
		trusted:  parseNetworks(config.TrustedProxies),
		now:      time.Now,
		requests: make(map[string][]time.Time),
		stop:     make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow records a request for key and reports whether it fits in the window
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()

	valid := prune(l.requests[key], cutoff)
	if len(valid) >= l.config.MaxRequests {
		l.requests[key] = valid
		return false
	}
	l.requests[key] = append(valid, now)
	return true
}

// Count returns the number of requests for key inside the current window
func (l *Limiter) Count(key string) int {
	cutoff := l.now().Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(prune(l.requests[key], cutoff))
}

// Reset forgets every request of key
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, key)
}

// Stop ends the cleanup loop
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects requests over the limit with 429, keyed by client IP
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.ClientIP(r)
		if !l.Allow(ip) {
			logx.Warn("RATELIMIT", "Rate limit exceeded for ", ip, " on ", r.URL.Path)
			w.Header().Set("Retry-After", retryAfter(l.config.WindowSize))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the peer address of r. X-Forwarded-For is only consulted
// when the peer is a trusted proxy; the result is then the rightmost entry
// that is not itself a trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	if peer == nil {
		return "unknown"
	}
	if !l.isTrusted(peer) {
		return peer.String()
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		if !l.isTrusted(ip) {
			return ip.String()
		}
	}
	return peer.String()
}

func (l *Limiter) isTrusted(ip net.IP) bool {
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func parseNetworks(entries []string) []*net.IPNet {
	var out []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil {
				bits := 8 * net.IPv6len
				if ip.To4() != nil {
					ip, bits = ip.To4(), 8*net.IPv4len
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			logx.Warn("RATELIMIT", "Ignoring invalid trusted proxy ", e)
			continue
		}
		out = append(out, n)
	}
	return out
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	cutoff := l.now().Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, reqs := range l.requests {
		valid := prune(reqs, cutoff)
		if len(valid) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = valid
		}
	}
}

// prune drops timestamps at or before cutoff. reqs is in ascending order.
func prune(reqs []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	return reqs[i:]
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
