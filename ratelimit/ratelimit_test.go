package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(&Config{MaxRequests: max, WindowSize: window})
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowSlidingWindow(t *testing.T) {
	l, now := newTestLimiter(2, time.Second)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")
	assert.Equal(t, 2, l.Count("a"))

	*now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.Equal(t, 1, l.Count("a"))
}

func TestResetAndCleanup(t *testing.T) {
	l, now := newTestLimiter(1, time.Second)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))

	*now = now.Add(2 * time.Second)
	l.cleanup()
	assert.Empty(t, l.requests)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/block", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestClientIPIgnoresForwardedHeaderByDefault(t *testing.T) {
	l := NewLimiter(&Config{MaxRequests: 1, WindowSize: time.Second})
	defer l.Stop()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:80"
	assert.Equal(t, "192.168.1.7", l.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.168.1.7", l.ClientIP(req))

	req.RemoteAddr = "nonsense"
	assert.Equal(t, "unknown", l.ClientIP(req))
}

func TestClientIPBehindTrustedProxy(t *testing.T) {
	l := NewLimiter(&Config{
		MaxRequests:    1,
		WindowSize:     time.Second,
		TrustedProxies: []string{"10.0.0.0/8", "172.16.0.5", "bogus"},
	})
	defer l.Stop()
	assert.Len(t, l.trusted, 2)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.9, 172.16.0.5")
	// spoofed leading entries are ignored; the first hop outside the proxies wins
	assert.Equal(t, "203.0.113.9", l.ClientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.2.3", l.ClientIP(req))
}

func TestRotatingForwardedHeaderDoesNotBypassLimit(t *testing.T) {
	l, _ := newTestLimiter(1, time.Second)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 2)
	for _, xff := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/block", nil)
		req.RemoteAddr = "192.0.2.50:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
