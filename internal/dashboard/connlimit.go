package dashboard

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// ConnLimiter caps progress stream subscribers per client and overall.
type ConnLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewConnLimiter creates a limiter. A limit of 0 means unlimited.
func NewConnLimiter(maxPerIP, maxTotal int) *ConnLimiter {
	return &ConnLimiter{perIP: make(map[string]int), maxPerIP: maxPerIP, maxTotal: maxTotal}
}

// TryAcquire takes a subscriber slot for ip, or reports false when either
// limit is reached.
func (c *ConnLimiter) TryAcquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.maxTotal > 0 && c.total >= c.maxTotal:
		return false
	case c.maxPerIP > 0 && c.perIP[ip] >= c.maxPerIP:
		return false
	}
	c.perIP[ip]++
	c.total++
	return true
}

// Release returns a slot taken by TryAcquire.
func (c *ConnLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(c.perIP, ip)
	} else {
		c.perIP[ip] = n - 1
	}
	c.total--
}

// Stats returns the subscriber count and the number of distinct clients.
func (c *ConnLimiter) Stats() (total, ips int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, len(c.perIP)
}

// clientIP prefers the first X-Forwarded-For entry, then X-Real-IP, then
// the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
