package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"assetmgt/utils"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	trusted   []netip.Prefix
}

func NewRateLimiter(perSecond, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		ttl:       5 * time.Minute,
	}
}

// TrustProxies accepts X-Forwarded-For only from the given addresses or CIDR
// ranges. Without trusted proxies the limiter keys on the socket address.
func (l *RateLimiter) TrustProxies(proxies []string) error {
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			addr, err := netip.ParseAddr(p)
			if err != nil {
				return fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			l.trusted = append(l.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		l.trusted = append(l.trusted, prefix.Masked())
	}
	return nil
}

func (l *RateLimiter) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Sweep drops idle buckets every minute until ctx is done.
func (l *RateLimiter) Sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.seen) > l.ttl {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *RateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = time.Now()
	return b.lim.Allow()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			utils.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the socket peer, or when that peer is a trusted proxy, the
// right-most X-Forwarded-For hop not itself a trusted proxy.
func (l *RateLimiter) clientIP(r *http.Request) string {
	ip := remoteHost(r.RemoteAddr)
	if !l.isTrusted(ip) {
		return ip
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
		ip = hop
	}
	return ip
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
