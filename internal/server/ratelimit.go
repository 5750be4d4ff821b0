// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const (
	defaultMaxVisitors  = 10000
	visitorStaleAfter   = 10 * time.Minute
	visitorSweepEvery   = 5 * time.Minute
	rateLimitRetryAfter = "1"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. Zero disables
	// limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps how many client IPs are tracked. Zero selects 10000.
	MaxVisitors int
}

// Validate checks the configuration and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return aegiserr.Errorf(aegiserr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return aegiserr.Errorf(aegiserr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return aegiserr.Errorf(aegiserr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors holds one token bucket per client IP.
type visitors struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	byIP    map[string]*visitor
	nowFunc func() time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, byIP: make(map[string]*visitor), nowFunc: time.Now}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.nowFunc()
	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.byIP[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

// sweep drops idle visitors, then the least recently seen ones while the map
// is over its cap.
func (v *visitors) sweep() {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.nowFunc()
	type seen struct {
		ip   string
		last time.Time
	}
	live := make([]seen, 0, len(v.byIP))
	for ip, vis := range v.byIP {
		if now.Sub(vis.lastSeen) > visitorStaleAfter {
			delete(v.byIP, ip)
			continue
		}
		live = append(live, seen{ip: ip, last: vis.lastSeen})
	}

	if v.cfg.MaxVisitors <= 0 || len(live) <= v.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(live, func(a, b seen) int { return a.last.Compare(b.last) })
	for _, s := range live[:len(live)-v.cfg.MaxVisitors] {
		delete(v.byIP, s.ip)
	}
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.byIP)
}

// rateLimitMiddleware enforces per-IP limits. It passes everything through
// when the rate is zero. done stops the sweeper.
func rateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	vs := newVisitors(cfg)
	go func() {
		ticker := time.NewTicker(visitorSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				vs.sweep()
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !vs.allow(ip) {
				logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", rateLimitRetryAfter)
				writeProblem(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port so that every connection from one host shares a
// bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
