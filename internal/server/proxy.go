// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// parseTrustedProxies parses CIDR ranges. Blank entries are skipped; at
// least one range must remain.
func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, aegiserr.Wrapf(err, aegiserr.CodeServerConfigInvalid, "invalid trusted proxy CIDR %q", cidr)
		}
		nets = append(nets, ipNet)
	}
	if len(nets) == 0 {
		return nil, aegiserr.New(aegiserr.CodeServerConfigInvalid,
			"server.trusted_proxies must contain at least one valid CIDR range")
	}
	return nets, nil
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// trustedProxyRealIP takes the client address from X-Forwarded-For (or
// X-Real-IP) only when the connection itself comes from a trusted proxy.
// Rate limiting keys on the result.
func trustedProxyRealIP(trusted []*net.IPNet, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer := net.ParseIP(clientIP(r))
			if peer == nil || !isTrusted(peer, trusted) {
				next.ServeHTTP(w, r)
				return
			}

			forwarded := ""
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				forwarded, _, _ = strings.Cut(xff, ",")
			} else {
				forwarded = r.Header.Get("X-Real-IP")
			}
			forwarded = strings.TrimSpace(forwarded)

			switch {
			case forwarded == "":
			case net.ParseIP(forwarded) != nil:
				r.RemoteAddr = net.JoinHostPort(forwarded, "0")
			default:
				logger.Warn("ignoring malformed forwarded address",
					"forwarded", forwarded, "peer", peer.String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
