// Package utils provides small helpers shared by the admission surfaces.
package utils

import (
	"net"
	"net/http"
	"strings"

	"github.com/turtacn/edugate/pkg/constants"
)

const ipv4MappedPrefix = "::ffff:"

// NormalizeIP strips the IPv4-mapped IPv6 prefix and, for dotted addresses
// only, a trailing ":port". Bare IPv6 addresses keep every group because their
// last group cannot be told apart from a port; parseable addresses are returned
// in canonical form so one client has one spelling.
func NormalizeIP(raw string) string {
	ip := strings.TrimSpace(raw)
	if len(ip) >= len(ipv4MappedPrefix) && strings.EqualFold(ip[:len(ipv4MappedPrefix)], ipv4MappedPrefix) {
		ip = ip[len(ipv4MappedPrefix):]
	}
	if strings.Contains(ip, ".") {
		if i := strings.LastIndexByte(ip, ':'); i >= 0 {
			ip = ip[:i]
		}
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		return parsed.String()
	}
	return ip
}

// ClientIP returns the normalized client address of r. Priority:
// 1. first X-Forwarded-For entry
// 2. X-Real-IP
// 3. CF-Connecting-IP
// 4. RemoteAddr
func ClientIP(r *http.Request) string {
	return ClientIPFromHeaders(r.Header, r.RemoteAddr)
}

// ClientIPFromHeaders applies the ClientIP priority to an arbitrary header set,
// e.g. gRPC metadata copied into an http.Header.
func ClientIPFromHeaders(h http.Header, remoteAddr string) string {
	if forwarded := h.Get(constants.HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := NormalizeIP(first); ip != "" {
			return ip
		}
	}
	for _, name := range []string{constants.HeaderRealIP, constants.HeaderConnectingIP} {
		if ip := NormalizeIP(h.Get(name)); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return NormalizeIP(host)
	}
	return NormalizeIP(remoteAddr)
}
