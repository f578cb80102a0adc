// Package httputil holds small HTTP request helpers shared by the API layer.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the originating client address for a request. Behind a
// trusted reverse proxy the X-Forwarded-For and X-Real-IP headers are
// consulted first; otherwise only RemoteAddr is believed, since proxy
// headers are client-controlled.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := proxyHeaderIP(r.Header); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// proxyHeaderIP extracts the leftmost X-Forwarded-For entry (the original
// client) or falls back to X-Real-IP.
func proxyHeaderIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return strings.TrimSpace(h.Get("X-Real-IP"))
}
