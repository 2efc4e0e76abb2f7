package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"

	applog "coinc/internal/log"
)

var scannerPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin", ".php",
	".git/", ".ssh", "etc/passwd", "<script", "union select",
}

// Detector resolves client IPs and flags scanner traffic.
type Detector struct {
	trusted    []netip.Prefix
	suspicious atomic.Int64
	logger     *applog.Logger
}

// NewDetector trusts loopback and private ranges as proxies.
func NewDetector(logger *applog.Logger) *Detector {
	d := &Detector{logger: logger.WithComponent(applog.ComponentHTTP)}
	for _, p := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128", "fc00::/7"} {
		d.trusted = append(d.trusted, netip.MustParsePrefix(p))
	}
	return d
}

func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trusted = append(d.trusted, p.Masked())
	return nil
}

// ExtractClientIP honours X-Forwarded-For and X-Real-IP only when the
// direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !d.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if _, err := netip.ParseAddr(first); err == nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return host
}

func (d *Detector) isTrusted(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range d.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// IsSuspicious reports path probing and unusual methods.
func (d *Detector) IsSuspicious(r *http.Request) bool {
	switch r.Method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}
	if len(r.URL.String()) > 2048 {
		return true
	}
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, p := range scannerPatterns {
		if strings.Contains(target, p) {
			return true
		}
	}
	return false
}

// Middleware answers suspicious requests with 404 and logs them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.IsSuspicious(r) {
			d.suspicious.Add(1)
			d.logger.WarnContext(r.Context(), "Suspicious request blocked",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, d.ExtractClientIP(r))
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (d *Detector) SuspiciousRequests() int64 { return d.suspicious.Load() }
