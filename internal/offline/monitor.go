// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")

	// ErrMissingHost is returned when a URL has no host component.
	ErrMissingHost = errors.New("url has no host")
)

// DefaultProbeInterval is how often Start re-checks reachability.
const DefaultProbeInterval = 30 * time.Second

// probeTimeout bounds a single dial attempt.
const probeTimeout = 5 * time.Second

// =============================================================================
// CONNECTIVITY
// =============================================================================

// Connectivity reports whether the provider is believed reachable.
type Connectivity interface {
	IsConnected() bool
}

// Static is a Connectivity with a fixed answer.
type Static bool

// IsConnected returns the fixed value.
func (s Static) IsConnected() bool { return bool(s) }

// =============================================================================
// MONITOR
// =============================================================================

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProxyFunc returns the proxy for a request URL, or nil for a direct
// connection.
type ProxyFunc func(reqURL *url.URL) (*url.URL, error)

// envProxy reads HTTPS_PROXY, HTTP_PROXY and NO_PROXY on every call, so the
// probe follows the same route as the HTTP client.
func envProxy(reqURL *url.URL) (*url.URL, error) {
	return httpproxy.FromEnvironment().ProxyFunc()(reqURL)
}

// Monitor tracks reachability of one provider host. It starts out connected
// and is updated by Probe, Start, or Set.
type Monitor struct {
	target   string
	base     *url.URL
	interval time.Duration
	dial     DialFunc
	proxy    ProxyFunc
	logger   *log.Logger

	connected atomic.Bool
	offline   atomic.Bool
}

// NewMonitor creates a monitor for the host of baseURL. A non-positive
// interval selects DefaultProbeInterval.
func NewMonitor(baseURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	d := &net.Dialer{Timeout: probeTimeout}
	m := &Monitor{
		target:   HostPort(baseURL),
		interval: interval,
		dial:     d.DialContext,
		proxy:    envProxy,
		logger:   log.New(io.Discard, "", 0),
	}
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		m.base = u
	}
	m.connected.Store(true)
	return m
}

// SetDialer replaces the dial function used by Probe.
func (m *Monitor) SetDialer(dial DialFunc) {
	if dial != nil {
		m.dial = dial
	}
}

// SetProxy replaces the proxy lookup. nil disables proxies.
func (m *Monitor) SetProxy(proxy ProxyFunc) {
	m.proxy = proxy
}

// SetLogger sets the logger for state transitions.
func (m *Monitor) SetLogger(l *log.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Target returns the host:port being probed.
func (m *Monitor) Target() string {
	return m.target
}

// SetOfflineMode enables or disables the user-selected offline mode.
func (m *Monitor) SetOfflineMode(enabled bool) {
	m.offline.Store(enabled)
}

// OfflineMode reports whether offline mode is enabled.
func (m *Monitor) OfflineMode() bool {
	return m.offline.Load()
}

// Set overrides the probed state.
func (m *Monitor) Set(connected bool) {
	if m.connected.Swap(connected) != connected {
		m.logger.Printf("connectivity: %s -> %s", stateName(!connected), stateName(connected))
	}
}

// IsConnected reports the current signal. Offline mode forces false unless
// the target is a loopback address.
func (m *Monitor) IsConnected() bool {
	if m.offline.Load() && !IsLocalhost(m.target) {
		return false
	}
	return m.connected.Load()
}

// DialTarget returns the address Probe connects to: the proxy for the
// provider URL when one is configured, otherwise the provider itself.
func (m *Monitor) DialTarget() string {
	if m.base == nil || m.proxy == nil {
		return m.target
	}
	proxyURL, err := m.proxy(m.base)
	if err != nil || proxyURL == nil {
		return m.target
	}
	if hp := HostPort(proxyURL.String()); hp != "" {
		return hp
	}
	return m.target
}

// Probe dials the provider (or its proxy) once, records the result, and
// returns it.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.target == "" {
		return m.connected.Load()
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	addr := m.DialTarget()
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		m.logger.Printf("connectivity probe %s: %v", addr, err)
		m.Set(false)
		return false
	}
	conn.Close()
	m.Set(true)
	return true
}

// Start probes immediately and then on every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Status returns a short label for the status line.
func (m *Monitor) Status() string {
	switch {
	case m.offline.Load():
		return "OFFLINE MODE"
	case m.IsConnected():
		return "online"
	default:
		return "no connection"
	}
}

func stateName(connected bool) string {
	if connected {
		return "online"
	}
	return "offline"
}

// =============================================================================
// URL HELPERS
// =============================================================================

// IsLocalhost checks if a host (optionally with port) refers to loopback.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks that rawURL is an absolute http or https URL with a host.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if parsed.Hostname() == "" {
		return ErrMissingHost
	}
	return nil
}

// HostPort returns the host:port a URL connects to, filling in the default
// port for the scheme. It returns "" for unparseable URLs.
func HostPort(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	port := parsed.Port()
	if port == "" {
		if strings.EqualFold(parsed.Scheme, "http") {
			port = "80"
		} else {
			port = "443"
		}
	}
	return net.JoinHostPort(parsed.Hostname(), port)
}
