// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"
)

// =============================================================================
// MONITOR TESTS
// =============================================================================

func TestStatic(t *testing.T) {
	var c Connectivity = Static(true)
	if !c.IsConnected() {
		t.Error("Static(true) should be connected")
	}
	c = Static(false)
	if c.IsConnected() {
		t.Error("Static(false) should not be connected")
	}
}

func TestMonitor_StartsConnected(t *testing.T) {
	m := NewMonitor("https://api.openai.com/v1", 0)
	if !m.IsConnected() {
		t.Error("new monitor should start connected")
	}
	if m.Target() != "api.openai.com:443" {
		t.Errorf("Target() = %q", m.Target())
	}
}

func TestMonitor_Set(t *testing.T) {
	m := NewMonitor("https://api.openai.com/v1", 0)
	m.Set(false)
	if m.IsConnected() {
		t.Error("Set(false) should disconnect")
	}
	m.Set(true)
	if !m.IsConnected() {
		t.Error("Set(true) should reconnect")
	}
}

func TestMonitor_OfflineModeForcesDisconnected(t *testing.T) {
	m := NewMonitor("https://api.openai.com/v1", 0)
	m.SetOfflineMode(true)
	if m.IsConnected() {
		t.Error("offline mode should force disconnected for remote host")
	}
	if m.Status() != "OFFLINE MODE" {
		t.Errorf("Status() = %q", m.Status())
	}

	m.SetOfflineMode(false)
	if !m.IsConnected() {
		t.Error("leaving offline mode should restore the probed state")
	}
}

func TestMonitor_OfflineModeAllowsLoopback(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:8080/v1", 0)
	m.SetOfflineMode(true)
	if !m.IsConnected() {
		t.Error("offline mode should allow a loopback provider")
	}
}

func TestMonitor_ProbeReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	m := NewMonitor("http://"+ln.Addr().String(), 0)
	m.Set(false)
	if !m.Probe(context.Background()) {
		t.Error("Probe() should succeed against a listening port")
	}
	if !m.IsConnected() {
		t.Error("successful probe should mark connected")
	}
}

func TestMonitor_ProbeUnreachable(t *testing.T) {
	m := NewMonitor("https://api.example.com", 0)
	m.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	if m.Probe(context.Background()) {
		t.Error("Probe() should fail when dial fails")
	}
	if m.IsConnected() {
		t.Error("failed probe should mark disconnected")
	}
}

// recordingDialer accepts only the address in allow and records every
// address dialed.
func recordingDialer(allow string, dialed *[]string) DialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		*dialed = append(*dialed, address)
		if address != allow {
			return nil, errors.New("no route to host")
		}
		client, server := net.Pipe()
		server.Close()
		return client, nil
	}
}

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "NO_PROXY", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(k, "")
	}
}

func TestMonitor_ProbeDialsProxyFromEnvironment(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:3128")

	var dialed []string
	m := NewMonitor("https://api.openai.com/v1", 0)
	m.SetDialer(recordingDialer("127.0.0.1:3128", &dialed))
	m.Set(false)

	if got := m.DialTarget(); got != "127.0.0.1:3128" {
		t.Errorf("DialTarget() = %q, want proxy address", got)
	}
	if !m.Probe(context.Background()) {
		t.Error("Probe() should succeed through the proxy")
	}
	if len(dialed) != 1 || dialed[0] != "127.0.0.1:3128" {
		t.Errorf("dialed %v, want only the proxy", dialed)
	}
	if m.Target() != "api.openai.com:443" {
		t.Errorf("Target() = %q, the provider address should not change", m.Target())
	}
}

func TestMonitor_ProbeHonorsNoProxy(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:3128")
	t.Setenv("NO_PROXY", "api.openai.com")

	m := NewMonitor("https://api.openai.com/v1", 0)
	if got := m.DialTarget(); got != "api.openai.com:443" {
		t.Errorf("DialTarget() = %q, want direct address", got)
	}
}

func TestMonitor_ProbeDirectWithoutProxy(t *testing.T) {
	clearProxyEnv(t)

	var dialed []string
	m := NewMonitor("https://api.openai.com/v1", 0)
	m.SetDialer(recordingDialer("api.openai.com:443", &dialed))

	if !m.Probe(context.Background()) {
		t.Error("Probe() should succeed on a direct route")
	}
	if len(dialed) != 1 || dialed[0] != "api.openai.com:443" {
		t.Errorf("dialed %v, want the provider", dialed)
	}

	m.SetProxy(func(*url.URL) (*url.URL, error) {
		return url.Parse("http://proxy.internal:8080")
	})
	if got := m.DialTarget(); got != "proxy.internal:8080" {
		t.Errorf("DialTarget() with custom proxy = %q", got)
	}
}

func TestMonitor_StartStopsOnCancel(t *testing.T) {
	m := NewMonitor("https://api.example.com", 10*time.Millisecond)
	calls := make(chan struct{}, 100)
	m.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		calls <- struct{}{}
		return nil, errors.New("down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	<-calls
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if m.IsConnected() {
		t.Error("monitor should report disconnected after failed probes")
	}
}

// =============================================================================
// URL TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.0.0.1:8080", true},
		{"::1", true},
		{"[::1]:8080", true},
		{"api.openai.com", false},
		{"192.168.1.1", false},
		{"", false},
		{"localhost.localdomain", false},
	}

	for _, tc := range tests {
		t.Run(tc.host, func(t *testing.T) {
			if got := IsLocalhost(tc.host); got != tc.want {
				t.Errorf("IsLocalhost(%q) = %v, want %v", tc.host, got, tc.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://api.openai.com/v1", nil},
		{"http://localhost:8080/v1", nil},
		{"file:///etc/passwd", ErrInvalidURLScheme},
		{"javascript:alert(1)", ErrInvalidURLScheme},
		{"ftp://example.com", ErrInvalidURLScheme},
		{"https://", ErrMissingHost},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateURL(%q) = %v, want %v", tc.url, err, tc.wantErr)
			}
		})
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.openai.com/v1", "api.openai.com:443"},
		{"http://example.com", "example.com:80"},
		{"http://127.0.0.1:9000/v1", "127.0.0.1:9000"},
		{"not a url", ""},
	}

	for _, tc := range tests {
		if got := HostPort(tc.url); got != tc.want {
			t.Errorf("HostPort(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
