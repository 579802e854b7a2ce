// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/neuron/internal/model"
	"github.com/jeranaias/neuron/internal/offline"
	"github.com/jeranaias/neuron/internal/telemetry"
)

// Configuration constants for the chat-completions API.
const (
	// DefaultBaseURL is the base URL of the provider API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a completion request.
	DefaultTimeout = 60 * time.Second

	// DefaultValidateTimeout bounds a credential probe.
	DefaultValidateTimeout = 10 * time.Second

	// DefaultMaxTokens is used when Params.MaxTokens is zero.
	DefaultMaxTokens = 1000

	// DefaultTemperature is used when Params.Temperature is zero.
	DefaultTemperature = 0.7

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "neuron/1.0"
)

// newHTTPClient returns the default transport: pooled connections, TLS 1.2+.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// Params are the generation parameters of one request. Zero values take the
// defaults; TopP and the penalties are omitted from the body when zero.
type Params struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
}

// withDefaults fills zero fields and clamps temperature to [0, 1].
func (p Params) withDefaults() Params {
	if strings.TrimSpace(p.Model) == "" {
		p.Model = model.DefaultModelID
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.Temperature < 0 {
		p.Temperature = 0
	}
	if p.Temperature > 1 {
		p.Temperature = 1
	}
	return p
}

// Reply is the outcome of a successful completion.
type Reply struct {
	Text             string
	Role             model.Role
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// Cost is the estimated spend added to the usage counter by this reply.
	Cost float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int  `json:"prompt_tokens"`
		CompletionTokens int  `json:"completion_tokens"`
		TotalTokens      *int `json:"total_tokens"`
	} `json:"usage"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends requests to the provider. It holds no credential; the key is
// passed per call so a changed key takes effect immediately.
type Client struct {
	baseURL         string
	organization    string
	httpClient      *http.Client
	conn            offline.Connectivity
	usage           *telemetry.UsageCounter
	limiter         *rate.Limiter
	logger          *log.Logger
	validateTimeout time.Duration
	validateModel   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(c *Client) { c.organization = strings.TrimSpace(org) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithConnectivity sets the reachability signal checked before each request.
func WithConnectivity(conn offline.Connectivity) Option {
	return func(c *Client) {
		if conn != nil {
			c.conn = conn
		}
	}
}

// WithUsage sets the counter that successful replies are recorded into.
func WithUsage(u *telemetry.UsageCounter) Option {
	return func(c *Client) {
		if u != nil {
			c.usage = u
		}
	}
}

// WithRateLimit paces requests to at most perMinute per minute. Zero or
// negative disables pacing.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithValidateTimeout bounds credential probes.
func WithValidateTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.validateTimeout = d
		}
	}
}

// WithValidateModel sets the model named in credential probes.
func WithValidateModel(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.validateModel = id
		}
	}
}

// NewClient creates a client. Without options it targets DefaultBaseURL,
// assumes the network is up, and records usage at the default rate.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:         DefaultBaseURL,
		httpClient:      newHTTPClient(),
		conn:            offline.Static(true),
		usage:           telemetry.NewUsageCounter(telemetry.DefaultRatePer1K),
		logger:          log.New(io.Discard, "cloud: ", log.LstdFlags),
		validateTimeout: DefaultValidateTimeout,
		validateModel:   model.DefaultModelID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Usage returns the counter replies are recorded into.
func (c *Client) Usage() *telemetry.UsageCounter {
	return c.usage
}

// =============================================================================
// COMPLETE
// =============================================================================

// Complete sends history to the provider and returns the assistant reply.
// Exactly one HTTP request is made; failures are never retried.
func (c *Client) Complete(ctx context.Context, history []model.Turn, apiKey string, params Params) (*Reply, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}
	if err := c.checkPreconditions(apiKey); err != nil {
		return nil, err
	}

	params = params.withDefaults()
	reqBody := chatRequest{
		Model:            params.Model,
		Messages:         toMessages(history),
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	}

	status, body, err := c.post(ctx, "/chat/completions", apiKey, reqBody)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, handleErrorResponse(status, body)
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	reply := &Reply{Role: model.RoleAssistant, Model: resp.Model}
	if resp.Usage != nil && resp.Usage.TotalTokens != nil {
		reply.PromptTokens = resp.Usage.PromptTokens
		reply.CompletionTokens = resp.Usage.CompletionTokens
		reply.TotalTokens = *resp.Usage.TotalTokens
		reply.Cost = c.usage.Record(reply.TotalTokens)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, ErrMalformedResponse
	}

	choice := resp.Choices[0]
	reply.Text = *choice.Message.Content
	reply.FinishReason = choice.FinishReason
	if reply.Model == "" {
		reply.Model = params.Model
	}
	return reply, nil
}

func toMessages(history []model.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: t.Role.String(), Content: t.Content})
	}
	return msgs
}

// checkPreconditions runs the checks that must pass before any request.
func (c *Client) checkPreconditions(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrMissingCredential
	}
	if !c.conn.IsConnected() {
		return ErrNoConnectivity
	}
	return nil
}

// =============================================================================
// HTTP
// =============================================================================

// post sends a JSON body and returns the status and size-limited body.
func (c *Client) post(ctx context.Context, path, apiKey string, payload any) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, apiKey)
}

// do waits for the rate limiter, sends req once, and reads the body.
func (c *Client) do(ctx context.Context, req *http.Request, apiKey string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, &TransportError{Op: "rate limit wait", Err: err}
		}
	}

	c.setHeaders(req, apiKey)
	c.logRequest(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// Clear the credential from the request object once sent.
	req.Header.Del("Authorization")

	if err != nil {
		return 0, nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()
	c.logResponse(resp, time.Since(start))

	body, err := readResponse(resp)
	if err != nil {
		return 0, nil, &TransportError{Op: "read response", Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))
	req.Header.Set("User-Agent", userAgent)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// logRequest logs method and path only. Headers carry the credential and
// bodies carry user content, so neither is logged.
func (c *Client) logRequest(req *http.Request) {
	c.logger.Printf("API Request: %s %s", req.Method, req.URL.Path)
}

func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Printf("API Response: %d (%v)", resp.StatusCode, duration.Round(time.Millisecond))
}

// =============================================================================
// KEY DISPLAY
// =============================================================================

// KeyFingerprint returns a short SHA-256 fingerprint of key for display.
func KeyFingerprint(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// MaskKey returns a display form of key that reveals no key material.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), KeyFingerprint(key))
}
