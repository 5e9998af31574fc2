// Package bsky is a small XRPC client for the Bluesky endpoints the personas
// use: session login, notifications, threads, posting and engagement.
package bsky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/DalmoMendonca/integral-bots/pkg/types"
)

// Default endpoints.
const (
	DefaultService   = "https://bsky.social"
	DefaultPublicAPI = "https://public.api.bsky.app"
)

// XRPCError is a non-2xx XRPC response.
type XRPCError struct {
	Method     string
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *XRPCError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s: %s", e.Method, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Method, e.StatusCode)
}

// Client talks to a PDS and the public AppView.
type Client struct {
	service   string
	publicAPI string
	client    *http.Client
	reads     failsafe.Executor[*http.Response]
	logger    logrus.FieldLogger
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithPublicAPI overrides the public AppView base URL.
func WithPublicAPI(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.publicAPI = strings.TrimRight(base, "/")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReadRetries sets how many times idempotent reads are retried on
// transport errors and 5xx/429 responses. Writes are never retried.
func WithReadRetries(n int) Option {
	return func(c *Client) {
		c.reads = newReadExecutor(n)
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a client for the PDS at service.
func NewClient(service string, opts ...Option) *Client {
	if service == "" {
		service = DefaultService
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Client{
		service:   strings.TrimRight(service, "/"),
		publicAPI: DefaultPublicAPI,
		client:    &http.Client{Timeout: 30 * time.Second},
		reads:     newReadExecutor(2),
		logger:    l,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "bsky")
	return c
}

func shouldRetryRead(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func newReadExecutor(retries int) failsafe.Executor[*http.Response] {
	if retries < 0 {
		retries = 0
	}
	policy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(shouldRetryRead).
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		Build()
	return failsafe.With[*http.Response](policy)
}

// Login creates a session for creds.
func (c *Client) Login(ctx context.Context, creds types.Credentials) (*Session, error) {
	handle := types.NormalizeHandle(creds.Handle)
	if handle == "" || creds.AppPassword == "" {
		return nil, types.Wrapf(types.ErrAuthentication, "missing handle or app password")
	}

	var out struct {
		DID        string `json:"did"`
		Handle     string `json:"handle"`
		AccessJwt  string `json:"accessJwt"`
		RefreshJwt string `json:"refreshJwt"`
	}
	in := map[string]string{"identifier": handle, "password": creds.AppPassword}
	if err := c.procedure(ctx, c.service, "", "com.atproto.server.createSession", in, &out); err != nil {
		return nil, types.Wrap(types.ErrAuthentication, fmt.Errorf("login %s: %w", handle, err))
	}
	if out.AccessJwt == "" || out.DID == "" {
		return nil, types.Wrapf(types.ErrAuthentication, "login %s: incomplete session", handle)
	}
	if out.Handle == "" {
		out.Handle = handle
	}
	c.logger.WithFields(logrus.Fields{"handle": out.Handle, "did": out.DID}).Debug("Session created")
	return &Session{client: c, DID: out.DID, Handle: out.Handle, accessJwt: out.AccessJwt}, nil
}

// query performs an XRPC GET with read retries.
func (c *Client) query(ctx context.Context, base, token, method string, params url.Values, out any) error {
	endpoint := base + "/xrpc/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := c.reads.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := c.client.Do(req)
		if shouldRetryRead(resp, err) && resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return resp, err
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &XRPCError{Method: method, StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	return decodeResponse(method, resp, out)
}

// procedure performs an XRPC POST once.
func (c *Client) procedure(ctx context.Context, base, token, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/xrpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return decodeResponse(method, resp, out)
}

func decodeResponse(method string, resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode >= 400 {
		xe := &XRPCError{Method: method, StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, xe)
		return xe
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode: %w", method, err)
	}
	return nil
}

// ResolveHandle returns the DID for handle.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var out struct {
		DID string `json:"did"`
	}
	params := url.Values{"handle": {types.NormalizeHandle(handle)}}
	if err := c.query(ctx, c.service, "", "com.atproto.identity.resolveHandle", params, &out); err != nil {
		return "", err
	}
	if out.DID == "" {
		return "", fmt.Errorf("resolveHandle %s: empty did", handle)
	}
	return out.DID, nil
}

// TrendingTopic is one entry of the AppView's trending list.
type TrendingTopic struct {
	Title     string
	Suggested bool
}

// TrendingTopics returns trending topics from the public AppView, trending
// entries first, then suggested ones.
func (c *Client) TrendingTopics(ctx context.Context, limit int) ([]TrendingTopic, error) {
	type entry struct {
		Topic       string `json:"topic"`
		DisplayName string `json:"displayName"`
	}
	var out struct {
		Topics    []entry `json:"topics"`
		Suggested []entry `json:"suggested"`
	}
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if err := c.query(ctx, c.publicAPI, "", "app.bsky.unspecced.getTrendingTopics", params, &out); err != nil {
		return nil, err
	}
	title := func(e entry) string {
		if e.Topic != "" {
			return e.Topic
		}
		return e.DisplayName
	}
	topics := make([]TrendingTopic, 0, len(out.Topics)+len(out.Suggested))
	for _, e := range out.Topics {
		topics = append(topics, TrendingTopic{Title: title(e)})
	}
	for _, e := range out.Suggested {
		topics = append(topics, TrendingTopic{Title: title(e), Suggested: true})
	}
	return topics, nil
}
