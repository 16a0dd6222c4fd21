package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/store"
)

const (
	streamChatPath = "/v1/chat/stream"
	userInfoPath   = "/v1/account/usage"

	checksumHeader = "x-client-checksum"
)

// Credential is the minimal view of a pooled credential the client
// needs: the bearer secret and its device checksum.
type Credential struct {
	Secret   string
	Checksum string
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Client wraps the HTTP surface of the upstream provider.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client with a pooled transport per the upstream
// configuration. The configured host may carry an explicit scheme;
// bare hosts default to https.
func NewClient(cfg config.UpstreamConfig) *Client {
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &Client{
		base: base,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "upstream.client"),
	}
}

// StreamChat opens a streaming chat completion. The returned body is
// the raw framed byte stream; the caller owns closing it. Non-2xx
// responses are drained into a StatusError.
func (c *Client) StreamChat(ctx context.Context, cred Credential, body []byte) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, streamChatPath, cred, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: stream chat: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return resp.Body, nil
}

// userInfoResponse is the quota document of the account endpoint.
type userInfoResponse struct {
	Usage struct {
		FastRequests    int `json:"fast_requests"`
		MaxFastRequests int `json:"max_fast_requests"`
	} `json:"usage"`
	Subscription struct {
		PlanType  string `json:"plan_type"`
		TrialDays int    `json:"trial_days"`
	} `json:"subscription"`
}

// FetchUsage retrieves the credential's remaining-quota snapshot.
func (c *Client) FetchUsage(ctx context.Context, cred Credential) (*store.UsageInfo, error) {
	req, err := c.newRequest(ctx, userInfoPath, cred, nil)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: fetch usage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var info userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("upstream: decode usage: %w", err)
	}

	c.logger.Debug("usage fetched", "duration", time.Since(started))
	return &store.UsageInfo{
		FastRequests:    info.Usage.FastRequests,
		MaxFastRequests: info.Usage.MaxFastRequests,
		PlanType:        info.Subscription.PlanType,
		TrialDays:       info.Subscription.TrialDays,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, path string, cred Credential, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Secret)
	req.Header.Set(checksumHeader, cred.Checksum)
	return req, nil
}
