package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postflow/internal/services"
)

const (
	defaultBaseURL     = "https://graph.facebook.com/v21.0"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4 << 10
)

// Config holds the Graph API credentials.
type Config struct {
	BaseURL        string
	AccessToken    string
	IGUserID       string
	TimeoutSeconds int
}

// Client publishes single-image posts through the Instagram content
// publishing flow: create a media container, then publish it.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a Graph API client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			AccessToken:    strings.TrimSpace(cfg.AccessToken),
			IGUserID:       strings.TrimSpace(cfg.IGUserID),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// APIError is a failed Graph API response.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("graph api: http %d: %s (%s, code %d)", e.StatusCode, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("graph api: http %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether a later attempt may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Publish creates a container for imageURL and publishes it, returning the
// media id of the live post.
func (c *Client) Publish(ctx context.Context, imageURL, caption string) (string, error) {
	containerID, err := c.CreateMedia(ctx, imageURL, caption)
	if err != nil {
		return "", err
	}
	return c.PublishMedia(ctx, containerID)
}

// CreateMedia registers an image container and returns its id.
func (c *Client) CreateMedia(ctx context.Context, imageURL, caption string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", services.Wrap(services.ErrPermanent, "graph", "create media", "image url is required", nil)
	}
	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("caption", caption)
	id, err := c.postForID(ctx, "/"+c.cfg.IGUserID+"/media", form)
	if err != nil {
		return "", classify("create media", err)
	}
	return id, nil
}

// PublishMedia publishes a container created by CreateMedia.
func (c *Client) PublishMedia(ctx context.Context, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	id, err := c.postForID(ctx, "/"+c.cfg.IGUserID+"/media_publish", form)
	if err != nil {
		return "", classify("publish media", err)
	}
	return id, nil
}

// VerifyToken checks that the access token can read the configured account.
func (c *Client) VerifyToken(ctx context.Context) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}
	query := url.Values{}
	query.Set("fields", "id,username")
	query.Set("access_token", c.cfg.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/"+c.cfg.IGUserID+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("graph verify: new request: %w", err)
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &payload); err != nil {
		return fmt.Errorf("graph verify: %w", err)
	}
	if payload.ID == "" {
		return errors.New("graph verify: account id missing from response")
	}
	return nil
}

func (c *Client) requireCredentials() error {
	if c.cfg.AccessToken == "" || c.cfg.IGUserID == "" {
		return services.Wrap(services.ErrConfiguration, "graph", "credentials", "publisher.access_token and publisher.ig_user_id are required", nil)
	}
	return nil
}

func (c *Client) postForID(ctx context.Context, path string, form url.Values) (string, error) {
	if err := c.requireCredentials(); err != nil {
		return "", err
	}
	form.Set("access_token", c.cfg.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("graph request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var payload struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return "", errors.New("graph request: response without id")
	}
	return payload.ID, nil
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("graph request: read body: %w", err)
	}

	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || envelope.Error != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if envelope.Error != nil {
			apiErr.Message = envelope.Error.Message
			apiErr.Type = envelope.Error.Type
			apiErr.Code = envelope.Error.Code
		} else {
			apiErr.Message = strings.TrimSpace(string(body[:min(len(body), maxErrorBody)]))
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("graph request: decode response: %w", err)
	}
	return nil
}

// classify tags err with the services marker matching its cause.
func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || services.IsClassified(err) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Retryable() || apiErr.StatusCode < http.StatusBadRequest {
			return services.Wrap(services.ErrExternal, "graph", operation, "graph api unavailable", err)
		}
		return services.Wrap(services.ErrPermanent, "graph", operation, "graph api rejected the request", err)
	}
	return services.Wrap(services.ErrExternal, "graph", operation, "graph api request failed", err)
}
