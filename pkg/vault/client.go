// Package vault is a minimal client for the Obsidian Local REST API's
// /vault endpoints.
package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/sessionlog/pkg/retry"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// APIError is returned for any non-success status other than 404 on Get.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vault API error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status suggests the call may succeed later.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds connection settings for a vault.
type Config struct {
	BaseURL string
	APIKey  string
	// InsecureSkipVerify accepts the plugin's self-signed certificate.
	InsecureSkipVerify bool
	Timeout            time.Duration
	Retry              *retry.Policy
}

// Client reads and writes whole documents addressed by vault-relative path.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a vault client.
func New(config Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Get returns the document at path, or ErrNotFound.
func (c *Client) Get(ctx context.Context, path string) (string, error) {
	var (
		body    string
		missing bool
	)
	err := c.config.Retry.Do(ctx, func() error {
		status, data, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			missing = true
			return nil
		}
		if status < 200 || status >= 300 {
			return &APIError{StatusCode: status, Body: string(data)}
		}
		body = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	if missing {
		return "", ErrNotFound
	}
	return body, nil
}

// Put creates or replaces the document at path.
func (c *Client) Put(ctx context.Context, path, content string) error {
	return c.config.Retry.Do(ctx, func() error {
		status, data, err := c.do(ctx, http.MethodPut, path, []byte(content))
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return &APIError{StatusCode: status, Body: string(data)}
		}
		return nil
	})
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/vault/" + url.PathEscape(path)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "text/markdown")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, data, nil
}
