package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meshport/internal/services"
)

// DefaultBaseURL hosts original scene descriptions.
const DefaultBaseURL = "https://public-assets.sandbox.game"

// StatusError reports a non-2xx download response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Client performs plain HTTP downloads.
type Client struct {
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a download client with the given request timeout.
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Download returns the body of rawURL. Non-2xx responses yield *StatusError;
// both cases are tagged as transport failures.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrDataShape, "download", "get", "url is required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrDataShape, "download", "get", "build request", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "download", "get",
			fmt.Sprintf("request failed (latency=%v)", latency.Round(time.Millisecond)), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrTransport, "download", "get", "", &StatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "download", "read body", rawURL, err)
	}
	return data, nil
}

// DescribeFailure renders the short reason for a download error: the HTTP
// status when the server answered, the cause otherwise.
func DescribeFailure(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	var svcErr *services.Error
	if errors.As(err, &svcErr) && svcErr.Err != nil {
		return svcErr.Err.Error()
	}
	return err.Error()
}
