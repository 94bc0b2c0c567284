package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"meshport/internal/logging"
	"meshport/internal/services"
)

// DefaultBaseURL is the NFT metadata provider endpoint prefix.
const DefaultBaseURL = "https://polygon-mainnet.g.alchemy.com/v2"

const stage = "metadata"

// Resolver maps a token reference to an asset id.
type Resolver interface {
	Resolve(ctx context.Context, contractID, tokenID string) (string, error)
}

// Client queries the NFT metadata provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ Resolver = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit spaces outgoing requests. A non-positive rate disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a metadata client.
func New(apiKey, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, "init",
			"metadata.api_key is required (set ALCHEMY_API_KEY)", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, stage)
	return client, nil
}

type nftMetadataResponse struct {
	Metadata *struct {
		ExternalURL string `json:"external_url"`
	} `json:"metadata"`
}

// Resolve fetches token metadata and extracts the asset id from its
// external_url. Every failure is classified as transport or data shape.
func (c *Client) Resolve(ctx context.Context, contractID, tokenID string) (string, error) {
	contractID = strings.TrimSpace(contractID)
	tokenID = strings.TrimSpace(tokenID)
	if contractID == "" || tokenID == "" {
		return "", services.Wrap(services.ErrDataShape, stage, "resolve", "contract id and token id are required", nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", services.Wrap(services.ErrTransport, stage, "resolve", "rate limiter wait", err)
		}
	}

	endpoint, err := url.Parse(c.baseURL + "/" + url.PathEscape(c.apiKey) + "/getNFTMetadata")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stage, "resolve", "parse metadata url", err)
	}
	params := url.Values{}
	params.Set("contractAddress", contractID)
	params.Set("tokenId", tokenID)
	params.Set("refreshCache", "false")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, stage, "resolve", "build request", err)
	}
	req.Header.Set("accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, stage, "resolve",
			fmt.Sprintf("failed to fetch nft metadata for %s/%s (latency=%v)", contractID, tokenID, latency.Round(time.Millisecond)), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", services.Wrap(services.ErrTransport, stage, "resolve",
			fmt.Sprintf("failed to fetch nft metadata: %s", resp.Status), nil)
	}

	var payload nftMetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrDataShape, stage, "resolve", "decode nft metadata", err)
	}
	if payload.Metadata == nil || strings.TrimSpace(payload.Metadata.ExternalURL) == "" {
		return "", services.Wrap(services.ErrDataShape, stage, "resolve", "no external_url found in nft metadata", nil)
	}

	assetID, ok := ExtractAssetID(payload.Metadata.ExternalURL)
	if !ok {
		return "", services.Wrap(services.ErrDataShape, stage, "resolve", "no asset id found in external_url", nil)
	}

	c.logger.Debug("token resolved",
		logging.String(logging.FieldContractID, contractID),
		logging.String(logging.FieldTokenID, tokenID),
		logging.String(logging.FieldAssetID, assetID),
		logging.Duration("latency", latency),
	)
	return assetID, nil
}

// ExtractAssetID returns the last non-empty "/"-separated segment of the
// trimmed external URL.
func ExtractAssetID(externalURL string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(externalURL), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i], true
		}
	}
	return "", false
}
