package inventory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Environment variables the CMDB client resolves its configuration from.
const (
	EnvAPIURL      = "CMDB_API_URL"
	EnvBearerToken = "CMDB_API_BEARER_TOKEN"
)

// Config holds the CMDB API endpoint and credentials.
type Config struct {
	APIURL string
	Token  string
}

// FromEnv builds a Config from the CMDB environment variables alone. Both
// are required.
func FromEnv() (Config, error) {
	return FromConfig("", "")
}

// FromConfig builds a Config from configured settings, letting the CMDB
// environment variables override them. tokenEnv names the variable holding
// the bearer token when CMDB_API_BEARER_TOKEN is not set.
func FromConfig(apiURL, tokenEnv string) (Config, error) {
	cfg := Config{
		APIURL: os.Getenv(EnvAPIURL),
		Token:  os.Getenv(EnvBearerToken),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = apiURL
	}
	if cfg.Token == "" && tokenEnv != "" {
		cfg.Token = os.Getenv(tokenEnv)
	}
	if cfg.APIURL == "" {
		return Config{}, fmt.Errorf("no CMDB URL configured (set %s)", EnvAPIURL)
	}
	if cfg.Token == "" {
		return Config{}, fmt.Errorf("no CMDB bearer token configured (set %s)", EnvBearerToken)
	}
	return cfg, nil
}

// Client fetches inventory data from the CMDB portal.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a CMDB client for the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves the raw inventory payload from the CMDB. The payload is
// returned unparsed so the caller can validate it against the schema first.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build CMDB request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach CMDB at %s: %w", c.cfg.APIURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("failed to fetch inventory data from CMDB %s: status %d: %s",
			c.cfg.APIURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read CMDB response: %w", err)
	}
	return data, nil
}
