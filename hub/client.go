package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Release is a published release on the hosting service.
type Release struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name,omitempty"`
	Body    string `json:"body,omitempty"`
	Draft   bool   `json:"draft"`
	URL     string `json:"html_url,omitempty"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"browser_download_url,omitempty"`
}

// APIError is returned when the service responds with a non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the release hosting API for a single repository.
type Client struct {
	// BaseURL is the API root including the repository path, for example
	// "https://api.example.com/repos/acme/cmdb-collection".
	BaseURL string
	// Token is the bearer token used on every request.
	Token string
	// HTTPClient is the client used for requests. A default with a
	// 30 second timeout is used when nil.
	HTTPClient *http.Client
}

// NewClient creates a Client for the given API base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateRelease creates a release for the given tag and returns it.
func (c *Client) CreateRelease(ctx context.Context, tag, name, body string) (*Release, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"tag_name": tag,
		"name":     name,
		"body":     body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode release request: %w", err)
	}

	var rel Release
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/releases", "application/json", bytes.NewReader(payload), &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// GetReleaseByTag looks up the release published for the given tag.
// IsNotFound on the returned error distinguishes an absent release from a
// failed request.
func (c *Client) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var rel Release
	u := c.BaseURL + "/releases/tags/" + url.PathEscape(tag)
	if err := c.do(ctx, http.MethodGet, u, "", nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// UploadAsset attaches the file at path to the release under its base name.
// The content type is derived from the file extension.
func (c *Client) UploadAsset(ctx context.Context, releaseID int64, path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat asset: %w", err)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	u := fmt.Sprintf("%s/releases/%d/assets?name=%s", c.BaseURL, releaseID, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, f)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)

	var asset Asset
	if err := c.send(req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read hub response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode hub response: %w", err)
		}
	}
	return nil
}
