package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	httpTimeoutEnvKey  = "PICSTASH_HTTP_TIMEOUT"
	apiTokenEnvKey     = "PICSTASH_API_TOKEN"
)

// Client is a simple HTTP client for the picstash API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// CreateAsset uploads image bytes for a new asset as a multipart form.
func (c *Client) CreateAsset(ctx context.Context, ownerID, displayName string, content io.Reader) (AssetResponse, error) {
	var resp AssetResponse

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if displayName != "" {
		if err := mw.WriteField("display_name", displayName); err != nil {
			return resp, err
		}
	}
	part, err := mw.CreateFormFile("photo", displayName)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	endpoint := c.baseURL + "/v1/owners/" + url.PathEscape(ownerID) + "/assets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeader(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// CreateAssetJSON uploads a data-URI or bare base64 payload.
func (c *Client) CreateAssetJSON(ctx context.Context, ownerID string, req AssetCreateRequest) (AssetResponse, error) {
	var resp AssetResponse
	err := c.do(ctx, http.MethodPost, "/v1/owners/"+url.PathEscape(ownerID)+"/assets", nil, req, &resp)
	return resp, err
}

func (c *Client) GetAsset(ctx context.Context, id string) (AssetResponse, error) {
	var resp AssetResponse
	err := c.do(ctx, http.MethodGet, "/v1/assets/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) ListAssets(ctx context.Context, ownerID string) ([]AssetResponse, error) {
	var resp []AssetResponse
	err := c.do(ctx, http.MethodGet, "/v1/owners/"+url.PathEscape(ownerID)+"/assets", nil, nil, &resp)
	return resp, err
}

// ReplaceAssetImage swaps an asset's pixel content without changing its id.
func (c *Client) ReplaceAssetImage(ctx context.Context, id string, req AssetReplaceRequest) (AssetResponse, error) {
	var resp AssetResponse
	err := c.do(ctx, http.MethodPut, "/v1/assets/"+url.PathEscape(id)+"/image", nil, req, &resp)
	return resp, err
}

func (c *Client) RenameAsset(ctx context.Context, id string, req AssetRenameRequest) (AssetResponse, error) {
	var resp AssetResponse
	err := c.do(ctx, http.MethodPatch, "/v1/assets/"+url.PathEscape(id), nil, req, &resp)
	return resp, err
}

func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/assets/"+url.PathEscape(id), nil, nil, nil)
}

// DownloadImage streams the canonical bytes to w and returns the MIME type.
func (c *Client) DownloadImage(ctx context.Context, id string, w io.Writer) (string, error) {
	return c.download(ctx, "/v1/assets/"+url.PathEscape(id)+"/image", w)
}

// DownloadThumbnail streams the thumbnail bytes to w and returns the MIME type.
func (c *Client) DownloadThumbnail(ctx context.Context, id string, w io.Writer) (string, error) {
	return c.download(ctx, "/v1/assets/"+url.PathEscape(id)+"/thumbnail", w)
}

func (c *Client) download(ctx context.Context, path string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, ErrorCode: errResp.ErrorCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultHTTPTimeout
}
