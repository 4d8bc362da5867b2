package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "IMGPOST_HTTP_TIMEOUT"
	adminTokenEnvKey   = "IMGPOST_ADMIN_TOKEN"

	// PasswordHeader carries the post password on DELETE when there is no body.
	PasswordHeader = "X-Post-Password"
	// AdminTokenHeader carries the admin token on /api/admin routes.
	AdminTokenHeader = "X-Admin-Token"
)

// UploadFile is one image attached to a create or update request.
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// PostWriteRequest holds the multipart fields for create and update.
type PostWriteRequest struct {
	Author   string
	Title    string
	Content  string
	Password string
	Tags     []string
	Images   []UploadFile
}

// Client is a simple HTTP client for the imgpost API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// SetAdminToken overrides the admin token read from the environment.
func (c *Client) SetAdminToken(token string) {
	if token = strings.TrimSpace(token); token != "" {
		c.adminToken = token
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/api/admin/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListPosts(ctx context.Context) ([]PostResponse, error) {
	var resp []PostResponse
	err := c.do(ctx, http.MethodGet, "/api/posts", nil, nil, &resp)
	return resp, err
}

func (c *Client) GetPost(ctx context.Context, id int64) (PostResponse, error) {
	var resp PostResponse
	err := c.do(ctx, http.MethodGet, postPath(id), nil, nil, &resp)
	return resp, err
}

// CreatePost sends a multipart create request.
func (c *Client) CreatePost(ctx context.Context, req PostWriteRequest) (PostResponse, error) {
	var resp PostResponse
	err := c.doMultipart(ctx, http.MethodPost, "/api/posts", req, &resp)
	return resp, err
}

// UpdatePost sends a multipart update request. The image set on the server is
// replaced by req.Images.
func (c *Client) UpdatePost(ctx context.Context, id int64, req PostWriteRequest) (PostResponse, error) {
	var resp PostResponse
	err := c.doMultipart(ctx, http.MethodPut, postPath(id), req, &resp)
	return resp, err
}

func (c *Client) DeletePost(ctx context.Context, id int64, password string) (PostDeleteResponse, error) {
	var resp PostDeleteResponse
	err := c.do(ctx, http.MethodDelete, postPath(id), nil, PostDeleteRequest{Password: password}, &resp)
	return resp, err
}

// Sweep triggers the orphan blob sweep. grace of zero uses the server default.
func (c *Client) Sweep(ctx context.Context, apply bool, grace time.Duration) (SweepResponse, error) {
	var resp SweepResponse
	query := url.Values{}
	query.Set("apply", strconv.FormatBool(apply))
	if grace > 0 {
		query.Set("grace", grace.String())
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/sweep", query, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, body PostWriteRequest, out any) error {
	payload, contentType, err := encodePostForm(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, nil, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if c.adminToken != "" && strings.HasPrefix(path, "/api/admin/") {
		req.Header.Set(AdminTokenHeader, c.adminToken)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
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

// encodePostForm buffers the multipart body so the request has a known length.
func encodePostForm(req PostWriteRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := [][2]string{
		{"author", req.Author},
		{"title", req.Title},
		{"content", req.Content},
		{"password", req.Password},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	for _, tag := range req.Tags {
		if err := mw.WriteField("tags", tag); err != nil {
			return nil, "", err
		}
	}

	for _, image := range req.Images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, escapeQuotes(image.Name)))
		contentType := image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if image.Body != nil {
			if _, err := io.Copy(part, image.Body); err != nil {
				return nil, "", fmt.Errorf("read %s: %w", image.Name, err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func postPath(id int64) string {
	return "/api/posts/" + strconv.FormatInt(id, 10)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
