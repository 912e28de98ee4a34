// Package api provides the authenticated REST client shared by every
// component that talks to the inspection backend. The base URL and token
// attachment policy are injected explicitly; nothing reads ambient globals.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies the current bearer token, or empty when the
// session is anonymous.
type TokenProvider interface {
	Token() string
}

// StaticToken is a TokenProvider for a fixed token.
type StaticToken string

// Token returns the token value.
func (t StaticToken) Token() string { return string(t) }

// APIError carries a non-2xx backend response. Message holds the server's
// own error field verbatim when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// StatusOf extracts the HTTP status carried by err, or 0 when err is not
// an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client is the authenticated REST client for the inspection backend.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewClient creates a new backend client. tokens may be nil for
// unauthenticated use.
func NewClient(baseURL string, tokens TokenProvider, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(hc HTTPClient) { c.httpClient = hc }

// GetJSON performs an authenticated GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON performs an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// PatchJSON performs an authenticated PATCH with a JSON body.
func (c *Client) PatchJSON(ctx context.Context, path string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// PostMultipart performs an authenticated multipart POST. The body and
// content type are produced by a MultipartPayload.
func (c *Client) PostMultipart(ctx context.Context, path string, payload *MultipartPayload, out interface{}) error {
	body, contentType, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode multipart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)

	return c.send(req, out)
}

// FetchBinary downloads an arbitrary URL (not necessarily under the base
// URL) and returns its raw bytes. Used to re-attach remote images.
func (c *Client) FetchBinary(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.attachToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	c.attachToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: serverMessage(data)}
		c.logger.Error("API returned failure",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) attachToken(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// serverMessage pulls the error message out of a JSON error body, trying
// the field names the backend is known to use.
func serverMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// MultipartPayload accumulates named fields and binary parts for a
// multipart/form-data request.
type MultipartPayload struct {
	fields []multipartField
	files  []multipartFile
}

type multipartField struct {
	name  string
	value string
}

type multipartFile struct {
	name     string
	filename string
	content  []byte
}

// AddField adds a plain text field.
func (p *MultipartPayload) AddField(name, value string) {
	p.fields = append(p.fields, multipartField{name: name, value: value})
}

// AddJSONField marshals v and adds it as a text field.
func (p *MultipartPayload) AddJSONField(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal field %s: %w", name, err)
	}
	p.AddField(name, string(data))
	return nil
}

// AddFile adds a named binary part.
func (p *MultipartPayload) AddFile(name, filename string, content []byte) {
	p.files = append(p.files, multipartFile{name: name, filename: filename, content: content})
}

// Encode renders the payload as a multipart body, returning the reader and
// the content type carrying the boundary.
func (p *MultipartPayload) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range p.fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	for _, f := range p.files {
		part, err := writer.CreateFormFile(f.name, f.filename)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.name, err)
		}
		if _, err := part.Write(f.content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
