package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/models"
)

// ErrTransport marks failures that happened before a response arrived.
var ErrTransport = errors.New("backend unreachable")

// FilePart is one uploaded file in a multipart request.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart is a form body sent as multipart/form-data.
type Multipart struct {
	Fields map[string][]string
	Files  []FilePart
}

// APIRequest captures inputs for backend API calls.
type APIRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	Form   *Multipart
	Token  string
}

// APIResponse bundles the HTTP status with the decoded envelope.
type APIResponse struct {
	Status   int
	Body     []byte
	Envelope models.Envelope
}

// OK reports a 2xx status with success:true.
func (r *APIResponse) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300 && r.Envelope.Success
}

// Unauthorized reports a 401 response.
func (r *APIResponse) Unauthorized() bool {
	return r != nil && r.Status == http.StatusUnauthorized
}

// Message returns the backend message or fallback.
func (r *APIResponse) Message(fallback string) string {
	if r != nil && r.Envelope.Message != "" {
		return r.Envelope.Message
	}
	return fallback
}

// DecodeData unmarshals the envelope data payload into out.
func (r *APIResponse) DecodeData(out any) error {
	if r == nil || len(r.Envelope.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.Envelope.Data, out)
}

// APIClient talks to the ArkusPay backend API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewAPIClient constructs an APIClient for baseURL.
func NewAPIClient(baseURL string, timeout time.Duration, log zerolog.Logger) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "api_client").Logger(),
	}
}

// Do performs a backend request. Non-2xx statuses are returned, not errors.
func (c *APIClient) Do(ctx context.Context, opts APIRequest) (*APIResponse, error) {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	targetURL, err := c.makeURL(opts.Path, opts.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, targetURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", opts.Method).Str("path", opts.Path).Msg("backend request failed")
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, opts.Method, opts.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	result := &APIResponse{Status: resp.StatusCode, Body: respBody}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result.Envelope); err != nil {
			c.log.Debug().Err(err).Int("status", resp.StatusCode).Str("path", opts.Path).Msg("non-envelope response body")
		}
	}

	c.log.Debug().
		Str("method", opts.Method).
		Str("path", opts.Path).
		Int("status", resp.StatusCode).
		Bool("success", result.Envelope.Success).
		Msg("backend request")

	return result, nil
}

func (c *APIClient) makeURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("parse backend URL: %w", err)
	}
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

func encodeBody(opts APIRequest) (io.Reader, string, error) {
	if opts.Form != nil {
		return encodeMultipart(opts.Form)
	}
	if opts.Body == nil {
		return nil, "", nil
	}

	payload, err := json.Marshal(opts.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request body: %w", err)
	}
	return bytes.NewReader(payload), "application/json", nil
}

func encodeMultipart(form *Multipart) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, values := range form.Fields {
		for _, value := range values {
			if err := writer.WriteField(name, value); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", name, err)
			}
		}
	}

	for _, file := range form.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", file.Field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
