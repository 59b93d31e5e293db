// Package remotecart talks to the bookstore backend that owns user carts and the book catalog.
package remotecart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookstore/internal/domain/carts"
	"bookstore/internal/metrics"

	"github.com/go-playground/validator/v10"
)

const maxResponseBytes = 1 << 20

var errNotFound = errors.New("not found")

// envelope is the backend response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	metrics    *metrics.Registry
}

// NewClient builds a client for the backend rooted at baseURL. A nil httpClient uses a
// client with a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Registry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    m,
	}
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	body   any
}

// do performs req and decodes the envelope data into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRemote(req.op, start, err) }()

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", req.op, err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return &carts.NetworkError{Op: req.op, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &carts.NetworkError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &carts.NetworkError{Op: req.op, Status: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return &carts.ValidationError{Reason: reason(raw, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &carts.NetworkError{Op: req.op, Status: resp.StatusCode, Err: errors.New(reason(raw, resp.StatusCode))}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &carts.NetworkError{Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &carts.NetworkError{Op: req.op, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// reason extracts a human message from an error response. The backend puts the
// exception message in data and a generic label in message.
func reason(raw []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		var s string
		if json.Unmarshal(env.Data, &s) == nil && s != "" {
			return s
		}
		var list []string
		if json.Unmarshal(env.Data, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 256 {
		return text
	}
	return http.StatusText(status)
}
