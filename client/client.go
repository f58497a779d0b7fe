// Package client is the HTTP client for a running Spuro server. It speaks
// the /api surface, attaches the caller identity header to mutations, and
// translates HTTP status codes back into the engine's error taxonomy so CLI
// code can use errors.IsNotFound and friends against remote calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/entity"
	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/version"
)

// Client talks to one Spuro server.
type Client struct {
	baseURL      string
	caller       string
	callerHeader string
	http         *http.Client
}

// New builds a client from configuration. The caller identity may be empty;
// mutating calls will then be rejected server-side.
func New(cfg config.ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:" + strconv.Itoa(config.DefaultServerPort)
	}
	return &Client{
		baseURL:      base,
		caller:       cfg.Caller,
		callerHeader: config.DefaultCallerHeader,
		http:         &http.Client{Timeout: cfg.Timeout()},
	}
}

// BaseURL reports the server address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Caller reports the identity sent with mutations.
func (c *Client) Caller() string { return c.caller }

type createRequest struct {
	Payload     []byte                  `json:"payload,omitempty"`
	ContentType string                  `json:"content_type,omitempty"`
	Attributes  map[string]entity.Value `json:"attributes,omitempty"`
	TTLSeconds  int64                   `json:"ttl_seconds"`
}

// UpdateRequest carries partial field updates; nil fields are untouched.
type UpdateRequest struct {
	Payload     *[]byte                  `json:"payload,omitempty"`
	ContentType *string                  `json:"content_type,omitempty"`
	Attributes  *map[string]entity.Value `json:"attributes,omitempty"`
	TTLSeconds  *int64                   `json:"ttl_seconds,omitempty"`
}

type transferRequest struct {
	EntityKey entity.Key   `json:"entity_key"`
	NewOwner  entity.Owner `json:"new_owner"`
}

// QueryResult is one page of query matches.
type QueryResult struct {
	Entities []*entity.Entity `json:"entities"`
	Count    int              `json:"count"`
}

// Create stores a new entity owned by the configured caller.
func (c *Client) Create(ctx context.Context, payload []byte, contentType string, attrs map[string]entity.Value, ttl time.Duration) (*entity.Entity, error) {
	req := createRequest{
		Payload:     payload,
		ContentType: contentType,
		Attributes:  attrs,
		TTLSeconds:  int64(ttl / time.Second),
	}
	var created entity.Entity
	if err := c.call(ctx, http.MethodPost, "/api/entities", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Get fetches one entity by key.
func (c *Client) Get(ctx context.Context, key entity.Key) (*entity.Entity, error) {
	var e entity.Entity
	if err := c.call(ctx, http.MethodGet, "/api/entities/"+url.PathEscape(string(key)), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Exists answers key existence without fetching the entity.
func (c *Client) Exists(ctx context.Context, key entity.Key) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "/api/entities/"+url.PathEscape(string(key)), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, errors.WrapUnavailable(err, "spuro server unreachable")
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.WrapUnavailable(errors.Newf("status %d", resp.StatusCode), "existence check")
	}
}

// GetPayload fetches the raw payload bytes and their content type.
func (c *Client) GetPayload(ctx context.Context, key entity.Key) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/entities/"+url.PathEscape(string(key))+"/payload", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", errors.WrapUnavailable(err, "spuro server unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.WrapUnavailable(err, "read payload")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Update applies partial field updates to a caller-owned entity.
func (c *Client) Update(ctx context.Context, key entity.Key, req UpdateRequest) error {
	return c.call(ctx, http.MethodPut, "/api/entities/"+url.PathEscape(string(key)), req, nil)
}

// Delete removes a caller-owned entity.
func (c *Client) Delete(ctx context.Context, key entity.Key) error {
	return c.call(ctx, http.MethodDelete, "/api/entities/"+url.PathEscape(string(key)), nil, nil)
}

// Transfer reassigns a caller-owned entity to a new owner.
func (c *Client) Transfer(ctx context.Context, key entity.Key, newOwner entity.Owner) error {
	return c.call(ctx, http.MethodPost, "/api/entities/transfer", transferRequest{EntityKey: key, NewOwner: newOwner}, nil)
}

// Query runs an attribute filter. Empty query matches everything; limit 0
// takes the server default.
func (c *Client) Query(ctx context.Context, query, order string, limit int, includePayload bool) (*QueryResult, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if order != "" {
		params.Set("order", order)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if includePayload {
		params.Set("include_payload", "true")
	}
	path := "/api/entities/query"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var result QueryResult
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ServerStatus is the server's self-report, kept loosely typed so older
// clients tolerate newer servers.
type ServerStatus map[string]json.RawMessage

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (ServerStatus, error) {
	var st ServerStatus
	if err := c.call(ctx, http.MethodGet, "/api/status", nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

// Health probes /health.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("X-Spuro-Client-Version", version.Version)
	if c.caller != "" {
		req.Header.Set(c.callerHeader, c.caller)
	}
	return req, nil
}

// call issues one JSON round trip. A non-2xx response becomes an error in
// the engine's taxonomy; out is optional.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = buf
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapUnavailable(err, "spuro server unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// statusError converts an error response back into the engine's taxonomy.
func statusError(resp *http.Response) error {
	msg := serverMessage(resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NewNotFoundf("%s", msg)
	case http.StatusForbidden:
		return errors.NewForbiddenf("%s", msg)
	case http.StatusBadRequest:
		return errors.NewInvalidInputf("%s", msg)
	case http.StatusServiceUnavailable:
		return errors.WrapUnavailable(errors.New(msg), "server")
	default:
		return errors.Newf("server returned %d: %s", resp.StatusCode, msg)
	}
}

func serverMessage(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
