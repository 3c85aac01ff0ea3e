// Package client is the caller-side handle for a remote key-value service.
package client

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

	"kvrpc/internal/api"
)

// ErrNotFound is returned by Get for a key the service does not hold.
var ErrNotFound = errors.New("ERROR: Invalid key")

// TransportError reports a failure of the remote call itself: connectivity,
// serialization or an unexpected status from the service.
type TransportError struct {
	Op     string
	Status int // 0 when no response was received
	Msg    string
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kv %s", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status=%d", e.Status)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, ": %s", e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

type Option func(*Client)

// WithHTTPClient makes the handle send through hc. A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every call. It is applied per request, so a shared
// http.Client passed through WithHTTPClient is left untouched. Zero disables
// the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client is safe for concurrent use.
type Client struct {
	root       string // http://host:port
	base       string // http://host:port/Name
	httpClient *http.Client
	timeout    time.Duration
}

// New returns a handle for the service bound under name at addr.
// addr is "host:port" or an http(s) URL.
func New(addr, name string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("address %q has no host", addr)
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return nil, fmt.Errorf("empty service name")
	}

	root := u.Scheme + "://" + u.Host
	c := &Client{
		root:       root,
		base:       root + "/" + url.PathEscape(name),
		httpClient: &http.Client{},
		timeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup resolves a service URL of the form "//host:port/Name" or
// "http://host:port/Name".
func Lookup(rawURL string, opts ...Option) (*Client, error) {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "http:" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing service url %q: %w", rawURL, err)
	}
	return New(u.Scheme+"://"+u.Host, u.Path, opts...)
}

// Get returns the value stored under key, or ErrNotFound. A 404 that does not
// come from the service, such as an unbound name, is a *TransportError.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	status, body, err := c.do(ctx, "get", http.MethodGet, c.keyURL(key), nil)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		var resp api.GetResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &TransportError{Op: "get", Status: status, Msg: "decoding response", Err: err}
		}
		return resp.Value, nil
	case http.StatusNotFound:
		var resp api.ErrorResponse
		if json.Unmarshal(body, &resp) == nil && resp.Error == ErrNotFound.Error() {
			return "", ErrNotFound
		}
		return "", statusError("get", status, body)
	default:
		return "", statusError("get", status, body)
	}
}

// Put hands the write to the service. A nil error means the write was
// accepted, not that it has been applied.
func (c *Client) Put(ctx context.Context, key, value string) error {
	status, body, err := c.do(ctx, "put", http.MethodPut, c.keyURL(key), []byte(value))
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return statusError("put", status, body)
	}
	return nil
}

// Delete hands the removal to the service. Missing keys are not reported.
func (c *Client) Delete(ctx context.Context, key string) error {
	status, body, err := c.do(ctx, "delete", http.MethodDelete, c.keyURL(key), nil)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return statusError("delete", status, body)
	}
	return nil
}

// GetAll returns a snapshot of every entry.
func (c *Client) GetAll(ctx context.Context) (map[string]string, error) {
	status, body, err := c.do(ctx, "getAll", http.MethodGet, c.base+"/kv", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError("getAll", status, body)
	}
	var resp api.GetAllResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Op: "getAll", Status: status, Msg: "decoding response", Err: err}
	}
	if resp.Entries == nil {
		resp.Entries = map[string]string{}
	}
	return resp.Entries, nil
}

// Keys lists the keys held by the server, sorted.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	status, body, err := c.do(ctx, "keys", http.MethodGet, c.root+"/debug/keys", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError("keys", status, body)
	}
	var resp api.KeysResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Op: "keys", Status: status, Msg: "decoding response", Err: err}
	}
	return resp.Keys, nil
}

func (c *Client) keyURL(key string) string {
	return c.base + "/kv/" + url.PathEscape(key)
}

func (c *Client) do(ctx context.Context, op, method, target string, payload []byte) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Msg: "building request", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Op: op, Status: resp.StatusCode, Msg: "reading response", Err: err}
	}
	return resp.StatusCode, data, nil
}

func statusError(op string, status int, body []byte) error {
	var resp api.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &resp) == nil && resp.Error != "" {
		msg = resp.Error
	}
	return &TransportError{Op: op, Status: status, Msg: msg}
}
