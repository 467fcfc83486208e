package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

const (
	DefaultTimeout = 15 * time.Second
	SocketPath     = "/ws/orders"

	maxErrorBody = 64 << 10
)

// Client talks to the canteen order service. Authentication rides on the
// cookie jar of the underlying http.Client.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the transport client. Its own Timeout is left
// untouched; the per-request timeout of WithTimeout still applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.client.Jar = jar
	}
}

// WithTimeout sets the per-request deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Jar() http.CookieJar {
	return c.client.Jar
}

// SocketURL is the push channel endpoint for this client's base URL.
func (c *Client) SocketURL() string {
	return socketURL(c.baseURL)
}

// SocketURL derives the push channel URL from an API base URL by swapping
// http for ws (https for wss) and replacing the path.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return socketURL(u), nil
}

func socketURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = SocketPath
	u.RawPath = ""
	return u.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. Non-success statuses become *Error, transport
// failures ErrNetwork, an expired client deadline errors.Timeout. out may be
// nil when the body is not needed.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(parent, ctx, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Detail: detailFromBody(resp.StatusCode, data),
			kind:   kindForStatus(resp.StatusCode),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return c.transportError(parent, ctx, method, path, err)
		}
		return malformed(path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) transportError(parent, ctx context.Context, method, path string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s %s: %w", method, path, parent.Err())
	}
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s %s after %s", errors.Timeout, method, path, c.timeout)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
}

type validator interface {
	Validate() error
}

func getOne[T any, P interface {
	*T
	validator
}](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	var v T
	if err := c.do(ctx, http.MethodGet, path, query, nil, &v); err != nil {
		return nil, err
	}
	if err := P(&v).Validate(); err != nil {
		return nil, malformed(path, err)
	}
	return &v, nil
}

func getList[T any, P interface {
	*T
	validator
}](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var vs []T
	if err := c.do(ctx, http.MethodGet, path, query, nil, &vs); err != nil {
		return nil, err
	}
	for i := range vs {
		if err := P(&vs[i]).Validate(); err != nil {
			return nil, malformed(path, fmt.Errorf("element %d: %w", i, err))
		}
	}
	return vs, nil
}

// send performs a mutation whose response body is a single T.
func send[T any, P interface {
	*T
	validator
}](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var v T
	if err := c.do(ctx, method, path, nil, body, &v); err != nil {
		return nil, err
	}
	if err := P(&v).Validate(); err != nil {
		return nil, malformed(path, err)
	}
	return &v, nil
}
