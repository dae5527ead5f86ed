// Package transport implements the HTTP plumbing shared by the CI provider
// adapters: base URL handling, authentication, JSON encoding and the
// expected-status check every provider operation performs.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/bincrafters/envy/internal/metrics"
)

// StatusError is returned when a provider answers with a status code other
// than the one the operation expects.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Expected   int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unsuccessful status code %d (expected %d): %s", e.Method, e.URL, e.StatusCode, e.Expected, e.Body)
}

// IsNotFound reports whether err is a StatusError carrying 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type HeaderSetter interface {
	SetHeader(*http.Request) error
}

// TokenAuth sets "Authorization: <Scheme> <Token>".
type TokenAuth struct {
	Scheme string
	Token  string
}

func (a TokenAuth) SetHeader(req *http.Request) error {
	if a.Token == "" {
		return errors.New("empty token")
	}
	req.Header.Set("Authorization", a.Scheme+" "+a.Token)
	return nil
}

// BasicAuth uses HTTP basic authentication. CircleCI and Azure DevOps accept
// the API token as the user name with an empty password.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) SetHeader(req *http.Request) error {
	if a.Username == "" && a.Password == "" {
		return errors.New("empty basic auth credentials")
	}
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}

// Client talks to a single provider API rooted at a base URL.
type Client struct {
	name    string
	base    string
	headers map[string]string
	auth    HeaderSetter
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a client for the provider called name. Paths passed to Do are
// appended verbatim to base, so they may carry pre-escaped segments such as
// Travis' "owner%2Frepo".
func New(name, base string) *Client {
	return &Client{name: name, base: strings.TrimRight(base, "/"), headers: map[string]string{}, client: http.DefaultClient}
}

func (c *Client) WithHeaders(headers map[string]string) *Client {
	for k, v := range headers {
		c.headers[k] = v
	}
	return c
}

func (c *Client) WithAuth(auth HeaderSetter) *Client {
	c.auth = auth
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.client = client
	}
	return c
}

// WithRateLimit limits the client to rps requests per second. Zero or a
// negative value disables limiting.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	} else {
		c.limiter = nil
	}
	return c
}

// Base returns the base URL of the client.
func (c *Client) Base() string {
	return c.base
}

// Get is shorthand for a GET expecting 200.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, http.StatusOK, out)
}

// Do sends a request and checks the response status. A non-nil body is JSON
// encoded unless it already is a []byte or json.RawMessage. The response is
// decoded into out when out is non-nil; *[]byte receives the raw body.
func (c *Client) Do(ctx context.Context, method, path string, body any, expected int, out any) error {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case json.RawMessage:
		reader = bytes.NewReader(b)
	default:
		bs, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	if c.auth != nil {
		if err := c.auth.SetHeader(req); err != nil {
			return fmt.Errorf("%s authentication: %w", c.name, err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.HTTPRequest(c.name, method, 0)
		return err
	}
	defer resp.Body.Close()

	metrics.HTTPRequest(c.name, method, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, url, err)
	}

	if resp.StatusCode != expected {
		return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Expected: expected, Body: strings.ToValidUTF8(string(data), "�")}
	}

	switch out := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = data
		return nil
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, url, err)
		}
		return nil
	}
}

func (c *Client) setHeaders(req *http.Request) {
	for name, value := range c.headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
}
