// Package dhis2 talks to the DHIS2 Web API: it lists translatable metadata
// types, fetches objects with their translations, and writes updated objects
// back. Client implements dedupe.ObjectSource and dedupe.ObjectWriter.
package dhis2

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Authentication kinds.
const (
	AuthBasic = "basic"
	AuthToken = "token"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// Auth carries the credentials sent with every request.
type Auth struct {
	Kind     string
	Username string
	Password string
	Token    string
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Auth       Auth
	Timeout    time.Duration
	Proxy      string
	MaxRetries int
	UserAgent  string
	Log        *log.Logger
}

// Client is a DHIS2 Web API client.
type Client struct {
	base       string
	auth       Auth
	http       *http.Client
	maxRetries int
	userAgent  string
	log        *log.Logger

	// backoff returns the wait before retry attempt n (0-based).
	backoff func(n int) time.Duration
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", opts.BaseURL)
	}

	switch opts.Auth.Kind {
	case AuthBasic:
		if opts.Auth.Username == "" {
			return nil, fmt.Errorf("basic auth requires a username")
		}
	case AuthToken:
		if opts.Auth.Token == "" {
			return nil, fmt.Errorf("token auth requires a personal access token")
		}
	case "":
	default:
		return nil, fmt.Errorf("unknown auth kind %q (valid: basic, token)", opts.Auth.Kind)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Log
	if logger == nil {
		logger = log.Default()
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "d2dedup"
	}

	return &Client{
		base:       base,
		auth:       opts.Auth,
		http:       makeHTTPClient(opts.Proxy, timeout),
		maxRetries: retries,
		userAgent:  ua,
		log:        logger,
		backoff: func(n int) time.Duration {
			return time.Duration(math.Pow(2, float64(n))) * time.Second
		},
	}, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.base
}

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 300))
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	switch c.auth.Kind {
	case AuthBasic:
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	case AuthToken:
		req.Header.Set("Authorization", "ApiToken "+c.auth.Token)
	}
}

// do sends a request, retrying transport errors, 429 and 5xx responses with
// exponential backoff up to maxRetries times.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	endpoint := c.endpoint(path, query)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.authorize(req)

		c.log.Debug("request", "method", method, "url", endpoint, "attempt", attempt+1)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %w", method, endpoint, err)
			c.log.Warn("request failed", "method", method, "url", endpoint, "err", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("reading response from %s: %w", endpoint, readErr)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{Method: method, URL: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
			if statusErr.Temporary() {
				c.log.Warn("server error, retrying", "status", resp.StatusCode, "url", endpoint)
				lastErr = statusErr
				continue
			}
			return nil, statusErr
		}

		return respBody, nil
	}

	return nil, lastErr
}
