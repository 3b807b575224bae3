// Package statusnet is a client for the StatusNet API extension served by
// GNU social and StatusNet microblogging servers.
package statusnet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tkrehbiel/statuslace/telemetry"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "statuslace/0.1"

	// maxResponseBytes caps how much of a response body is read
	maxResponseBytes = 8 << 20
)

// Options configures a Client
type Options struct {
	APIRoot    string // e.g. https://example.net/api
	Username   string // HTTP basic auth, optional
	Password   string
	UserAgent  string
	Timeout    time.Duration
	Signer     *Signer      // signs outgoing requests when set
	HTTPClient *http.Client // overrides Timeout when set
}

// Client calls a single StatusNet server. It is safe for concurrent use.
type Client struct {
	root       *url.URL
	opts       Options
	httpClient *http.Client
}

// NewClient validates the options and creates a client
func NewClient(opts Options) (*Client, error) {
	if opts.APIRoot == "" {
		return nil, fmt.Errorf("no api root")
	}
	root, err := url.Parse(opts.APIRoot)
	if err != nil {
		return nil, fmt.Errorf("parsing api root [%s]: %w", opts.APIRoot, err)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("api root [%s] is not an http url", opts.APIRoot)
	}
	if root.Host == "" {
		return nil, fmt.Errorf("api root [%s] has no host", opts.APIRoot)
	}
	root.RawQuery = ""
	root.Fragment = ""

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		root:       root,
		opts:       opts,
		httpClient: httpClient,
	}, nil
}

// Host is the server host name, used as a key for per-server data
func (c *Client) Host() string {
	return c.root.Host
}

// GetConfig fetches the server configuration
func (c *Client) GetConfig(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	err := c.call(ctx, configRoute, nil, nil, func(body []byte) (err error) {
		cfg, err = ParseServerConfig(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConversation fetches the statuses of a conversation.
// The id is the conversation id StatusNet puts in statusnet_conversation_id.
func (c *Client) GetConversation(ctx context.Context, id string, paging Paging) ([]Status, error) {
	var statuses []Status
	err := c.call(ctx, conversationRoute, map[string]string{"id": id}, paging.Values(), func(body []byte) (err error) {
		statuses, err = ParseStatuses(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// ShowStatus fetches a single status
func (c *Client) ShowStatus(ctx context.Context, id string) (*Status, error) {
	var status Status
	err := c.call(ctx, showStatusRoute, map[string]string{"id": id}, nil, func(body []byte) (err error) {
		status, err = ParseStatus(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) newRequest(ctx context.Context, rt route, params map[string]string, query url.Values) (*http.Request, error) {
	u, err := rt.resolve(c.root, params, query)
	if err != nil {
		return nil, err
	}
	r, err := http.NewRequestWithContext(ctx, rt.method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Accept", rt.accept)
	r.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.Username != "" {
		r.SetBasicAuth(c.opts.Username, c.opts.Password)
	}
	if c.opts.Signer != nil {
		if err := c.opts.Signer.Sign(r); err != nil {
			return nil, fmt.Errorf("signing request: %w", err)
		}
	}
	return r, nil
}

// call performs one request and hands a successful body to decode.
// Every failure comes back as a *ServiceCallError.
func (c *Client) call(ctx context.Context, rt route, params map[string]string, query url.Values, decode func([]byte) error) error {
	fail := func(r *http.Request, code int, body []byte, err error) error {
		sce := &ServiceCallError{
			Op:         rt.op,
			Method:     rt.method,
			StatusCode: code,
			Body:       truncateBody(body),
			Err:        err,
		}
		if r != nil {
			sce.URL = redact(r.URL)
		}
		telemetry.Increment("api_failures", 1)
		return sce
	}

	r, err := c.newRequest(ctx, rt, params, query)
	if err != nil {
		return fail(nil, 0, nil, err)
	}

	telemetry.Trace("%s %s", r.Method, r.URL)
	telemetry.Increment("api_requests", 1)
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return fail(r, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(r, resp.StatusCode, nil, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(r, resp.StatusCode, body, ErrUnexpectedStatus)
	}
	if err := decode(body); err != nil {
		return fail(r, resp.StatusCode, body, err)
	}
	return nil
}

func redact(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	c := *u
	c.User = nil
	return c.String()
}
