// Package identity provides a REST client scoped to an identity host,
// along with the URL conventions of its notification endpoints.
package identity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/homebase-id/odin-notify/internal/model"
)

// APIType selects the API surface of the identity host.
type APIType string

const (
	APITypeOwner APIType = "owner"
	APITypeApps  APIType = "apps"
	APITypeGuest APIType = "guest"
)

// Valid reports whether t is a known API type.
func (t APIType) Valid() bool {
	return t == APITypeOwner || t == APITypeApps || t == APITypeGuest
}

const (
	defaultRequestTimeout = 10 * time.Second

	// Paths relative to the API root.
	PathNotifySocket = "/notify/ws"
	PathPreauth      = "/notify/preauth"
	PathPeerToken    = "/notify/peer/token"
	PathPeerSocket   = "/notify/peer/ws"
)

// Options configures a Client.
type Options struct {
	// Host is the identity host, optionally with a port.
	Host    string
	APIType APIType

	// Token is the client authentication token presented as a bearer token
	// on every request and on the websocket upgrade.
	Token string

	// SharedSecret is the symmetric key for payload encryption.
	SharedSecret []byte

	// Insecure selects http/ws instead of https/wss.
	Insecure bool

	HTTPClient *http.Client
}

// Client talks to one identity host.
type Client struct {
	options    Options
	httpClient *http.Client
	jar        http.CookieJar
}

// NewClient creates a Client. A cookie jar is shared between REST calls
// and websocket dials so pre-auth cookies reach the socket upgrade.
func NewClient(options *Options) (*Client, error) {
	if options == nil {
		return nil, fmt.Errorf("nil identity options")
	}
	if options.Host == "" {
		return nil, fmt.Errorf("invalid Host=%q", options.Host)
	}
	if !options.APIType.Valid() {
		return nil, fmt.Errorf("invalid APIType=%q", options.APIType)
	}

	var httpClient *http.Client
	if options.HTTPClient != nil {
		clone := *options.HTTPClient
		httpClient = &clone
	} else {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	c := &Client{
		options:    *options,
		httpClient: httpClient,
		jar:        httpClient.Jar,
	}
	return c, nil
}

// Host returns the identity host.
func (c *Client) Host() string { return c.options.Host }

// APIType returns the API surface this client uses.
func (c *Client) APIType() APIType { return c.options.APIType }

// SharedSecret returns the payload encryption key.
func (c *Client) SharedSecret() []byte { return c.options.SharedSecret }

// Insecure reports whether plain http/ws is used.
func (c *Client) Insecure() bool { return c.options.Insecure }

// Jar returns the cookie jar shared with websocket dials.
func (c *Client) Jar() http.CookieJar { return c.jar }

// BaseURL returns the REST root, e.g. https://host/api/owner/v1.
func (c *Client) BaseURL() string {
	return BaseURL(c.options.Host, c.options.APIType, c.options.Insecure)
}

// WebsocketURL returns the websocket URL for path under this client's API root.
func (c *Client) WebsocketURL(path string) string {
	return WebsocketURL(c.options.Host, c.options.APIType, c.options.Insecure, path)
}

// AuthHeader returns the headers authenticating this client.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.options.Token != "" {
		h.Set("Authorization", "Bearer "+c.options.Token)
	}
	return h
}

// Post sends in as JSON to path and decodes the response into out when out is non-nil.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range c.AuthHeader() {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("POST %s: failed to decode response: %w", path, err)
	}
	return nil
}

// Preauth performs the notification pre-authentication call. The host
// answers with cookies that authenticate the following socket upgrade.
func (c *Client) Preauth(ctx context.Context) error {
	return c.Post(ctx, PathPreauth, struct{}{}, nil)
}

// PeerToken is the result of a peer token exchange.
type PeerToken struct {
	AuthenticationToken64 string
	SharedSecret          []byte
}

type peerTokenRequest struct {
	Identity string `json:"identity"`
}

type peerTokenResponse struct {
	AuthenticationToken64 string `json:"authenticationToken64"`
	SharedSecret          string `json:"sharedSecret"`
}

// PeerToken exchanges this client's credentials for a short-lived token
// and shared secret valid on the remote identity host.
func (c *Client) PeerToken(ctx context.Context, identity string) (*PeerToken, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", model.ErrPeerTokenExchange)
	}

	var resp peerTokenResponse
	if err := c.Post(ctx, PathPeerToken, &peerTokenRequest{Identity: identity}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPeerTokenExchange, err)
	}

	if resp.AuthenticationToken64 == "" || resp.SharedSecret == "" {
		return nil, fmt.Errorf("%w: incomplete response", model.ErrPeerTokenExchange)
	}

	secret, err := base64.StdEncoding.DecodeString(resp.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: bad shared secret: %v", model.ErrPeerTokenExchange, err)
	}

	return &PeerToken{
		AuthenticationToken64: resp.AuthenticationToken64,
		SharedSecret:          secret,
	}, nil
}
