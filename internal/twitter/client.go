package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	oauthtwitter "github.com/dghubble/oauth1/twitter"
	"github.com/google/uuid"
)

// API is the remote surface the background engine needs. It is implemented
// by *Client and faked in tests.
type API interface {
	RequestGrant(ctx context.Context) (Grant, error)
	AuthorizeURL(grant Grant) (string, error)
	ExchangePIN(ctx context.Context, grant Grant, pin string) (Token, Identity, error)
	Verify(ctx context.Context, token Token) (Identity, error)
	HomePage(ctx context.Context, token Token, cursor Cursor, mode Mode, pageSize int) (Cursor, []Tweet, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

const (
	defaultBaseURL   = "https://api.twitter.com"
	defaultUserAgent = "perch/0.1"
	requestTimeout   = 15 * time.Second

	envConsumerKey    = "TWITTER_CLIENT_ID"
	envConsumerSecret = "TWITTER_CLIENT_SECRET"
)

// ErrNoConsumer is returned when the application consumer credentials are missing.
var ErrNoConsumer = errors.New("twitter consumer key/secret not configured")

// Options configures a Client. Empty fields use the public Twitter endpoints.
type Options struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	HTTPClient     *http.Client
}

// OptionsFromEnv reads the consumer credentials from the environment.
func OptionsFromEnv() Options {
	return Options{
		ConsumerKey:    strings.TrimSpace(os.Getenv(envConsumerKey)),
		ConsumerSecret: strings.TrimSpace(os.Getenv(envConsumerSecret)),
	}
}

// Client talks to the Twitter v1.1 REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	oauth     *oauth1.Config
	userAgent string
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.ConsumerKey == "" || opts.ConsumerSecret == "" {
		return nil, ErrNoConsumer
	}
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	endpoint := oauthtwitter.AuthorizeEndpoint
	if strings.TrimSpace(opts.BaseURL) != "" {
		endpoint = oauth1.Endpoint{
			RequestTokenURL: base.ResolveReference(&url.URL{Path: "/oauth/request_token"}).String(),
			AuthorizeURL:    base.ResolveReference(&url.URL{Path: "/oauth/authorize"}).String(),
			AccessTokenURL:  base.ResolveReference(&url.URL{Path: "/oauth/access_token"}).String(),
		}
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		oauth: &oauth1.Config{
			ConsumerKey:    opts.ConsumerKey,
			ConsumerSecret: opts.ConsumerSecret,
			CallbackURL:    "oob",
			Endpoint:       endpoint,
			HTTPClient:     httpClient,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// RequestGrant obtains a temporary request token for the PIN flow.
func (c *Client) RequestGrant(ctx context.Context) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	token, secret, err := c.handshake(ctx).RequestToken()
	if err != nil {
		return Grant{}, fmt.Errorf("request token: %w", err)
	}
	return Grant{ID: uuid.New(), Token: token, Secret: secret}, nil
}

// AuthorizeURL returns the page where the user approves the grant and obtains a PIN.
func (c *Client) AuthorizeURL(grant Grant) (string, error) {
	u, err := c.oauth.AuthorizationURL(grant.Token)
	if err != nil {
		return "", fmt.Errorf("authorization url: %w", err)
	}
	return u.String(), nil
}

// ExchangePIN trades the grant and the user-entered PIN for an access token,
// then resolves the account identity.
func (c *Client) ExchangePIN(ctx context.Context, grant Grant, pin string) (Token, Identity, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return Token{}, Identity{}, fmt.Errorf("pin is empty")
	}
	if err := ctx.Err(); err != nil {
		return Token{}, Identity{}, err
	}
	key, secret, err := c.handshake(ctx).AccessToken(grant.Token, grant.Secret, pin)
	if err != nil {
		return Token{}, Identity{}, fmt.Errorf("access token: %w", err)
	}
	token := Token{Key: key, Secret: secret}
	ident, err := c.Verify(ctx, token)
	if err != nil {
		return Token{}, Identity{}, err
	}
	return token, ident, nil
}

// Verify checks that token is still accepted and returns the account behind it.
func (c *Client) Verify(ctx context.Context, token Token) (Identity, error) {
	var ident Identity
	rel := &url.URL{Path: "/1.1/account/verify_credentials.json"}
	if token.IsBearer() {
		// App-only tokens have no user context.
		rel = &url.URL{Path: "/1.1/application/rate_limit_status.json"}
		if err := c.doURL(ctx, token, rel, nil); err != nil {
			return Identity{}, err
		}
		return Identity{Name: "application"}, nil
	}
	if err := c.doURL(ctx, token, rel, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// HomePage fetches one page of the home timeline relative to cursor and
// returns the advanced cursor.
func (c *Client) HomePage(ctx context.Context, token Token, cursor Cursor, mode Mode, pageSize int) (Cursor, []Tweet, error) {
	mode = cursor.resolve(mode)
	rel := &url.URL{
		Path:     "/1.1/statuses/home_timeline.json",
		RawQuery: cursor.query(mode, pageSize).Encode(),
	}
	var page []Tweet
	if err := c.doURL(ctx, token, rel, &page); err != nil {
		return cursor, nil, err
	}
	return cursor.advance(mode, page), page, nil
}

// handshake returns the oauth config with an HTTP client bound to ctx. The
// token endpoints take no context of their own.
func (c *Client) handshake(ctx context.Context) *oauth1.Config {
	httpClient := *c.http
	httpClient.Transport = contextTransport{ctx: ctx, base: c.http.Transport}
	cfg := *c.oauth
	cfg.HTTPClient = &httpClient
	return &cfg
}

func (c *Client) authorized(ctx context.Context, token Token) (*http.Client, error) {
	if !token.Valid() {
		return nil, fmt.Errorf("no credential")
	}
	if token.IsBearer() {
		return &http.Client{
			Timeout:   c.http.Timeout,
			Transport: bearerTransport{token: token.Bearer, base: c.http.Transport},
		}, nil
	}
	ctx = context.WithValue(ctx, oauth1.HTTPClient, c.http)
	return c.oauth.Client(ctx, oauth1.NewToken(token.Key, token.Secret)), nil
}

func (c *Client) doURL(ctx context.Context, token Token, rel *url.URL, dest any) error {
	httpClient, err := c.authorized(ctx, token)
	if err != nil {
		return err
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return base.RoundTrip(clone)
}

type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
