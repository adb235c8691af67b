package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://graph.facebook.com"

const DefaultVersion = "v2.6"

// RawPage is one page of a paginated collection: the items plus an opaque
// continuation URL. An empty Next means the final page.
type RawPage struct {
	Data []json.RawMessage
	Next string
}

type rawPage struct {
	Data   *[]json.RawMessage `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type rawErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Backoff retries a request with exponential delays. The zero value never
// retries.
type Backoff struct {
	MaxRetries int
	Base       time.Duration
}

// Retry calls fn up to MaxRetries+1 times, sleeping Base<<attempt between
// attempts. A cancelled context stops the retries immediately.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == b.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Base << attempt):
		}
	}
	return lastErr
}

// Client talks to the Graph-style source API. All requests carry the access
// token and pass through the rate limiter before hitting the wire.
type Client struct {
	BaseURL     string
	Version     string
	AccessToken string
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
	Backoff     Backoff
}

func NewClient(accessToken string) *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		Version:     DefaultVersion,
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		Backoff:     Backoff{MaxRetries: 3, Base: time.Second},
	}
}

// GetPage requests a collection page addressed by path segments under the
// API version prefix, e.g. {"12345", "comments"}.
func (c *Client) GetPage(ctx context.Context, path []string, params url.Values) (*RawPage, error) {
	raw, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return decodePage(raw)
}

// GetPageURL requests a continuation URL handed back by a previous page.
func (c *Client) GetPageURL(ctx context.Context, pageURL string) (*RawPage, error) {
	raw, err := c.getURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return decodePage(raw)
}

// GetObject requests a single object (not a collection) addressed by path
// segments under the API version prefix.
func (c *Client) GetObject(ctx context.Context, path []string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, path, params)
}

func (c *Client) get(ctx context.Context, path []string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	} else {
		copied := url.Values{}
		for k, vs := range params {
			copied[k] = vs
		}
		params = copied
	}
	params.Set("access_token", c.AccessToken)
	target := fmt.Sprintf("%s/%s/%s?%s",
		c.BaseURL, c.Version, strings.Join(path, "/"), params.Encode())
	return c.getURL(ctx, target)
}

func (c *Client) getURL(ctx context.Context, target string) (body json.RawMessage, err error) {
	err = c.Backoff.Retry(ctx, func() error {
		body, err = c.getOnce(ctx, target)
		return err
	})
	return body, err
}

func (c *Client) getOnce(ctx context.Context, target string) (json.RawMessage, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode, Message: remoteMessage(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("non-JSON response from source on URL %s", target)
	}
	return body, nil
}

// remoteMessage extracts the remote-reported message from an error envelope
// when parseable, else returns the raw body.
func remoteMessage(body []byte) string {
	var envelope rawErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}

func decodePage(raw json.RawMessage) (*RawPage, error) {
	var rp rawPage
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	if rp.Data == nil {
		return nil, ErrMalformedPage
	}
	page := &RawPage{Data: *rp.Data}
	if rp.Paging != nil {
		page.Next = rp.Paging.Next
	}
	return page, nil
}
