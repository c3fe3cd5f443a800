package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const generateTokenPath = "/sharing/rest/generateToken"

// DefaultExpiration is requested when no lifetime is configured.
const DefaultExpiration = 6 * time.Hour

// maxResponseSize bounds how much of a portal reply is read.
const maxResponseSize = 1 << 20

// Portal issues bearer credentials.
type Portal interface {
	GenerateToken(ctx context.Context) (*Credential, error)
}

// PortalConfig describes how to authenticate against the token portal.
type PortalConfig struct {
	URL      string
	Username string
	Password string
	Referer  string

	// Expiration is the requested token lifetime, sent in whole minutes.
	Expiration time.Duration
	Timeout    time.Duration
}

// PortalClient talks to an ArcGIS-style generateToken endpoint.
type PortalClient struct {
	cfg        PortalConfig
	endpoint   string
	httpClient *http.Client
}

var _ Portal = (*PortalClient)(nil)

// NewPortalClient returns a client for cfg.URL.
func NewPortalClient(cfg PortalConfig) *PortalClient {
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	return &PortalClient{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.URL, "/") + generateTokenPath,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type generateTokenResponse struct {
	Token   string      `json:"token"`
	Expires json.Number `json:"expires"`
	Error   *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error,omitempty"`
}

// GenerateToken requests a new credential. Denials wrap ErrDenied, every other
// failure wraps ErrUnavailable.
func (c *PortalClient) GenerateToken(ctx context.Context) (*Credential, error) {
	form := url.Values{
		"username":   {c.cfg.Username},
		"password":   {c.cfg.Password},
		"client":     {"referer"},
		"referer":    {c.cfg.Referer},
		"f":          {"json"},
		"expiration": {strconv.Itoa(int(c.cfg.Expiration / time.Minute))},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s", ErrDenied, DenialSentinel, http.StatusText(resp.StatusCode))
	}
	if strings.Contains(string(body), DenialSentinel) {
		return nil, fmt.Errorf("%w: %s", ErrDenied, denialMessage(body))
	}

	return parseCredential(body)
}

func parseCredential(body []byte) (*Credential, error) {
	var out generateTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: portal error %d: %s", ErrUnavailable, out.Error.Code, out.Error.Message)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: response has no token", ErrUnavailable)
	}
	if out.Expires == "" {
		return nil, fmt.Errorf("%w: response has no expiry", ErrUnavailable)
	}
	millis, err := out.Expires.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expiry %q: %v", ErrUnavailable, out.Expires, err)
	}

	return &Credential{
		Token:     out.Token,
		ExpiresAt: time.UnixMilli(millis),
	}, nil
}

// denialMessage flattens a portal error reply into one line.
func denialMessage(body []byte) string {
	var out generateTokenResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Error == nil {
		return strings.TrimSpace(string(body))
	}
	if len(out.Error.Details) == 0 {
		return out.Error.Message
	}
	return out.Error.Message + " " + strings.Join(out.Error.Details, " ")
}
