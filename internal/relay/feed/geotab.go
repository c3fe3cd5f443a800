package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/fleetrelay/internal/relay/core/model"
	"github.com/autopeer-io/fleetrelay/pkg/log"
)

const invalidUserException = "InvalidUserException"

// GeotabConfig configures a GeotabClient.
type GeotabConfig struct {
	Server       string
	Database     string
	Username     string
	Password     string
	Categories   []model.Category
	ResultsLimit int
	Timeout      time.Duration

	// Scheme defaults to https.
	Scheme string
}

// GeotabClient reads the MyGeotab data feed over its JSON-RPC API.
type GeotabClient struct {
	cfg        GeotabConfig
	httpClient *http.Client
	logger     log.Logger

	mu          sync.Mutex
	server      string
	credentials *geotabCredentials
	devices     map[string]model.Device
}

var _ Source = (*GeotabClient)(nil)

type geotabCredentials struct {
	Database  string `json:"database"`
	SessionID string `json:"sessionId,omitempty"`
	UserName  string `json:"userName"`
	Password  string `json:"password,omitempty"`
}

type rpcRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Errors  []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *rpcError) Error() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Name + ": " + e.Errors[0].Message
	}
	return e.Name + ": " + e.Message
}

func (e *rpcError) invalidUser() bool {
	if e.Name == invalidUserException {
		return true
	}
	for _, x := range e.Errors {
		if x.Name == invalidUserException {
			return true
		}
	}
	return false
}

// NewGeotabClient returns a client that authenticates on first use.
func NewGeotabClient(cfg GeotabConfig, logger log.Logger) *GeotabClient {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = []model.Category{model.CategoryGPS}
	}
	if logger == nil {
		logger = log.WithName("geotab")
	}
	return &GeotabClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		server:     cfg.Server,
		devices:    make(map[string]model.Device),
	}
}

// Authenticate opens a new API session, following a redirect to the server
// hosting the database.
func (c *GeotabClient) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticate(ctx)
}

func (c *GeotabClient) authenticate(ctx context.Context) error {
	var out struct {
		Credentials geotabCredentials `json:"credentials"`
		Path        string            `json:"path"`
	}
	params := map[string]any{
		"database": c.cfg.Database,
		"userName": c.cfg.Username,
		"password": c.cfg.Password,
	}
	if err := c.post(ctx, "Authenticate", params, &out); err != nil {
		return fmt.Errorf("authenticate %s@%s: %w", c.cfg.Username, c.cfg.Database, err)
	}
	if out.Credentials.SessionID == "" {
		return fmt.Errorf("authenticate %s@%s: no session issued", c.cfg.Username, c.cfg.Database)
	}

	if out.Path != "" && !strings.EqualFold(out.Path, "ThisServer") {
		c.server = out.Path
	}
	c.credentials = &out.Credentials
	c.logger.Info("Authenticated to feed", "server", c.server, "database", out.Credentials.Database)
	return nil
}

// call performs an authenticated request, signing in again once if the
// session was rejected. Must be called with mu held.
func (c *GeotabClient) call(ctx context.Context, method string, params map[string]any, out any) error {
	if c.credentials == nil {
		if err := c.authenticate(ctx); err != nil {
			return err
		}
	}

	params["credentials"] = c.credentials
	err := c.post(ctx, method, params, out)

	var rerr *rpcError
	if errors.As(err, &rerr) && rerr.invalidUser() {
		c.logger.Info("Feed session expired, authenticating again")
		c.credentials = nil
		if err := c.authenticate(ctx); err != nil {
			return err
		}
		params["credentials"] = c.credentials
		err = c.post(ctx, method, params, out)
	}
	return err
}

func (c *GeotabClient) post(ctx context.Context, method string, params map[string]any, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	endpoint := c.cfg.Scheme + "://" + c.server + "/apiv1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpc.Error != nil {
		return rpc.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
