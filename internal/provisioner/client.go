package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	tokenRedisKey = "fulcrum:provisioner:token"
	tokenPath     = "/oauth/token"
	catalogPath   = "/tmf-api/serviceCatalogManagement/v4/serviceSpecification"
	orderPath     = "/tmf-api/serviceOrderingManagement/v4/serviceOrder"
)

// RejectionError is a definitive refusal from the provisioning platform:
// the order reached it and was turned down. Distinct from the platform
// being unreachable.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("provisioning platform rejected the request (status %d): %s", e.StatusCode, e.Body)
}

// Receipt acknowledges an accepted order.
type Receipt struct {
	OrderID string           `json:"id"`
	State   types.OrderState `json:"state"`
}

// Spec is one catalog service specification as listed by the platform.
type Spec struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Version         string `json:"version,omitempty"`
	LifecycleStatus string `json:"lifecycleStatus,omitempty"`
	LastUpdate      string `json:"lastUpdate,omitempty"`
}

// Client talks to the provisioning platform: authentication, catalog
// listing, order submission, and order status. Bearer tokens are cached in
// Redis when available so concurrent processes share them; without Redis a
// per-process cache is used. Retry/backoff policy beyond one re-auth on 401
// belongs to callers, not here.
type Client struct {
	cfg    func() config.ProvisionerConfig
	client *http.Client
	rdb    *redis.Client

	mu    sync.Mutex
	token string
}

func NewClient(cfg func() config.ProvisionerConfig, rdb *redis.Client) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg().Timeout,
		},
		rdb: rdb,
	}
}

// Authenticate obtains a bearer token via the password grant, preferring a
// cached one.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if tok := c.cachedToken(ctx); tok != "" {
		return tok, nil
	}

	cfg := c.cfg()
	form := url.Values{
		"grant_type": {"password"},
		"username":   {cfg.Username},
		"password":   {cfg.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provisioning platform unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("authentication returned an empty token")
	}

	c.storeToken(ctx, tok.AccessToken, tok.ExpiresIn)
	return tok.AccessToken, nil
}

func (c *Client) cachedToken(ctx context.Context) string {
	if c.rdb != nil {
		if tok, err := c.rdb.Get(ctx, tokenRedisKey).Result(); err == nil && tok != "" {
			return tok
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) storeToken(ctx context.Context, token string, expiresIn int) {
	if c.rdb != nil {
		ttl := time.Duration(expiresIn-30) * time.Second
		if ttl > 0 {
			c.rdb.Set(ctx, tokenRedisKey, token, ttl)
		}
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) dropToken(ctx context.Context) {
	if c.rdb != nil {
		c.rdb.Del(ctx, tokenRedisKey)
	}
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// GetCatalog lists every service specification the platform offers.
func (c *Client) GetCatalog(ctx context.Context) ([]Spec, error) {
	body, err := c.do(ctx, http.MethodGet, catalogPath, nil)
	if err != nil {
		return nil, err
	}
	var specs []Spec
	if err := json.Unmarshal(body, &specs); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return specs, nil
}

// SubmitOrder submits a service order. Submission is a point of no return:
// callers must not assume a failed response means the order was not created.
func (c *Client) SubmitOrder(ctx context.Context, order *types.ServiceOrder) (*Receipt, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, orderPath, payload)
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal order receipt: %w", err)
	}
	if receipt.OrderID == "" {
		return nil, fmt.Errorf("platform acknowledged without an order id")
	}
	return &receipt, nil
}

// GetOrderStatus reports the platform-side state of a submitted order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (types.OrderState, error) {
	body, err := c.do(ctx, http.MethodGet, orderPath+"/"+url.PathEscape(orderID), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		State types.OrderState `json:"state"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal order status: %w", err)
	}
	return out.State, nil
}

// do performs an authenticated call, re-authenticating once on 401.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, status, err := c.attempt(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		slog.Info("provisioner token expired, re-authenticating")
		c.dropToken(ctx)
		body, status, err = c.attempt(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}
	if status >= 200 && status < 300 {
		return body, nil
	}
	if status >= 400 && status < 500 {
		return nil, &RejectionError{StatusCode: status, Body: string(body)}
	}
	return nil, fmt.Errorf("provisioning platform returned status %d: %s", status, string(body))
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg().BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("provisioning platform unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
