package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oxyledger/oxyregistry/internal/domain/activity"
	"github.com/oxyledger/oxyregistry/internal/domain/registry"
	"github.com/oxyledger/oxyregistry/internal/rpc"
	"github.com/oxyledger/oxyregistry/internal/transport"
)

const defaultTimeout = 30 * time.Second

// Client calls the registry JSON-RPC endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every call.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/rpc",
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	JSONRPC string           `json:"jsonrpc"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *transport.Error `json:"error,omitempty"`
	ID      string           `json:"id"`
}

// Call invokes method with params and decodes the result into out. A
// JSON-RPC error is returned as *transport.Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	id := uuid.NewString()
	payload := transport.Request{JSONRPC: "2.0", Method: method, ID: id}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding params: %w", err)
		}
		payload.Params = raw
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("calling %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if rpcResp.ID != id {
		return fmt.Errorf("response id %q does not match request %q", rpcResp.ID, id)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// CreateProject registers a new project.
func (c *Client) CreateProject(ctx context.Context) (uint64, error) {
	var out rpc.ProjectCreated
	if err := c.Call(ctx, "createProject", nil, &out); err != nil {
		return 0, err
	}
	return out.ProjectID, nil
}

// CreateNewTokenBatch creates a batch under projectID.
func (c *Client) CreateNewTokenBatch(ctx context.Context, projectID uint64) (uint64, error) {
	var out rpc.BatchCreated
	if err := c.Call(ctx, "createNewTokenBatch", rpc.CreateNewTokenBatchParams{ProjectID: &projectID}, &out); err != nil {
		return 0, err
	}
	return out.TokenID, nil
}

// Mint attaches amount and serialNumber to a batch.
func (c *Client) Mint(ctx context.Context, tokenID, amount uint64, serialNumber string) error {
	return c.Call(ctx, "mint", rpc.MintParams{
		TokenID:      &tokenID,
		Amount:       &amount,
		SerialNumber: serialNumber,
	}, nil)
}

// Counters returns projectsCreated and tokenIds.
func (c *Client) Counters(ctx context.Context) (projects, tokens uint64, err error) {
	if err := c.Call(ctx, "projectsCreated", nil, &projects); err != nil {
		return 0, 0, err
	}
	if err := c.Call(ctx, "tokenIds", nil, &tokens); err != nil {
		return 0, 0, err
	}
	return projects, tokens, nil
}

// Batch returns one batch.
func (c *Client) Batch(ctx context.Context, tokenID uint64) (registry.Batch, error) {
	var out registry.Batch
	err := c.Call(ctx, "getBatch", rpc.TokenParams{TokenID: &tokenID}, &out)
	return out, err
}

// RecentActivity lists ledger entries.
func (c *Client) RecentActivity(ctx context.Context, params rpc.ActivityParams) ([]activity.Entry, error) {
	var out []activity.Entry
	if err := c.Call(ctx, "getRecentActivity", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}
