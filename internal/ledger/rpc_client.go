package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"price-relay/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPC error code returned by getAccount when the account is missing.
const rpcCodeAccountNotFound = -32600

// HTTPClient implements Client using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new ledger RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error returned by the ledger.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures, 429 and non-200 responses are retried; RPC errors are not.
func (c *HTTPClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	started := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(started).Seconds())
	}()

	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// getAccountResult is the raw RPC response for getAccount.
type getAccountResult struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

// GetAccount retrieves the account state, including its current sequence number.
func (c *HTTPClient) GetAccount(ctx context.Context, address string) (*Account, error) {
	params := map[string]interface{}{
		"address": address,
	}

	var result getAccountResult
	if err := c.call(ctx, "getAccount", params, &result); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == rpcCodeAccountNotFound {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, err
	}

	if result.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	seq, err := strconv.ParseInt(result.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse sequence %q: %w", result.Sequence, err)
	}

	return &Account{ID: result.ID, Sequence: seq}, nil
}

// simulateResult is the raw RPC response for simulateTransaction.
type simulateResult struct {
	Error          string `json:"error,omitempty"`
	MinResourceFee string `json:"minResourceFee,omitempty"`
	LatestLedger   int64  `json:"latestLedger"`
}

// SimulateTransaction dry-runs an envelope.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, envelope string) (*SimulateResult, error) {
	params := map[string]interface{}{
		"transaction": envelope,
	}

	var result simulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, err
	}

	out := &SimulateResult{
		Error:        result.Error,
		LatestLedger: result.LatestLedger,
	}
	if result.MinResourceFee != "" {
		fee, err := strconv.ParseInt(result.MinResourceFee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse minResourceFee %q: %w", result.MinResourceFee, err)
		}
		out.MinResourceFee = fee
	}

	return out, nil
}

// sendResult is the raw RPC response for sendTransaction.
type sendResult struct {
	Hash           string `json:"hash"`
	Status         string `json:"status"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
	LatestLedger   int64  `json:"latestLedger"`
}

// SendTransaction submits a signed envelope.
func (c *HTTPClient) SendTransaction(ctx context.Context, envelope string) (*SendResult, error) {
	params := map[string]interface{}{
		"transaction": envelope,
	}

	var result sendResult
	if err := c.call(ctx, "sendTransaction", params, &result); err != nil {
		return nil, err
	}

	return &SendResult{
		Hash:         result.Hash,
		Status:       SendStatus(result.Status),
		ErrorResult:  result.ErrorResultXDR,
		LatestLedger: result.LatestLedger,
	}, nil
}

// getTransactionResult is the raw RPC response for getTransaction.
type getTransactionResult struct {
	Status       string `json:"status"`
	Ledger       int64  `json:"ledger,omitempty"`
	ResultError  string `json:"resultError,omitempty"`
	LatestLedger int64  `json:"latestLedger"`
}

// GetTransaction retrieves the inclusion status of a transaction.
func (c *HTTPClient) GetTransaction(ctx context.Context, hash string) (*TransactionStatus, error) {
	params := map[string]interface{}{
		"hash": hash,
	}

	var result getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}

	status := TxStatus(result.Status)
	if status == "" {
		status = TxStatusNotFound
	}

	return &TransactionStatus{
		Hash:        hash,
		Status:      status,
		Ledger:      result.Ledger,
		ResultError: result.ResultError,
	}, nil
}
