package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrHeightMismatch is returned when a node answers a height-scoped
// query with data for a different height. Retrying the same node will
// not help; callers should treat it as permanent for the attempt.
var ErrHeightMismatch = errors.New("rpc: response height does not match requested height")

// ErrTxCountMismatch is returned when tx_search returns fewer
// transactions than the block header advertises, usually because the
// node has not finished indexing the block yet.
var ErrTxCountMismatch = errors.New("rpc: tx_search returned fewer txs than the block contains")

// Client is a JSON-RPC client over HTTP with endpoint failover,
// circuit-breaker and token-bucket rate limiting.
type Client struct {
	endpoints []string
	client    *http.Client

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration

	reqID atomic.Int64
}

// Opts is the set of options for a new Client.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewWithOpts creates a new Client with the given options.
func NewWithOpts(o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}

	c := &Client{
		endpoints:        dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

func dedup(ss []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

func (c *Client) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

func (c *Client) acquire() {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

func (c *Client) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *Client) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// call performs one JSON-RPC call, rotating through endpoints until
// one answers or all are exhausted.
func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	if len(c.endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      int(c.reqID.Add(1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		if c.isOpen(ep) {
			continue
		}

		c.acquire()

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(reqBody))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d", resp.StatusCode)
			c.noteFailure(ep)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			resp.Body.Close()
			continue
		}

		rawBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		slog.Debug("rpc", "method", method, "len", len(rawBody))

		var envelope rpcResponse
		if err := json.Unmarshal(rawBody, &envelope); err != nil {
			lastErr = fmt.Errorf("json unmarshal: %w (body: %s)", err, string(rawBody[:min(200, len(rawBody))]))
			continue
		}
		if envelope.Error != nil {
			lastErr = fmt.Errorf("rpc %s: %w", method, envelope.Error)
			continue
		}
		if out != nil {
			if err := json.Unmarshal(envelope.Result, out); err != nil {
				lastErr = fmt.Errorf("rpc %s result: %w", method, err)
				continue
			}
		}
		return nil
	}

	return lastErr
}

// ChainHead returns the node's current chain height.
func (c *Client) ChainHead(ctx context.Context) (int64, error) {
	var resp StatusResult
	if err := c.call(ctx, "status", nil, &resp); err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp.SyncInfo.LatestBlockHeight, 10, 64)
}

// Block is the normalized view of one block needed by the indexer.
type Block struct {
	Height  int64
	Time    time.Time
	TxCount int
}

// BlockByHeight fetches the block header at the given height and
// verifies the node answered for the height we asked.
func (c *Client) BlockByHeight(ctx context.Context, height int64) (*Block, error) {
	var resp BlockResult
	if err := c.call(ctx, "block", map[string]any{"height": strconv.FormatInt(height, 10)}, &resp); err != nil {
		return nil, err
	}
	got, err := strconv.ParseInt(resp.Block.Header.Height, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("block header height %q: %w", resp.Block.Header.Height, err)
	}
	if got != height {
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrHeightMismatch, height, got)
	}
	t, err := time.Parse(time.RFC3339Nano, resp.Block.Header.Time)
	if err != nil {
		return nil, fmt.Errorf("block header time %q: %w", resp.Block.Header.Time, err)
	}
	return &Block{Height: height, Time: t, TxCount: len(resp.Block.Data.Txs)}, nil
}

// TxsByHeight fetches every transaction in a block via paged tx_search
// and verifies the count matches what the block header advertises.
func (c *Client) TxsByHeight(ctx context.Context, height int64, expected int) ([]TxResult, error) {
	const perPage = 100

	query := fmt.Sprintf("tx.height=%d", height)
	all := make([]TxResult, 0, expected)
	for page := 1; ; page++ {
		var resp txSearchResult
		params := map[string]any{
			"query":    query,
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(perPage),
		}
		if err := c.call(ctx, "tx_search", params, &resp); err != nil {
			return nil, err
		}
		for i := range resp.Txs {
			decodeTxEvents(&resp.Txs[i])
		}
		all = append(all, resp.Txs...)

		total, err := strconv.Atoi(resp.TotalCount)
		if err != nil {
			return nil, fmt.Errorf("tx_search total_count %q: %w", resp.TotalCount, err)
		}
		if len(all) >= total || len(resp.Txs) == 0 {
			break
		}
	}

	if len(all) < expected {
		return nil, fmt.Errorf("%w: height %d has %d txs, got %d", ErrTxCountMismatch, height, expected, len(all))
	}
	return all, nil
}

// LifecycleEventsByHeight fetches the begin/end block events for the
// given height. These carry payments and epoch events that are not
// attached to any transaction.
func (c *Client) LifecycleEventsByHeight(ctx context.Context, height int64) ([]Event, error) {
	var resp blockResultsResult
	if err := c.call(ctx, "block_results", map[string]any{"height": strconv.FormatInt(height, 10)}, &resp); err != nil {
		return nil, err
	}
	got, err := strconv.ParseInt(resp.Height, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("block_results height %q: %w", resp.Height, err)
	}
	if got != height {
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrHeightMismatch, height, got)
	}

	events := make([]Event, 0, len(resp.BeginBlockEvents)+len(resp.EndBlockEvents)+len(resp.FinalizeBlockEvents))
	events = append(events, resp.BeginBlockEvents...)
	events = append(events, resp.EndBlockEvents...)
	events = append(events, resp.FinalizeBlockEvents...)
	for i := range events {
		decodeEventAttributes(&events[i])
	}
	return events, nil
}

func decodeTxEvents(tx *TxResult) {
	for i := range tx.TxResult.Events {
		decodeEventAttributes(&tx.TxResult.Events[i])
	}
}

// decodeEventAttributes normalizes base64-encoded attribute keys and
// values emitted by pre-v0.35 nodes. Plain-text attributes pass
// through untouched.
func decodeEventAttributes(ev *Event) {
	for i, attr := range ev.Attributes {
		if k, ok := decodeBase64(attr.Key); ok {
			if v, vok := decodeBase64(attr.Value); vok {
				ev.Attributes[i].Key = k
				ev.Attributes[i].Value = v
			}
		}
	}
}

func decodeBase64(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
