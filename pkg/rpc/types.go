package rpc

import "encoding/json"

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope. Result is decoded
// by the caller into the method-specific shape.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data != "" {
		return e.Message + ": " + e.Data
	}
	return e.Message
}

// StatusResult is the result of the "status" method, trimmed to the
// sync info we consume.
type StatusResult struct {
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
		CatchingUp        bool   `json:"catching_up"`
	} `json:"sync_info"`
}

// BlockResult is the result of the "block" method, trimmed to the
// header and raw transactions.
type BlockResult struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
			Time   string `json:"time"`
		} `json:"header"`
		Data struct {
			Txs []string `json:"txs"`
		} `json:"data"`
	} `json:"block"`
}

// Attribute is a single event attribute. Depending on node version the
// key and value arrive either as plain strings or base64; the client
// normalizes them in place after fetching.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a typed event with its attribute list.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// TxResult is one transaction from a "tx_search" result.
type TxResult struct {
	Hash     string `json:"hash"`
	Height   string `json:"height"`
	TxResult struct {
		Code   uint32  `json:"code"`
		Log    string  `json:"log"`
		Events []Event `json:"events"`
	} `json:"tx_result"`
}

// txSearchResult is the result of the "tx_search" method.
type txSearchResult struct {
	Txs        []TxResult `json:"txs"`
	TotalCount string     `json:"total_count"`
}

// blockResultsResult is the result of the "block_results" method,
// trimmed to the block-lifecycle events. Newer node versions replace
// begin/end block events with finalize_block_events; we accept both.
type blockResultsResult struct {
	Height              string  `json:"height"`
	BeginBlockEvents    []Event `json:"begin_block_events"`
	EndBlockEvents      []Event `json:"end_block_events"`
	FinalizeBlockEvents []Event `json:"finalize_block_events"`
}
