// Package blockcache stores raw fetched block payloads on disk so
// reindexing runs can replay them without hitting the RPC nodes.
package blockcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// Payload is everything fetched from RPC for one height.
type Payload struct {
	Block           *rpc.Block     `json:"block"`
	Txs             []rpc.TxResult `json:"txs"`
	LifecycleEvents []rpc.Event    `json:"lifecycle_events"`
}

// Cache is a best-effort on-disk cache keyed by height. A disabled
// cache (empty dir) never hits and never stores.
type Cache struct {
	dir string
}

// New returns a cache rooted at dir, creating it if needed. An empty
// dir disables the cache.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return &Cache{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blockcache mkdir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(height int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%d.json", height))
}

// Get returns the cached payload for height, or (nil, false) on any
// miss or read problem. Corrupt entries are dropped.
func (c *Cache) Get(height int64) (*Payload, bool) {
	if c.dir == "" {
		return nil, false
	}
	b, err := os.ReadFile(c.path(height))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("blockcache read failed", "height", height, "error", err)
		}
		return nil, false
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil || p.Block == nil {
		slog.Warn("blockcache entry corrupt, removing", "height", height)
		os.Remove(c.path(height))
		return nil, false
	}
	return &p, true
}

// Put stores the payload for height. Failures are logged and ignored;
// the cache is an optimization, not a store of record.
func (c *Cache) Put(height int64, p *Payload) {
	if c.dir == "" {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		slog.Warn("blockcache marshal failed", "height", height, "error", err)
		return
	}
	tmp := c.path(height) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		slog.Warn("blockcache write failed", "height", height, "error", err)
		return
	}
	if err := os.Rename(tmp, c.path(height)); err != nil {
		slog.Warn("blockcache rename failed", "height", height, "error", err)
		os.Remove(tmp)
	}
}
