package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lavanet/lava-indexer/internal/entities"
	"github.com/lavanet/lava-indexer/pkg/blockcache"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// Indexer handles the core indexing logic: fetch a block, parse its
// events into a change set, write everything in one transaction.
type Indexer struct {
	rpc      *rpc.Client
	db       *pgxpool.Pool
	cache    *blockcache.Cache
	entities *entities.Cache
}

// New creates a new Indexer.
func New(rpcClient *rpc.Client, db *pgxpool.Pool, cache *blockcache.Cache, ents *entities.Cache) *Indexer {
	return &Indexer{
		rpc:      rpcClient,
		db:       db,
		cache:    cache,
		entities: ents,
	}
}

// IndexBlock indexes a single block at the given height. Already
// indexed heights are skipped, which makes redelivery from the queue
// and overlapping backfills safe.
func (idx *Indexer) IndexBlock(ctx context.Context, height int64) error {
	start := time.Now()

	exists, err := idx.blockExists(ctx, height)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if exists {
		slog.Debug("block already indexed, skipping", "height", height)
		return nil
	}

	payload, err := idx.fetch(ctx, height)
	if err != nil {
		return fmt.Errorf("fetch block %d: %w", height, err)
	}

	cs, txs := assemble(payload)

	if err := idx.write(ctx, payload, cs, txs); err != nil {
		return fmt.Errorf("write block %d: %w", height, err)
	}

	slog.Debug("indexed block",
		"height", height,
		"txs", len(txs),
		"relay_payments", len(cs.RelayPayments),
		"events", len(cs.Events),
		"duration", time.Since(start),
	)
	return nil
}

func (idx *Indexer) blockExists(ctx context.Context, height int64) (bool, error) {
	var exists bool
	err := idx.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocks WHERE height = $1)`, height).Scan(&exists)
	return exists, err
}

// MaxIndexedHeight returns the highest indexed block, zero on an empty
// database.
func (idx *Indexer) MaxIndexedHeight(ctx context.Context) (int64, error) {
	var max int64
	err := idx.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(height), 0) FROM blocks`).Scan(&max)
	return max, err
}
