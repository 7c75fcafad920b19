package entities

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRefresh reloads the snapshot from the database on an interval
// until ctx is cancelled. With several writers (queue mode) the local
// snapshot drifts; a periodic reload keeps upsert traffic low without
// any cross-process coordination.
func (c *Cache) RunRefresh(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Load(ctx, pool); err != nil {
				slog.Warn("entity snapshot refresh failed", "error", err)
			}
		}
	}
}
