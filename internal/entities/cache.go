// Package entities keeps an in-memory snapshot of the entity tables so
// block writes only upsert entities that are actually new or changed.
package entities

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lavanet/lava-indexer/internal/events"
	"github.com/lavanet/lava-indexer/internal/models"
)

// Cache mirrors the providers, consumers, specs and plans tables.
// Presence in the cache means the row is already persisted, so the
// cache is only updated after a successful write.
type Cache struct {
	mu        sync.RWMutex
	providers map[string]string // address -> moniker
	consumers map[string]struct{}
	specs     map[string]struct{}
	plans     map[string]struct{}
}

func New() *Cache {
	return &Cache{
		providers: make(map[string]string),
		consumers: make(map[string]struct{}),
		specs:     make(map[string]struct{}),
		plans:     make(map[string]struct{}),
	}
}

// Load replaces the snapshot with the current table contents.
func (c *Cache) Load(ctx context.Context, pool *pgxpool.Pool) error {
	providers := make(map[string]string)
	rows, err := pool.Query(ctx, `SELECT address, moniker FROM providers`)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	for rows.Next() {
		var address, moniker string
		if err := rows.Scan(&address, &moniker); err != nil {
			rows.Close()
			return fmt.Errorf("scan provider: %w", err)
		}
		providers[address] = moniker
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load providers: %w", err)
	}

	consumers, err := loadSet(ctx, pool, `SELECT address FROM consumers`)
	if err != nil {
		return fmt.Errorf("load consumers: %w", err)
	}
	specs, err := loadSet(ctx, pool, `SELECT id FROM specs`)
	if err != nil {
		return fmt.Errorf("load specs: %w", err)
	}
	plans, err := loadSet(ctx, pool, `SELECT id FROM plans`)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	c.mu.Lock()
	c.providers = providers
	c.consumers = consumers
	c.specs = specs
	c.plans = plans
	c.mu.Unlock()

	slog.Info("entity snapshot loaded",
		"providers", len(providers),
		"consumers", len(consumers),
		"specs", len(specs),
		"plans", len(plans))
	return nil
}

func loadSet(ctx context.Context, pool *pgxpool.Pool, query string) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// Delta is the subset of a block's entity sightings that is not yet
// persisted and must be upserted with the block.
type Delta struct {
	Providers []models.Provider
	Consumers []string
	Specs     []string
	Plans     []models.Plan
}

func (d *Delta) Empty() bool {
	return len(d.Providers) == 0 && len(d.Consumers) == 0 &&
		len(d.Specs) == 0 && len(d.Plans) == 0
}

// Diff filters the ChangeSet's entity sightings against the snapshot.
// A known provider is re-emitted only when the sighting fills in a
// moniker the snapshot is missing; an empty sighting never clears a
// stored moniker.
func (c *Cache) Diff(cs *events.ChangeSet) *Delta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := &Delta{}
	for address, p := range cs.Providers {
		known, ok := c.providers[address]
		if !ok {
			d.Providers = append(d.Providers, *p)
			continue
		}
		if p.Moniker != "" && p.Moniker != known {
			d.Providers = append(d.Providers, *p)
		}
	}
	for address := range cs.Consumers {
		if _, ok := c.consumers[address]; !ok {
			d.Consumers = append(d.Consumers, address)
		}
	}
	for id := range cs.Specs {
		if _, ok := c.specs[id]; !ok {
			d.Specs = append(d.Specs, id)
		}
	}
	for id, p := range cs.Plans {
		if _, ok := c.plans[id]; !ok {
			d.Plans = append(d.Plans, *p)
		}
	}
	return d
}

// Commit merges a successfully written delta into the snapshot.
func (c *Cache) Commit(d *Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range d.Providers {
		if p.Moniker != "" {
			c.providers[p.Address] = p.Moniker
		} else if _, ok := c.providers[p.Address]; !ok {
			c.providers[p.Address] = ""
		}
	}
	for _, address := range d.Consumers {
		c.consumers[address] = struct{}{}
	}
	for _, id := range d.Specs {
		c.specs[id] = struct{}{}
	}
	for _, id := range d.Plans {
		c.plans[id.ID] = struct{}{}
	}
}
