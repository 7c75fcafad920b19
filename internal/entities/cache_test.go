package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/internal/events"
	"github.com/lavanet/lava-indexer/internal/models"
)

func seeded() *Cache {
	c := New()
	c.providers["lava@provider-known"] = "known-node"
	c.providers["lava@provider-anon"] = ""
	c.consumers["lava@consumer-known"] = struct{}{}
	c.specs["ETH1"] = struct{}{}
	c.plans["free"] = struct{}{}
	return c
}

func TestDiffFiltersKnownEntities(t *testing.T) {
	c := seeded()

	cs := events.NewChangeSet()
	cs.AddProvider("lava@provider-known", "known-node")
	cs.AddProvider("lava@provider-new", "")
	cs.AddConsumer("lava@consumer-known")
	cs.AddConsumer("lava@consumer-new")
	cs.AddSpec("ETH1")
	cs.AddSpec("OSMO")
	cs.AddPlan(&models.Plan{ID: "free"})
	cs.AddPlan(&models.Plan{ID: "whale"})

	d := c.Diff(cs)

	require.Len(t, d.Providers, 1)
	assert.Equal(t, "lava@provider-new", d.Providers[0].Address)
	assert.Equal(t, []string{"lava@consumer-new"}, d.Consumers)
	assert.Equal(t, []string{"OSMO"}, d.Specs)
	require.Len(t, d.Plans, 1)
	assert.Equal(t, "whale", d.Plans[0].ID)
}

func TestDiffMonikerBackfill(t *testing.T) {
	c := seeded()

	// A sighting that fills in a missing moniker must be re-emitted.
	cs := events.NewChangeSet()
	cs.AddProvider("lava@provider-anon", "finally-named")
	d := c.Diff(cs)
	require.Len(t, d.Providers, 1)
	assert.Equal(t, "finally-named", d.Providers[0].Moniker)

	// An empty sighting of a known provider changes nothing.
	cs = events.NewChangeSet()
	cs.AddProvider("lava@provider-known", "")
	d = c.Diff(cs)
	assert.Empty(t, d.Providers)
	assert.True(t, d.Empty())
}

func TestDiffMonikerChange(t *testing.T) {
	c := seeded()

	cs := events.NewChangeSet()
	cs.AddProvider("lava@provider-known", "renamed")
	d := c.Diff(cs)
	require.Len(t, d.Providers, 1)
	assert.Equal(t, "renamed", d.Providers[0].Moniker)
}

func TestCommitMerge(t *testing.T) {
	c := seeded()

	c.Commit(&Delta{
		Providers: []models.Provider{
			{Address: "lava@provider-anon", Moniker: "named"},
			{Address: "lava@provider-known", Moniker: ""},
			{Address: "lava@provider-new", Moniker: ""},
		},
		Consumers: []string{"lava@consumer-new"},
		Specs:     []string{"OSMO"},
		Plans:     []models.Plan{{ID: "whale"}},
	})

	assert.Equal(t, "named", c.providers["lava@provider-anon"])
	// An empty moniker in the delta never clears a stored one.
	assert.Equal(t, "known-node", c.providers["lava@provider-known"])
	assert.Equal(t, "", c.providers["lava@provider-new"])
	assert.Contains(t, c.consumers, "lava@consumer-new")
	assert.Contains(t, c.specs, "OSMO")
	assert.Contains(t, c.plans, "whale")

	// Committed entities no longer appear in a diff.
	cs := events.NewChangeSet()
	cs.AddConsumer("lava@consumer-new")
	cs.AddSpec("OSMO")
	assert.True(t, c.Diff(cs).Empty())
}
