package events

import (
	"time"

	"github.com/lavanet/lava-indexer/internal/models"
)

// Ctx carries the block-level context every parser needs.
type Ctx struct {
	Height   int64
	Datetime time.Time
	TxHash   *string
}

// ChangeSet accumulates everything parsed out of one block: entity
// deltas keyed by their natural identifier, plus fact rows in arrival
// order. One ChangeSet is written atomically per block.
type ChangeSet struct {
	Providers map[string]*models.Provider
	Consumers map[string]struct{}
	Specs     map[string]struct{}
	Plans     map[string]*models.Plan

	RelayPayments      []models.RelayPayment
	Events             []models.Event
	ConflictResponses  []models.ConflictResponse
	ConflictVotes      []models.ConflictVote
	SubscriptionBuys   []models.SubscriptionBuy
	ProviderReported   []models.ProviderReported
	LatestBlockReports []models.ProviderLatestBlockReport
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Providers: make(map[string]*models.Provider),
		Consumers: make(map[string]struct{}),
		Specs:     make(map[string]struct{}),
		Plans:     make(map[string]*models.Plan),
	}
}

// AddProvider records a provider sighting. A non-empty moniker fills
// in or replaces the recorded one; an empty moniker never erases a
// previously seen value.
func (cs *ChangeSet) AddProvider(address, moniker string) {
	if address == "" {
		return
	}
	p, ok := cs.Providers[address]
	if !ok {
		cs.Providers[address] = &models.Provider{Address: address, Moniker: moniker}
		return
	}
	if moniker != "" {
		p.Moniker = moniker
	}
}

// AddConsumer records a consumer sighting.
func (cs *ChangeSet) AddConsumer(address string) {
	if address == "" {
		return
	}
	cs.Consumers[address] = struct{}{}
}

// AddSpec records a spec sighting.
func (cs *ChangeSet) AddSpec(id string) {
	if id == "" {
		return
	}
	cs.Specs[id] = struct{}{}
}

// AddPlan records a plan sighting.
func (cs *ChangeSet) AddPlan(p *models.Plan) {
	if p == nil || p.ID == "" {
		return
	}
	cs.Plans[p.ID] = p
}

// Empty reports whether the block produced nothing worth writing
// beyond the block row itself.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Providers) == 0 && len(cs.Consumers) == 0 &&
		len(cs.Specs) == 0 && len(cs.Plans) == 0 &&
		len(cs.RelayPayments) == 0 && len(cs.Events) == 0 &&
		len(cs.ConflictResponses) == 0 && len(cs.ConflictVotes) == 0 &&
		len(cs.SubscriptionBuys) == 0 && len(cs.ProviderReported) == 0 &&
		len(cs.LatestBlockReports) == 0
}
