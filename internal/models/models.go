package models

import "time"

// Block is a single indexed block header.
type Block struct {
	Height   int64
	Datetime time.Time
}

// Tx is a transaction observed in a block. Failed transactions
// (non-zero result code) are recorded here but contribute no events.
type Tx struct {
	Hash   string
	Height int64
	Code   uint32
}

// Provider is a relay-serving entity identified by its bech32 address.
// Moniker is filled in lazily from stake events and never overwritten
// with an empty value.
type Provider struct {
	Address string
	Moniker string
}

// Consumer is a relay-consuming entity identified by its bech32 address.
type Consumer struct {
	Address string
}

// Spec is a chain specification identifier (e.g. "ETH1", "LAV1").
type Spec struct {
	ID string
}

// Plan is a subscription plan.
type Plan struct {
	ID   string
	Desc string
	Pay  int64
}

// RelayPayment is the primary fact row, one per relay payment event.
// QoS scores are nullable: absent attributes stay nil and are excluded
// from aggregation rather than counted as zero.
type RelayPayment struct {
	Relays   int64
	CU       int64
	Pay      int64
	Datetime time.Time

	QoSSync         *float64
	QoSAvailability *float64
	QoSLatency      *float64

	QoSSyncExc         *float64
	QoSAvailabilityExc *float64
	QoSLatencyExc      *float64

	Provider string
	SpecID   string
	Height   int64
	Consumer string
	TxHash   *string
}

// Event is the generic sparse-slot fact row for everything that is not
// a relay payment or one of the dedicated fact tables. Slot assignment
// is fixed per event kind.
type Event struct {
	Kind EventKind

	T1, T2, T3 *string
	B1, B2, B3 *int64
	I1, I2, I3 *int64
	R1, R2, R3 *float64

	Provider *string
	Consumer *string
	Height   int64
	TxHash   *string
	Fulltext *string
}

// ConflictResponse records a response-conflict detection.
type ConflictResponse struct {
	Height         int64
	Consumer       *string
	SpecID         *string
	TxHash         *string
	VoteID         *string
	RequestBlock   *int64
	VoteDeadline   *int64
	APIInterface   *string
	APIURL         *string
	ConnectionType *string
	RequestData    *string
}

// ConflictVote records a commit in a conflict vote.
type ConflictVote struct {
	VoteID   string
	Height   int64
	Provider *string
	TxHash   *string
}

// SubscriptionBuy records a subscription purchase.
type SubscriptionBuy struct {
	Height   int64
	Consumer *string
	Duration *int64
	Plan     *string
	TxHash   *string
}

// ProviderReported records a provider complaint report.
type ProviderReported struct {
	Provider                *string
	Height                  int64
	CU                      *int64
	Disconnections          *int64
	Epoch                   *int64
	Errors                  *int64
	Project                 *string
	Datetime                *time.Time
	TotalComplaintThisEpoch *int64
	TxHash                  *string
}

// ProviderLatestBlockReport records one chain's reported head height,
// one row per chain in the source event.
type ProviderLatestBlockReport struct {
	Provider    string
	Height      int64
	TxHash      *string
	Timestamp   time.Time
	ChainID     string
	ChainHeight int64
}

// AggRelayPayment is one aggregation bucket row, shared across the
// hourly, daily and all-time tiers (Bucket is zero for all-time).
// Averages stay nil when the metric never appeared in the bucket; a
// stored zero means the chain really reported zero QoS.
type AggRelayPayment struct {
	Bucket    time.Time
	Provider  string
	SpecID    string
	CUSum     int64
	RelaySum  int64
	RewardSum int64

	QoSSyncAvg         *float64
	QoSAvailabilityAvg *float64
	QoSLatencyAvg      *float64

	QoSSyncExcAvg         *float64
	QoSAvailabilityExcAvg *float64
	QoSLatencyExcAvg      *float64
}
