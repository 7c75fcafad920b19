package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/internal/models"
)

func f(v float64) *float64 { return &v }

func payment(ts time.Time, provider, spec string, relays, cu, pay int64, sync *float64) models.RelayPayment {
	return models.RelayPayment{
		Relays:   relays,
		CU:       cu,
		Pay:      pay,
		Datetime: ts,
		QoSSync:  sync,
		Provider: provider,
		SpecID:   spec,
	}
}

func TestFoldPaymentsWeightedQoS(t *testing.T) {
	ts := time.Date(2024, 6, 1, 14, 20, 0, 0, time.UTC)

	rows := FoldPayments([]models.RelayPayment{
		payment(ts, "p1", "ETH1", 300, 900, 10, f(0.75)),
		payment(ts.Add(10*time.Minute), "p1", "ETH1", 100, 300, 5, f(1.0)),
	}, TruncHour)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC), r.Bucket)
	assert.Equal(t, int64(400), r.RelaySum)
	assert.Equal(t, int64(1200), r.CUSum)
	assert.Equal(t, int64(15), r.RewardSum)
	require.NotNil(t, r.QoSSyncAvg)
	assert.InDelta(t, 0.8125, *r.QoSSyncAvg, 1e-9)
	// The availability metric never appeared, so the average is
	// undefined, not zero.
	assert.Nil(t, r.QoSAvailabilityAvg)
}

func TestFoldPaymentsScorelessRelaysWeighDown(t *testing.T) {
	ts := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	// SUM(score * relays) / SUM(relays): relays without a score still
	// count in the denominator.
	rows := FoldPayments([]models.RelayPayment{
		payment(ts, "p1", "ETH1", 10, 0, 0, f(0.5)),
		payment(ts, "p1", "ETH1", 30, 0, 0, nil),
	}, TruncHour)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(40), rows[0].RelaySum)
	require.NotNil(t, rows[0].QoSSyncAvg)
	assert.InDelta(t, 0.125, *rows[0].QoSSyncAvg, 1e-9)
}

func TestFoldPaymentsZeroRelaysCarryNoWeight(t *testing.T) {
	ts := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	rows := FoldPayments([]models.RelayPayment{
		payment(ts, "p1", "ETH1", 200, 0, 0, f(0.5)),
		payment(ts, "p1", "ETH1", 0, 0, 0, f(1.0)),
	}, TruncHour)

	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0].RelaySum)
	require.NotNil(t, rows[0].QoSSyncAvg)
	assert.InDelta(t, 0.5, *rows[0].QoSSyncAvg, 1e-9)
}

func TestFoldPaymentsSplitsByKey(t *testing.T) {
	ts := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	rows := FoldPayments([]models.RelayPayment{
		payment(ts, "p2", "ETH1", 1, 1, 1, nil),
		payment(ts, "p1", "OSMO", 1, 1, 1, nil),
		payment(ts, "p1", "ETH1", 1, 1, 1, nil),
		payment(ts.Add(time.Hour), "p1", "ETH1", 1, 1, 1, nil),
	}, TruncHour)

	require.Len(t, rows, 4)
	// Ordered by bucket, then provider, then spec.
	assert.Equal(t, "p1", rows[0].Provider)
	assert.Equal(t, "ETH1", rows[0].SpecID)
	assert.Equal(t, "p1", rows[1].Provider)
	assert.Equal(t, "OSMO", rows[1].SpecID)
	assert.Equal(t, "p2", rows[2].Provider)
	assert.True(t, rows[3].Bucket.After(rows[0].Bucket))
	assert.Nil(t, rows[0].QoSSyncAvg)
}

func TestFoldBucketsDaily(t *testing.T) {
	hour := func(h int) time.Time { return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC) }

	daily := FoldBuckets([]models.AggRelayPayment{
		{Bucket: hour(10), Provider: "p1", SpecID: "ETH1", RelaySum: 300, CUSum: 900, RewardSum: 10, QoSSyncAvg: f(0.75)},
		{Bucket: hour(11), Provider: "p1", SpecID: "ETH1", RelaySum: 100, CUSum: 300, RewardSum: 5, QoSSyncAvg: f(1.0)},
	}, TruncDay)

	require.Len(t, daily, 1)
	d := daily[0]
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), d.Bucket)
	assert.Equal(t, int64(400), d.RelaySum)
	assert.Equal(t, int64(1200), d.CUSum)
	assert.Equal(t, int64(15), d.RewardSum)
	// Re-weighting the stored hourly averages by relay count must give
	// the same result as folding the raw payments in one pass.
	require.NotNil(t, d.QoSSyncAvg)
	assert.InDelta(t, 0.8125, *d.QoSSyncAvg, 1e-9)
}

func TestFoldBucketsAlltime(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	alltime := FoldBuckets([]models.AggRelayPayment{
		{Bucket: day(1), Provider: "p1", SpecID: "ETH1", RelaySum: 10},
		{Bucket: day(2), Provider: "p1", SpecID: "ETH1", RelaySum: 20},
		{Bucket: day(3), Provider: "p2", SpecID: "ETH1", RelaySum: 5},
	}, TruncAll)

	require.Len(t, alltime, 2)
	assert.True(t, alltime[0].Bucket.IsZero())
	assert.Equal(t, int64(30), alltime[0].RelaySum)
	assert.Equal(t, "p2", alltime[1].Provider)
	assert.Nil(t, alltime[0].QoSSyncAvg)
}

func TestPartition(t *testing.T) {
	hour := func(h int) time.Time { return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC) }
	rows := []models.AggRelayPayment{
		{Bucket: hour(9), Provider: "p1"},
		{Bucket: hour(10), Provider: "p1"},
		{Bucket: hour(11), Provider: "p1"},
	}

	upserts, inserts := Partition(rows, hour(10))
	require.Len(t, upserts, 2)
	require.Len(t, inserts, 1)
	assert.Equal(t, hour(11), inserts[0].Bucket)

	// A head before every bucket means everything is a fresh insert.
	upserts, inserts = Partition(rows, hour(0))
	assert.Empty(t, upserts)
	assert.Len(t, inserts, 3)
}
