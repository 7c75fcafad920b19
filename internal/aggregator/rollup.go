package aggregator

import (
	"sort"
	"time"

	"github.com/lavanet/lava-indexer/internal/models"
)

// Key identifies one aggregation bucket.
type Key struct {
	Bucket   time.Time
	Provider string
	SpecID   string
}

// weighted accumulates a relay-weighted average for one QoS component,
// matching SUM(score * relays) / SUM(relays) over a nullable score
// column: a row with no score still counts its relays in the
// denominator, and a group where the score never appears averages to
// NULL rather than zero.
type weighted struct {
	sum    float64
	weight int64
	seen   bool
}

func (w *weighted) add(score *float64, relays int64) {
	if relays > 0 {
		w.weight += relays
	}
	if score != nil {
		w.sum += *score * float64(relays)
		w.seen = true
	}
}

func (w weighted) avg() *float64 {
	if !w.seen || w.weight == 0 {
		return nil
	}
	v := w.sum / float64(w.weight)
	return &v
}

// acc accumulates one bucket.
type acc struct {
	cu, relays, reward int64

	sync, availability, latency          weighted
	syncExc, availabilityExc, latencyExc weighted
}

func (a *acc) row(k Key) models.AggRelayPayment {
	return models.AggRelayPayment{
		Bucket:    k.Bucket,
		Provider:  k.Provider,
		SpecID:    k.SpecID,
		CUSum:     a.cu,
		RelaySum:  a.relays,
		RewardSum: a.reward,
		QoSSyncAvg:            a.sync.avg(),
		QoSAvailabilityAvg:    a.availability.avg(),
		QoSLatencyAvg:         a.latency.avg(),
		QoSSyncExcAvg:         a.syncExc.avg(),
		QoSAvailabilityExcAvg: a.availabilityExc.avg(),
		QoSLatencyExcAvg:      a.latencyExc.avg(),
	}
}

// TruncHour and TruncDay are the bucket functions of the two dated
// tiers. TruncAll folds everything into the zero bucket.
func TruncHour(t time.Time) time.Time { return t.Truncate(time.Hour).UTC() }
func TruncDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
func TruncAll(time.Time) time.Time { return time.Time{} }

// FoldPayments folds raw relay payments into buckets.
func FoldPayments(rows []models.RelayPayment, trunc func(time.Time) time.Time) []models.AggRelayPayment {
	buckets := make(map[Key]*acc)
	for i := range rows {
		rp := &rows[i]
		k := Key{Bucket: trunc(rp.Datetime), Provider: rp.Provider, SpecID: rp.SpecID}
		a, ok := buckets[k]
		if !ok {
			a = &acc{}
			buckets[k] = a
		}
		a.cu += rp.CU
		a.relays += rp.Relays
		a.reward += rp.Pay
		a.sync.add(rp.QoSSync, rp.Relays)
		a.availability.add(rp.QoSAvailability, rp.Relays)
		a.latency.add(rp.QoSLatency, rp.Relays)
		a.syncExc.add(rp.QoSSyncExc, rp.Relays)
		a.availabilityExc.add(rp.QoSAvailabilityExc, rp.Relays)
		a.latencyExc.add(rp.QoSLatencyExc, rp.Relays)
	}
	return sortRows(buckets)
}

// FoldBuckets re-folds finer buckets into coarser ones, weighting the
// stored averages by each bucket's relay count.
func FoldBuckets(rows []models.AggRelayPayment, trunc func(time.Time) time.Time) []models.AggRelayPayment {
	buckets := make(map[Key]*acc)
	for i := range rows {
		r := &rows[i]
		k := Key{Bucket: trunc(r.Bucket), Provider: r.Provider, SpecID: r.SpecID}
		a, ok := buckets[k]
		if !ok {
			a = &acc{}
			buckets[k] = a
		}
		a.cu += r.CUSum
		a.relays += r.RelaySum
		a.reward += r.RewardSum
		a.sync.add(r.QoSSyncAvg, r.RelaySum)
		a.availability.add(r.QoSAvailabilityAvg, r.RelaySum)
		a.latency.add(r.QoSLatencyAvg, r.RelaySum)
		a.syncExc.add(r.QoSSyncExcAvg, r.RelaySum)
		a.availabilityExc.add(r.QoSAvailabilityExcAvg, r.RelaySum)
		a.latencyExc.add(r.QoSLatencyExcAvg, r.RelaySum)
	}
	return sortRows(buckets)
}

func sortRows(buckets map[Key]*acc) []models.AggRelayPayment {
	out := make([]models.AggRelayPayment, 0, len(buckets))
	for k, a := range buckets {
		out = append(out, a.row(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Bucket.Equal(out[j].Bucket) {
			return out[i].Bucket.Before(out[j].Bucket)
		}
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].SpecID < out[j].SpecID
	})
	return out
}

// Partition splits folded rows into the head bucket, which may already
// exist and must be upserted, and strictly newer buckets that can be
// plain inserts.
func Partition(rows []models.AggRelayPayment, head time.Time) (upserts, inserts []models.AggRelayPayment) {
	for _, r := range rows {
		if r.Bucket.After(head) {
			inserts = append(inserts, r)
		} else {
			upserts = append(upserts, r)
		}
	}
	return upserts, inserts
}
