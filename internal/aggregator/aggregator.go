// Package aggregator maintains the hourly, daily and all-time rollups
// of relay payments. Each tier folds from the one below it: raw
// payments feed the hourly table, hourly feeds daily, daily feeds the
// all-time totals.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lavanet/lava-indexer/internal/models"
)

// epoch is the span start on an empty aggregate table, safely before
// any mainnet block.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// insertChunk bounds how many rows go into one batch round trip.
const insertChunk = 250

// Engine runs the rollups. Each tier carries an in-flight guard so an
// overlapping trigger (ticker plus admin API) never runs the same tier
// twice concurrently.
type Engine struct {
	db *pgxpool.Pool

	hourlyBusy  atomic.Bool
	dailyBusy   atomic.Bool
	alltimeBusy atomic.Bool
}

func New(db *pgxpool.Pool) *Engine {
	return &Engine{db: db}
}

// Run recomputes all tiers on an interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, every time.Duration) error {
	slog.Info("aggregation engine started", "interval", every)

	// One pass up front so a fresh deployment serves rollups without
	// waiting a full interval.
	e.RunOnce(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// RunOnce runs the three tiers in order. Tier errors are logged, not
// returned: a failed pass leaves the previous consistent state in
// place and the next pass retries from there.
func (e *Engine) RunOnce(ctx context.Context) {
	if err := e.RunHourly(ctx); err != nil {
		slog.Error("hourly aggregation failed", "error", err)
		return
	}
	if err := e.RunDaily(ctx); err != nil {
		slog.Error("daily aggregation failed", "error", err)
		return
	}
	if err := e.RunAlltime(ctx); err != nil {
		slog.Error("alltime aggregation failed", "error", err)
	}
}

// RunHourly folds raw relay payments newer than the hourly watermark.
// The watermark bucket itself is recomputed in full and upserted since
// it may have been written while still partial.
func (e *Engine) RunHourly(ctx context.Context) error {
	if !e.hourlyBusy.CompareAndSwap(false, true) {
		slog.Debug("hourly aggregation already in flight, skipping")
		return nil
	}
	defer e.hourlyBusy.Store(false)

	start := time.Now()

	var head time.Time
	err := e.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(datehour), $1) FROM agg_hourly_relay_payments`, epoch).Scan(&head)
	if err != nil {
		return fmt.Errorf("hourly watermark: %w", err)
	}

	payments, err := e.loadPayments(ctx, head)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		return nil
	}

	rows := FoldPayments(payments, TruncHour)
	upserts, inserts := Partition(rows, head)

	if err := e.writeDated(ctx, "agg_hourly_relay_payments", "datehour", upserts, inserts); err != nil {
		return fmt.Errorf("write hourly: %w", err)
	}

	slog.Info("hourly aggregation complete",
		"payments", len(payments),
		"upserted", len(upserts),
		"inserted", len(inserts),
		"duration", time.Since(start))
	return nil
}

// RunDaily folds hourly buckets newer than the daily watermark.
func (e *Engine) RunDaily(ctx context.Context) error {
	if !e.dailyBusy.CompareAndSwap(false, true) {
		slog.Debug("daily aggregation already in flight, skipping")
		return nil
	}
	defer e.dailyBusy.Store(false)

	start := time.Now()

	var head time.Time
	err := e.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(day), $1) FROM agg_daily_relay_payments`, epoch).Scan(&head)
	if err != nil {
		return fmt.Errorf("daily watermark: %w", err)
	}

	hourly, err := e.loadBuckets(ctx,
		`SELECT datehour, provider, spec_id, cu_sum, relay_sum, reward_sum,
			qos_sync_avg, qos_availability_avg, qos_latency_avg,
			qos_sync_exc_avg, qos_availability_exc_avg, qos_latency_exc_avg
		 FROM agg_hourly_relay_payments WHERE datehour >= $1`, head)
	if err != nil {
		return fmt.Errorf("load hourly buckets: %w", err)
	}
	if len(hourly) == 0 {
		return nil
	}

	rows := FoldBuckets(hourly, TruncDay)
	upserts, inserts := Partition(rows, head)

	if err := e.writeDated(ctx, "agg_daily_relay_payments", "day", upserts, inserts); err != nil {
		return fmt.Errorf("write daily: %w", err)
	}

	slog.Info("daily aggregation complete",
		"hourly_buckets", len(hourly),
		"upserted", len(upserts),
		"inserted", len(inserts),
		"duration", time.Since(start))
	return nil
}

// RunAlltime recomputes the all-time totals from the daily table. The
// table is small (one row per provider and spec), so a full upsert is
// cheaper than tracking a watermark.
func (e *Engine) RunAlltime(ctx context.Context) error {
	if !e.alltimeBusy.CompareAndSwap(false, true) {
		slog.Debug("alltime aggregation already in flight, skipping")
		return nil
	}
	defer e.alltimeBusy.Store(false)

	start := time.Now()

	daily, err := e.loadBuckets(ctx,
		`SELECT day, provider, spec_id, cu_sum, relay_sum, reward_sum,
			qos_sync_avg, qos_availability_avg, qos_latency_avg,
			qos_sync_exc_avg, qos_availability_exc_avg, qos_latency_exc_avg
		 FROM agg_daily_relay_payments`, nil)
	if err != nil {
		return fmt.Errorf("load daily buckets: %w", err)
	}
	if len(daily) == 0 {
		return nil
	}

	rows := FoldBuckets(daily, TruncAll)

	err = pgx.BeginFunc(ctx, e.db, func(tx pgx.Tx) error {
		return execChunked(ctx, tx, rows, func(batch *pgx.Batch, r models.AggRelayPayment) {
			batch.Queue(
				`INSERT INTO agg_alltime_relay_payments (
					provider, spec_id, cu_sum, relay_sum, reward_sum,
					qos_sync_avg, qos_availability_avg, qos_latency_avg,
					qos_sync_exc_avg, qos_availability_exc_avg, qos_latency_exc_avg
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (provider, spec_id) DO UPDATE SET
					cu_sum = EXCLUDED.cu_sum,
					relay_sum = EXCLUDED.relay_sum,
					reward_sum = EXCLUDED.reward_sum,
					qos_sync_avg = EXCLUDED.qos_sync_avg,
					qos_availability_avg = EXCLUDED.qos_availability_avg,
					qos_latency_avg = EXCLUDED.qos_latency_avg,
					qos_sync_exc_avg = EXCLUDED.qos_sync_exc_avg,
					qos_availability_exc_avg = EXCLUDED.qos_availability_exc_avg,
					qos_latency_exc_avg = EXCLUDED.qos_latency_exc_avg`,
				r.Provider, r.SpecID, r.CUSum, r.RelaySum, r.RewardSum,
				r.QoSSyncAvg, r.QoSAvailabilityAvg, r.QoSLatencyAvg,
				r.QoSSyncExcAvg, r.QoSAvailabilityExcAvg, r.QoSLatencyExcAvg)
		})
	})
	if err != nil {
		return fmt.Errorf("write alltime: %w", err)
	}

	slog.Info("alltime aggregation complete",
		"daily_buckets", len(daily),
		"totals", len(rows),
		"duration", time.Since(start))
	return nil
}

func (e *Engine) loadPayments(ctx context.Context, since time.Time) ([]models.RelayPayment, error) {
	rows, err := e.db.Query(ctx,
		`SELECT relays, cu, pay, datetime,
			qos_sync, qos_availability, qos_latency,
			qos_sync_exc, qos_availability_exc, qos_latency_exc,
			provider, spec_id
		 FROM relay_payments WHERE datetime >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	var out []models.RelayPayment
	for rows.Next() {
		var rp models.RelayPayment
		if err := rows.Scan(
			&rp.Relays, &rp.CU, &rp.Pay, &rp.Datetime,
			&rp.QoSSync, &rp.QoSAvailability, &rp.QoSLatency,
			&rp.QoSSyncExc, &rp.QoSAvailabilityExc, &rp.QoSLatencyExc,
			&rp.Provider, &rp.SpecID,
		); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (e *Engine) loadBuckets(ctx context.Context, query string, since any) ([]models.AggRelayPayment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since != nil {
		rows, err = e.db.Query(ctx, query, since)
	} else {
		rows, err = e.db.Query(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AggRelayPayment
	for rows.Next() {
		var r models.AggRelayPayment
		if err := rows.Scan(
			&r.Bucket, &r.Provider, &r.SpecID,
			&r.CUSum, &r.RelaySum, &r.RewardSum,
			&r.QoSSyncAvg, &r.QoSAvailabilityAvg, &r.QoSLatencyAvg,
			&r.QoSSyncExcAvg, &r.QoSAvailabilityExcAvg, &r.QoSLatencyExcAvg,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// writeDated writes one dated tier in a single transaction: the head
// bucket as an upsert, newer buckets as plain inserts.
func (e *Engine) writeDated(ctx context.Context, table, bucketCol string, upserts, inserts []models.AggRelayPayment) error {
	upsertSQL := fmt.Sprintf(
		`INSERT INTO %s (
			%s, provider, spec_id, cu_sum, relay_sum, reward_sum,
			qos_sync_avg, qos_availability_avg, qos_latency_avg,
			qos_sync_exc_avg, qos_availability_exc_avg, qos_latency_exc_avg
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (%s, provider, spec_id) DO UPDATE SET
			cu_sum = EXCLUDED.cu_sum,
			relay_sum = EXCLUDED.relay_sum,
			reward_sum = EXCLUDED.reward_sum,
			qos_sync_avg = EXCLUDED.qos_sync_avg,
			qos_availability_avg = EXCLUDED.qos_availability_avg,
			qos_latency_avg = EXCLUDED.qos_latency_avg,
			qos_sync_exc_avg = EXCLUDED.qos_sync_exc_avg,
			qos_availability_exc_avg = EXCLUDED.qos_availability_exc_avg,
			qos_latency_exc_avg = EXCLUDED.qos_latency_exc_avg`,
		table, bucketCol, bucketCol)

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (
			%s, provider, spec_id, cu_sum, relay_sum, reward_sum,
			qos_sync_avg, qos_availability_avg, qos_latency_avg,
			qos_sync_exc_avg, qos_availability_exc_avg, qos_latency_exc_avg
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		table, bucketCol)

	return pgx.BeginFunc(ctx, e.db, func(tx pgx.Tx) error {
		queue := func(sql string) func(*pgx.Batch, models.AggRelayPayment) {
			return func(batch *pgx.Batch, r models.AggRelayPayment) {
				batch.Queue(sql,
					r.Bucket, r.Provider, r.SpecID, r.CUSum, r.RelaySum, r.RewardSum,
					r.QoSSyncAvg, r.QoSAvailabilityAvg, r.QoSLatencyAvg,
					r.QoSSyncExcAvg, r.QoSAvailabilityExcAvg, r.QoSLatencyExcAvg)
			}
		}
		if err := execChunked(ctx, tx, upserts, queue(upsertSQL)); err != nil {
			return err
		}
		return execChunked(ctx, tx, inserts, queue(insertSQL))
	})
}

// execChunked sends rows through batches of insertChunk statements so
// one pass over a long backlog does not build a single giant batch.
func execChunked(ctx context.Context, tx pgx.Tx, rows []models.AggRelayPayment, queue func(*pgx.Batch, models.AggRelayPayment)) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))

		batch := &pgx.Batch{}
		for _, r := range rows[start:end] {
			queue(batch, r)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch statement %d: %w", start+i, err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}
