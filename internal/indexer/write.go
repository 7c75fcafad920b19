package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lavanet/lava-indexer/internal/entities"
	"github.com/lavanet/lava-indexer/internal/events"
	"github.com/lavanet/lava-indexer/internal/models"
	"github.com/lavanet/lava-indexer/pkg/blockcache"
)

// write persists one block's change set in a single atomic
// transaction. Any failure rolls the whole block back (NACK); the
// entity snapshot is only updated after commit.
func (idx *Indexer) write(ctx context.Context, payload *blockcache.Payload, cs *events.ChangeSet, txs []models.Tx) error {
	start := time.Now()
	height := payload.Block.Height
	delta := idx.entities.Diff(cs)

	slog.Debug("pg transaction: BEGIN", "height", height)

	err := pgx.BeginFunc(ctx, idx.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		// Block row first. The height is the primary key, so a
		// concurrent worker on the same height fails here and rolls
		// the whole block back instead of duplicating fact rows.
		batch.Queue(
			`INSERT INTO blocks (height, datetime) VALUES ($1, $2)`,
			height, payload.Block.Time)

		writeTxs(batch, txs)
		writeEntities(batch, delta)
		writeFacts(batch, cs)

		slog.Debug("pg transaction: executing batch", "height", height, "statements", batch.Len())

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				slog.Error("pg transaction: ROLLBACK", "height", height, "statement", i, "err", err)
				return fmt.Errorf("batch statement %d: %w", i, err)
			}
		}
		return nil
	})

	if err != nil {
		slog.Debug("pg transaction: ROLLBACK", "height", height, "duration", time.Since(start), "err", err)
		return err
	}

	idx.entities.Commit(delta)
	slog.Debug("pg transaction: COMMIT", "height", height, "duration", time.Since(start))
	return nil
}

func writeTxs(batch *pgx.Batch, txs []models.Tx) {
	for _, tx := range txs {
		batch.Queue(
			`INSERT INTO txs (hash, height, code) VALUES ($1, $2, $3) ON CONFLICT (hash) DO NOTHING`,
			tx.Hash, tx.Height, tx.Code)
	}
}

func writeEntities(batch *pgx.Batch, delta *entities.Delta) {
	for _, p := range delta.Providers {
		// A fresh moniker wins; an empty one never clears a stored value.
		batch.Queue(
			`INSERT INTO providers (address, moniker) VALUES ($1, $2)
			 ON CONFLICT (address) DO UPDATE SET moniker = CASE
				WHEN EXCLUDED.moniker <> '' THEN EXCLUDED.moniker
				ELSE providers.moniker END`,
			p.Address, p.Moniker)
	}
	for _, address := range delta.Consumers {
		batch.Queue(
			`INSERT INTO consumers (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
			address)
	}
	for _, id := range delta.Specs {
		batch.Queue(
			`INSERT INTO specs (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
			id)
	}
	for _, plan := range delta.Plans {
		batch.Queue(
			`INSERT INTO plans (id, description, pay) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			plan.ID, plan.Desc, plan.Pay)
	}
}

func writeFacts(batch *pgx.Batch, cs *events.ChangeSet) {
	for _, rp := range cs.RelayPayments {
		batch.Queue(
			`INSERT INTO relay_payments (
				relays, cu, pay, datetime,
				qos_sync, qos_availability, qos_latency,
				qos_sync_exc, qos_availability_exc, qos_latency_exc,
				provider, spec_id, height, consumer, tx
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			rp.Relays, rp.CU, rp.Pay, rp.Datetime,
			rp.QoSSync, rp.QoSAvailability, rp.QoSLatency,
			rp.QoSSyncExc, rp.QoSAvailabilityExc, rp.QoSLatencyExc,
			rp.Provider, rp.SpecID, rp.Height, rp.Consumer, rp.TxHash)
	}
	for _, ev := range cs.Events {
		batch.Queue(
			`INSERT INTO events (
				event_type, t1, t2, t3, b1, b2, b3, i1, i2, i3, r1, r2, r3,
				provider, consumer, height, tx, fulltext
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			int(ev.Kind), ev.T1, ev.T2, ev.T3, ev.B1, ev.B2, ev.B3,
			ev.I1, ev.I2, ev.I3, ev.R1, ev.R2, ev.R3,
			ev.Provider, ev.Consumer, ev.Height, ev.TxHash, ev.Fulltext)
	}
	for _, cr := range cs.ConflictResponses {
		batch.Queue(
			`INSERT INTO conflict_responses (
				height, consumer, spec_id, tx, vote_id, request_block, vote_deadline,
				api_interface, api_url, connection_type, request_data
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			cr.Height, cr.Consumer, cr.SpecID, cr.TxHash, cr.VoteID,
			cr.RequestBlock, cr.VoteDeadline, cr.APIInterface, cr.APIURL,
			cr.ConnectionType, cr.RequestData)
	}
	for _, cv := range cs.ConflictVotes {
		batch.Queue(
			`INSERT INTO conflict_votes (vote_id, height, provider, tx) VALUES ($1, $2, $3, $4)`,
			cv.VoteID, cv.Height, cv.Provider, cv.TxHash)
	}
	for _, sb := range cs.SubscriptionBuys {
		batch.Queue(
			`INSERT INTO subscription_buys (height, consumer, duration, plan, tx) VALUES ($1, $2, $3, $4, $5)`,
			sb.Height, sb.Consumer, sb.Duration, sb.Plan, sb.TxHash)
	}
	for _, pr := range cs.ProviderReported {
		batch.Queue(
			`INSERT INTO provider_reported (
				provider, height, cu, disconnections, epoch, errors, project,
				datetime, total_complaint_this_epoch, tx
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			pr.Provider, pr.Height, pr.CU, pr.Disconnections, pr.Epoch,
			pr.Errors, pr.Project, pr.Datetime, pr.TotalComplaintThisEpoch, pr.TxHash)
	}
	for _, br := range cs.LatestBlockReports {
		batch.Queue(
			`INSERT INTO provider_latest_block_reports (
				provider, height, tx, timestamp, chain_id, chain_block_height
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			br.Provider, br.Height, br.TxHash, br.Timestamp, br.ChainID, br.ChainHeight)
	}
}
