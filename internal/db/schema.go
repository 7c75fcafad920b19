package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Init creates every table and index the indexer writes to. All DDL is
// idempotent so startup can run it unconditionally.
func Init(ctx context.Context, pool *pgxpool.Pool) error {
	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		height BIGINT PRIMARY KEY,
		datetime TIMESTAMP WITH TIME ZONE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_datetime ON blocks(datetime)`,

	`CREATE TABLE IF NOT EXISTS txs (
		hash TEXT PRIMARY KEY,
		height BIGINT NOT NULL,
		code INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_txs_height ON txs(height)`,

	`CREATE TABLE IF NOT EXISTS providers (
		address TEXT PRIMARY KEY,
		moniker TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS consumers (
		address TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS specs (
		id TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		pay BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS relay_payments (
		id BIGSERIAL PRIMARY KEY,
		relays BIGINT NOT NULL DEFAULT 0,
		cu BIGINT NOT NULL DEFAULT 0,
		pay BIGINT NOT NULL DEFAULT 0,
		datetime TIMESTAMP WITH TIME ZONE NOT NULL,
		qos_sync DOUBLE PRECISION,
		qos_availability DOUBLE PRECISION,
		qos_latency DOUBLE PRECISION,
		qos_sync_exc DOUBLE PRECISION,
		qos_availability_exc DOUBLE PRECISION,
		qos_latency_exc DOUBLE PRECISION,
		provider TEXT NOT NULL,
		spec_id TEXT NOT NULL,
		height BIGINT NOT NULL,
		consumer TEXT NOT NULL,
		tx TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_payments_datetime ON relay_payments(datetime)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_payments_provider ON relay_payments(provider)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_payments_spec ON relay_payments(spec_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_payments_height ON relay_payments(height)`,

	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		event_type INT NOT NULL,
		t1 TEXT, t2 TEXT, t3 TEXT,
		b1 BIGINT, b2 BIGINT, b3 BIGINT,
		i1 BIGINT, i2 BIGINT, i3 BIGINT,
		r1 DOUBLE PRECISION, r2 DOUBLE PRECISION, r3 DOUBLE PRECISION,
		provider TEXT,
		consumer TEXT,
		height BIGINT NOT NULL,
		tx TEXT,
		fulltext TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_height ON events(height)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
	`CREATE INDEX IF NOT EXISTS idx_events_provider ON events(provider)`,

	`CREATE TABLE IF NOT EXISTS conflict_responses (
		id BIGSERIAL PRIMARY KEY,
		height BIGINT NOT NULL,
		consumer TEXT,
		spec_id TEXT,
		tx TEXT,
		vote_id TEXT,
		request_block BIGINT,
		vote_deadline BIGINT,
		api_interface TEXT,
		api_url TEXT,
		connection_type TEXT,
		request_data TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflict_responses_height ON conflict_responses(height)`,

	`CREATE TABLE IF NOT EXISTS conflict_votes (
		id BIGSERIAL PRIMARY KEY,
		vote_id TEXT NOT NULL,
		height BIGINT NOT NULL,
		provider TEXT,
		tx TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conflict_votes_height ON conflict_votes(height)`,

	`CREATE TABLE IF NOT EXISTS subscription_buys (
		id BIGSERIAL PRIMARY KEY,
		height BIGINT NOT NULL,
		consumer TEXT,
		duration BIGINT,
		plan TEXT,
		tx TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscription_buys_height ON subscription_buys(height)`,

	`CREATE TABLE IF NOT EXISTS provider_reported (
		id BIGSERIAL PRIMARY KEY,
		provider TEXT,
		height BIGINT NOT NULL,
		cu BIGINT,
		disconnections BIGINT,
		epoch BIGINT,
		errors BIGINT,
		project TEXT,
		datetime TIMESTAMP WITH TIME ZONE,
		total_complaint_this_epoch BIGINT,
		tx TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_reported_height ON provider_reported(height)`,

	`CREATE TABLE IF NOT EXISTS provider_latest_block_reports (
		id BIGSERIAL PRIMARY KEY,
		provider TEXT NOT NULL,
		height BIGINT NOT NULL,
		tx TEXT,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		chain_id TEXT NOT NULL,
		chain_block_height BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_latest_block_reports_height ON provider_latest_block_reports(height)`,

	`CREATE TABLE IF NOT EXISTS agg_hourly_relay_payments (
		datehour TIMESTAMP WITH TIME ZONE NOT NULL,
		provider TEXT NOT NULL,
		spec_id TEXT NOT NULL,
		cu_sum BIGINT NOT NULL DEFAULT 0,
		relay_sum BIGINT NOT NULL DEFAULT 0,
		reward_sum BIGINT NOT NULL DEFAULT 0,
		qos_sync_avg DOUBLE PRECISION,
		qos_availability_avg DOUBLE PRECISION,
		qos_latency_avg DOUBLE PRECISION,
		qos_sync_exc_avg DOUBLE PRECISION,
		qos_availability_exc_avg DOUBLE PRECISION,
		qos_latency_exc_avg DOUBLE PRECISION,
		PRIMARY KEY (datehour, provider, spec_id)
	)`,

	`CREATE TABLE IF NOT EXISTS agg_daily_relay_payments (
		day TIMESTAMP WITH TIME ZONE NOT NULL,
		provider TEXT NOT NULL,
		spec_id TEXT NOT NULL,
		cu_sum BIGINT NOT NULL DEFAULT 0,
		relay_sum BIGINT NOT NULL DEFAULT 0,
		reward_sum BIGINT NOT NULL DEFAULT 0,
		qos_sync_avg DOUBLE PRECISION,
		qos_availability_avg DOUBLE PRECISION,
		qos_latency_avg DOUBLE PRECISION,
		qos_sync_exc_avg DOUBLE PRECISION,
		qos_availability_exc_avg DOUBLE PRECISION,
		qos_latency_exc_avg DOUBLE PRECISION,
		PRIMARY KEY (day, provider, spec_id)
	)`,

	`CREATE TABLE IF NOT EXISTS agg_alltime_relay_payments (
		provider TEXT NOT NULL,
		spec_id TEXT NOT NULL,
		cu_sum BIGINT NOT NULL DEFAULT 0,
		relay_sum BIGINT NOT NULL DEFAULT 0,
		reward_sum BIGINT NOT NULL DEFAULT 0,
		qos_sync_avg DOUBLE PRECISION,
		qos_availability_avg DOUBLE PRECISION,
		qos_latency_avg DOUBLE PRECISION,
		qos_sync_exc_avg DOUBLE PRECISION,
		qos_availability_exc_avg DOUBLE PRECISION,
		qos_latency_exc_avg DOUBLE PRECISION,
		PRIMARY KEY (provider, spec_id)
	)`,
}
