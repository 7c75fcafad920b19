package indexer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SchedulerOpts configures the tail-following scheduler.
type SchedulerOpts struct {
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
	// MaxHeightRetries bounds how often a failing height is requeued
	// before it is dropped for the gap scanner to pick up. Without a
	// bound one poisoned height starves everything behind it.
	MaxHeightRetries int
}

// Scheduler follows the chain tip, batching missing heights through
// the indexer with bounded concurrency.
type Scheduler struct {
	idx  *Indexer
	opts SchedulerOpts

	mu      sync.Mutex
	pending []int64
	retries map[int64]int
}

// NewScheduler creates a Scheduler with defaults filled in.
func NewScheduler(idx *Indexer, opts SchedulerOpts) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxHeightRetries <= 0 {
		opts.MaxHeightRetries = 3
	}
	return &Scheduler{
		idx:     idx,
		opts:    opts,
		retries: make(map[int64]int),
	}
}

// Run follows the chain until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started",
		"concurrency", s.opts.Concurrency,
		"batch_size", s.opts.BatchSize,
		"poll_interval", s.opts.PollInterval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.nextBatch(ctx)
		if err != nil {
			slog.Warn("scheduler: cannot determine next heights", "error", err)
			if !sleep(ctx, s.opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		if len(batch) == 0 {
			// Caught up with the tip.
			if !sleep(ctx, s.opts.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		s.processBatch(ctx, batch)
	}
}

// nextBatch drains requeued heights first, then extends toward the
// chain tip.
func (s *Scheduler) nextBatch(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	if len(s.pending) >= s.opts.BatchSize {
		batch := s.pending[:s.opts.BatchSize]
		s.pending = s.pending[s.opts.BatchSize:]
		s.mu.Unlock()
		return batch, nil
	}
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	head, err := s.idx.rpc.ChainHead(ctx)
	if err != nil {
		s.requeue(batch)
		return nil, err
	}
	dbMax, err := s.idx.MaxIndexedHeight(ctx)
	if err != nil {
		s.requeue(batch)
		return nil, err
	}

	return extendBatch(batch, dbMax+1, head, s.opts.BatchSize), nil
}

// extendBatch fills batch toward the chain tip. A requeued height can
// sit above the indexed maximum when later heights committed first, so
// heights already in the batch are skipped rather than handed to two
// workers.
func extendBatch(batch []int64, from, to int64, size int) []int64 {
	seen := make(map[int64]struct{}, len(batch))
	for _, h := range batch {
		seen[h] = struct{}{}
	}
	for h := from; h <= to && len(batch) < size; h++ {
		if _, ok := seen[h]; ok {
			continue
		}
		batch = append(batch, h)
	}
	return batch
}

func (s *Scheduler) processBatch(ctx context.Context, batch []int64) {
	start := time.Now()

	var failedMu sync.Mutex
	var failed []int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, height := range batch {
		height := height
		g.Go(func() error {
			if err := s.idx.IndexBlock(gctx, height); err != nil {
				slog.Error("failed to index block", "height", height, "error", err)
				failedMu.Lock()
				failed = append(failed, height)
				failedMu.Unlock()
				return nil
			}
			s.clearRetry(height)
			return nil
		})
	}
	g.Wait()

	s.handleFailures(failed)

	slog.Info("batch indexed",
		"from", batch[0],
		"to", batch[len(batch)-1],
		"failed", len(failed),
		"duration", time.Since(start))
}

// handleFailures requeues failed heights at the front so gaps close
// before the tail advances, dropping heights that keep failing.
func (s *Scheduler) handleFailures(failed []int64) {
	if len(failed) == 0 {
		return
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	s.mu.Lock()
	defer s.mu.Unlock()

	var keep []int64
	for _, h := range failed {
		s.retries[h]++
		if s.retries[h] >= s.opts.MaxHeightRetries {
			slog.Error("giving up on height, leaving gap for backfill",
				"height", h, "attempts", s.retries[h])
			delete(s.retries, h)
			continue
		}
		keep = append(keep, h)
	}
	s.pending = append(keep, s.pending...)
}

func (s *Scheduler) clearRetry(height int64) {
	s.mu.Lock()
	delete(s.retries, height)
	s.mu.Unlock()
}

func (s *Scheduler) requeue(heights []int64) {
	if len(heights) == 0 {
		return
	}
	s.mu.Lock()
	s.pending = append(heights, s.pending...)
	s.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
