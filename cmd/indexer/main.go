package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lavanet/lava-indexer/internal/aggregator"
	"github.com/lavanet/lava-indexer/internal/api"
	"github.com/lavanet/lava-indexer/internal/config"
	"github.com/lavanet/lava-indexer/internal/db"
	"github.com/lavanet/lava-indexer/internal/entities"
	"github.com/lavanet/lava-indexer/internal/indexer"
	"github.com/lavanet/lava-indexer/internal/listener"
	"github.com/lavanet/lava-indexer/internal/publisher"
	"github.com/lavanet/lava-indexer/internal/worker"
	"github.com/lavanet/lava-indexer/pkg/blockcache"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	// Setup logging
	setupLogging(cfg.LogLevel)

	slog.Info("starting lava-indexer",
		"rpc_endpoints", len(cfg.RPCURLs),
		"queue_mode", cfg.QueueMode(),
		"ws_enabled", cfg.WSEnabled,
	)

	// Connect to PostgreSQL
	pool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Init(ctx, pool); err != nil {
		slog.Error("failed to init schema", "err", err)
		os.Exit(1)
	}

	// Create RPC client
	rpcClient := rpc.NewWithOpts(rpc.Opts{
		Endpoints: cfg.RPCURLs,
		RPS:       cfg.RPCRPS,
		Burst:     cfg.RPCBurst,
	})

	// Block replay cache
	cache, err := blockcache.New(cfg.CacheDir)
	if err != nil {
		slog.Error("failed to open block cache", "err", err)
		os.Exit(1)
	}

	// Entity snapshot
	ents := entities.New()
	if err := ents.Load(ctx, pool); err != nil {
		slog.Error("failed to load entity snapshot", "err", err)
		os.Exit(1)
	}

	// Create indexer and aggregation engine
	idx := indexer.New(rpcClient, pool, cache, ents)
	agg := aggregator.New(pool)

	// Run all components
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ents.RunRefresh(ctx, pool, cfg.EntityRefreshInterval)
		return nil
	})

	g.Go(func() error {
		return agg.Run(ctx, cfg.AggInterval)
	})

	if cfg.QueueMode() {
		if err := runQueueMode(ctx, g, cfg, idx, rpcClient); err != nil {
			slog.Error("failed to start queue mode", "err", err)
			os.Exit(1)
		}
	} else {
		sched := indexer.NewScheduler(idx, indexer.SchedulerOpts{
			Concurrency:      cfg.IndexConcurrency,
			BatchSize:        cfg.BatchSize,
			PollInterval:     cfg.PollInterval,
			MaxHeightRetries: cfg.MaxHeightRetries,
		})
		g.Go(func() error {
			return sched.Run(ctx)
		})
	}

	if cfg.HTTPEnabled {
		server := api.NewServer(&api.Handler{
			DB:         pool,
			RPC:        rpcClient,
			Indexer:    idx,
			Aggregator: agg,
			AdminToken: cfg.AdminToken,
		}, cfg.HTTPAddr)
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("indexer error", "err", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

// runQueueMode wires the Redis publisher/worker split: the worker
// consumes heights from the stream, heights are produced either by the
// WebSocket listener or by a tail-polling loop.
func runQueueMode(ctx context.Context, g *errgroup.Group, cfg *config.Config, idx *indexer.Indexer, rpcClient *rpc.Client) error {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(redisOpts)

	pub, err := publisher.New(redisClient, cfg.BlocksTopic)
	if err != nil {
		return err
	}

	wrk, err := worker.New(worker.Config{
		RedisClient:   redisClient,
		Indexer:       idx,
		Topic:         cfg.BlocksTopic,
		ConsumerGroup: cfg.ConsumerGroup,
	})
	if err != nil {
		return err
	}

	g.Go(func() error {
		defer wrk.Close()
		slog.Info("starting worker")
		return wrk.Run(ctx)
	})

	var lst *listener.Listener
	if cfg.WSEnabled {
		lst = listener.New(listener.Config{
			URL:            cfg.RPCURLs[0],
			MaxRetries:     cfg.WSMaxRetries,
			ReconnectDelay: cfg.WSReconnectDelay,
		}, func(height int64) {
			if err := pub.PublishBlock(ctx, height); err != nil {
				slog.Error("failed to publish block", "height", height, "err", err)
			}
		})
		g.Go(func() error {
			slog.Info("starting websocket listener")
			return lst.Run(ctx)
		})
	} else {
		g.Go(func() error {
			return publishTail(ctx, cfg, idx, rpcClient, pub)
		})
	}

	g.Go(func() error {
		watchQueue(ctx, wrk, lst)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if lst != nil {
			lst.Close()
		}
		pub.Close()
		return redisClient.Close()
	})
	return nil
}

// watchQueue logs queue depth and listener health once a minute so a
// stalled consumer group or a dead subscription shows up in the logs
// before the indexed height falls visibly behind.
func watchQueue(ctx context.Context, wrk *worker.Worker, lst *listener.Listener) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wrk.LogQueueStats(ctx)
			if lst == nil {
				continue
			}
			if !lst.IsConnected() {
				slog.Warn("websocket listener not connected")
				continue
			}
			_, uptime, msgs, last := lst.Stats()
			slog.Info("websocket listener stats",
				"uptime", uptime.Round(time.Second),
				"messages", msgs,
				"last_message", last.Format(time.RFC3339),
			)
		}
	}
}

// maxQueueBacklog pauses the tail publisher when the stream grows past
// it, so a stalled consumer group does not accumulate an unbounded
// redelivery backlog.
const maxQueueBacklog = 10000

// publishTail polls the chain head and enqueues every not-yet-indexed
// height up to it. Workers skip duplicates, so overlap with slow
// consumers is harmless.
func publishTail(ctx context.Context, cfg *config.Config, idx *indexer.Indexer, rpcClient *rpc.Client, pub *publisher.Publisher) error {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	var published int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if qlen, err := pub.QueueLength(ctx); err == nil && qlen > maxQueueBacklog {
			slog.Warn("publish tail: backlog high, holding",
				"topic", pub.Topic(), "queued", qlen)
			continue
		}

		head, err := rpcClient.ChainHead(ctx)
		if err != nil {
			slog.Warn("publish tail: chain head failed", "err", err)
			continue
		}
		dbMax, err := idx.MaxIndexedHeight(ctx)
		if err != nil {
			slog.Warn("publish tail: max height failed", "err", err)
			continue
		}
		if dbMax > published {
			published = dbMax
		}

		for h := published + 1; h <= head; h++ {
			if err := pub.PublishBlock(ctx, h); err != nil {
				slog.Error("publish tail: enqueue failed", "height", h, "err", err)
				break
			}
			published = h
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
