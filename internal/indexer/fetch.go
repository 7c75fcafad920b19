package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lavanet/lava-indexer/pkg/blockcache"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

// fetch retrieves everything needed for one height, replaying from the
// disk cache when available. RPC calls are retried with exponential
// backoff; consistency failures (a node answering for the wrong height
// or with an incomplete tx set) abort the attempt so the scheduler can
// requeue the height instead of hammering a stale node.
func (idx *Indexer) fetch(ctx context.Context, height int64) (*blockcache.Payload, error) {
	if cached, ok := idx.cache.Get(height); ok {
		return cached, nil
	}

	var payload *blockcache.Payload
	op := func() error {
		block, err := idx.rpc.BlockByHeight(ctx, height)
		if err != nil {
			return classify(err)
		}

		txs, err := idx.rpc.TxsByHeight(ctx, height, block.TxCount)
		if err != nil {
			return classify(err)
		}

		lifecycle, err := idx.rpc.LifecycleEventsByHeight(ctx, height)
		if err != nil {
			return classify(err)
		}

		payload = &blockcache.Payload{Block: block, Txs: txs, LifecycleEvents: lifecycle}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	idx.cache.Put(height, payload)
	return payload, nil
}

func classify(err error) error {
	if errors.Is(err, rpc.ErrHeightMismatch) || errors.Is(err, rpc.ErrTxCountMismatch) {
		return backoff.Permanent(err)
	}
	return err
}
