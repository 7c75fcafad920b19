package indexer

import (
	"log/slog"

	"github.com/lavanet/lava-indexer/internal/events"
	"github.com/lavanet/lava-indexer/internal/models"
	"github.com/lavanet/lava-indexer/pkg/blockcache"
)

// assemble runs every event in the payload through the parser registry
// and collects the block's change set. Transactions are recorded
// either way, but a failed transaction (non-zero result code)
// contributes no events: the chain rolled its effects back.
func assemble(payload *blockcache.Payload) (*events.ChangeSet, []models.Tx) {
	cs := events.NewChangeSet()
	block := payload.Block

	txs := make([]models.Tx, 0, len(payload.Txs))
	for i := range payload.Txs {
		tx := &payload.Txs[i]
		txs = append(txs, models.Tx{
			Hash:   tx.Hash,
			Height: block.Height,
			Code:   tx.TxResult.Code,
		})

		if tx.TxResult.Code != 0 {
			slog.Debug("skipping events of failed tx",
				"height", block.Height, "tx", tx.Hash, "code", tx.TxResult.Code)
			continue
		}

		hash := tx.Hash
		ctx := events.Ctx{Height: block.Height, Datetime: block.Time, TxHash: &hash}
		for _, ev := range tx.TxResult.Events {
			events.Dispatch(ctx, ev, cs)
		}
	}

	// Begin/end block events have no transaction.
	ctx := events.Ctx{Height: block.Height, Datetime: block.Time}
	for _, ev := range payload.LifecycleEvents {
		events.Dispatch(ctx, ev, cs)
	}

	return cs, txs
}
