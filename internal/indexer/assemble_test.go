package indexer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/pkg/blockcache"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func paymentEvent(provider string) rpc.Event {
	return rpc.Event{
		Type: "lava_relay_payment",
		Attributes: []rpc.Attribute{
			{Key: "provider", Value: provider},
			{Key: "chainID", Value: "ETH1"},
			{Key: "relayNumber", Value: "100"},
			{Key: "CU", Value: "400"},
		},
	}
}

func testTx(hash string, code uint32, events ...rpc.Event) rpc.TxResult {
	tx := rpc.TxResult{Hash: hash}
	tx.TxResult.Code = code
	tx.TxResult.Events = events
	return tx
}

func TestAssemble(t *testing.T) {
	p1 := "lava@" + strings.Repeat("a", 39)
	p2 := "lava@" + strings.Repeat("b", 39)
	p3 := "lava@" + strings.Repeat("c", 39)

	payload := &blockcache.Payload{
		Block: &rpc.Block{
			Height:  9000,
			Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			TxCount: 2,
		},
		Txs: []rpc.TxResult{
			testTx("AAA111", 0, paymentEvent(p1)),
			testTx("BBB222", 5, paymentEvent(p2)),
		},
		LifecycleEvents: []rpc.Event{paymentEvent(p3)},
	}

	cs, txs := assemble(payload)

	// Both transactions are recorded, including the failed one.
	require.Len(t, txs, 2)
	assert.Equal(t, "AAA111", txs[0].Hash)
	assert.Equal(t, uint32(0), txs[0].Code)
	assert.Equal(t, "BBB222", txs[1].Hash)
	assert.Equal(t, uint32(5), txs[1].Code)
	assert.Equal(t, int64(9000), txs[0].Height)

	// The failed transaction's payment is dropped; the successful tx
	// and the lifecycle event both survive.
	require.Len(t, cs.RelayPayments, 2)
	byProvider := map[string]int{}
	for i, rp := range cs.RelayPayments {
		byProvider[rp.Provider] = i
		assert.Equal(t, int64(9000), rp.Height)
		assert.Equal(t, payload.Block.Time, rp.Datetime)
	}
	assert.NotContains(t, byProvider, p2)

	require.Contains(t, byProvider, p1)
	txPayment := cs.RelayPayments[byProvider[p1]]
	require.NotNil(t, txPayment.TxHash)
	assert.Equal(t, "AAA111", *txPayment.TxHash)

	// Lifecycle events are not attached to any transaction.
	require.Contains(t, byProvider, p3)
	assert.Nil(t, cs.RelayPayments[byProvider[p3]].TxHash)
}

func TestAssembleEmptyBlock(t *testing.T) {
	payload := &blockcache.Payload{
		Block: &rpc.Block{Height: 9001, Time: time.Now().UTC()},
	}

	cs, txs := assemble(payload)
	assert.Empty(t, txs)
	assert.True(t, cs.Empty())
}
