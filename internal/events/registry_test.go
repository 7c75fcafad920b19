package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/internal/models"
	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func testAddr(suffix string) string {
	return "lava@" + strings.Repeat("q", 39-len(suffix)) + suffix
}

func testCtx() Ctx {
	hash := "ABCDEF0123456789"
	return Ctx{
		Height:   11500,
		Datetime: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		TxHash:   &hash,
	}
}

func event(typ string, kv ...string) rpc.Event {
	ev := rpc.Event{Type: typ}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes = append(ev.Attributes, rpc.Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return ev
}

func TestDispatchRelayPayment(t *testing.T) {
	provider := testAddr("1")
	consumer := testAddr("2")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_relay_payment",
		"provider", provider,
		"client", consumer,
		"chainID", "ETH1",
		"relayNumber", "250",
		"CU", "1000",
		"BasePay", "5000ulava",
		"QoSSync", "0.95",
		"QoSAvailability", "1",
		"QoSLatency", "0.8",
	), cs)

	require.Len(t, cs.RelayPayments, 1)
	rp := cs.RelayPayments[0]
	assert.Equal(t, int64(250), rp.Relays)
	assert.Equal(t, int64(1000), rp.CU)
	assert.Equal(t, int64(5000), rp.Pay)
	assert.Equal(t, provider, rp.Provider)
	assert.Equal(t, consumer, rp.Consumer)
	assert.Equal(t, "ETH1", rp.SpecID)
	assert.Equal(t, int64(11500), rp.Height)
	require.NotNil(t, rp.QoSSync)
	assert.InDelta(t, 0.95, *rp.QoSSync, 1e-9)
	// Excellence scores were absent and must stay nil, not zero.
	assert.Nil(t, rp.QoSSyncExc)

	assert.Contains(t, cs.Providers, provider)
	assert.Contains(t, cs.Consumers, consumer)
	assert.Contains(t, cs.Specs, "ETH1")
}

func TestDispatchRelayPaymentInvalidProvider(t *testing.T) {
	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_relay_payment",
		"provider", "not-an-address",
		"relayNumber", "10",
	), cs)

	// The event is dropped as a payment but recorded as a parse error.
	assert.Empty(t, cs.RelayPayments)
	require.Len(t, cs.Events, 1)
	assert.Equal(t, models.KindParseError, cs.Events[0].Kind)
}

func TestDispatchNoiseIsSilent(t *testing.T) {
	cs := NewChangeSet()
	Dispatch(testCtx(), event("transfer", "amount", "5ulava"), cs)
	Dispatch(testCtx(), event("lava_new_epoch", "epoch", "120"), cs)
	Dispatch(testCtx(), event("coin_spent", "spender", "x"), cs)

	assert.True(t, cs.Empty())
}

func TestDispatchUnknownType(t *testing.T) {
	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_some_future_event", "foo", "bar"), cs)

	require.Len(t, cs.Events, 1)
	ev := cs.Events[0]
	assert.Equal(t, models.KindUnidentified, ev.Kind)
	require.NotNil(t, ev.T1)
	assert.Equal(t, "lava_some_future_event", *ev.T1)
	require.NotNil(t, ev.Fulltext)
	assert.Contains(t, *ev.Fulltext, "foo")
}

func TestDispatchStakeNewProvider(t *testing.T) {
	provider := testAddr("3")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_stake_new_provider",
		"provider", provider,
		"moniker", "my-node",
		"spec", "LAV1",
		"stake", "50000000ulava",
		"stakeAppliedBlock", "11501",
		"geolocation", "2",
		"effectiveImmediately", "true",
	), cs)

	require.Len(t, cs.Events, 1)
	ev := cs.Events[0]
	assert.Equal(t, models.KindStakeNewProvider, ev.Kind)
	assert.Equal(t, "LAV1", *ev.T1)
	assert.Equal(t, "my-node", *ev.T2)
	assert.Equal(t, int64(50000000), *ev.B1)
	assert.Equal(t, int64(11501), *ev.I1)
	assert.Equal(t, int64(2), *ev.I2)
	assert.Equal(t, int64(1), *ev.I3)

	require.Contains(t, cs.Providers, provider)
	assert.Equal(t, "my-node", cs.Providers[provider].Moniker)
}

func TestDispatchBuySubscription(t *testing.T) {
	consumer := testAddr("4")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_buy_subscription_event",
		"consumer", consumer,
		"duration", "6",
		"plan", "whale",
	), cs)

	require.Len(t, cs.SubscriptionBuys, 1)
	sb := cs.SubscriptionBuys[0]
	assert.Equal(t, consumer, *sb.Consumer)
	assert.Equal(t, int64(6), *sb.Duration)
	assert.Equal(t, "whale", *sb.Plan)
	assert.Contains(t, cs.Plans, "whale")
}

func TestDispatchProviderLatestBlockReport(t *testing.T) {
	provider := testAddr("5")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_provider_latest_block_report",
		"provider", provider,
		"ETH1", "19000000",
		"OSMO", "14000000",
		"junk", "not-a-number",
	), cs)

	require.Len(t, cs.LatestBlockReports, 2)
	byChain := map[string]int64{}
	for _, r := range cs.LatestBlockReports {
		assert.Equal(t, provider, r.Provider)
		byChain[r.ChainID] = r.ChainHeight
	}
	assert.Equal(t, int64(19000000), byChain["ETH1"])
	assert.Equal(t, int64(14000000), byChain["OSMO"])
}

func TestDispatchProviderBonusRewards(t *testing.T) {
	p1 := testAddr("6")
	p2 := testAddr("7")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_provider_bonus_rewards",
		p1+" ETH1", "1000ulava",
		p2+" OSMO", "2500ulava",
	), cs)

	require.Len(t, cs.Events, 2)
	for _, ev := range cs.Events {
		assert.Equal(t, models.KindProviderBonusRewards, ev.Kind)
		require.NotNil(t, ev.Provider)
		require.NotNil(t, ev.B1)
	}
	assert.Contains(t, cs.Providers, p1)
	assert.Contains(t, cs.Providers, p2)
	assert.Contains(t, cs.Specs, "ETH1")
	assert.Contains(t, cs.Specs, "OSMO")
}

func TestDispatchAddKeyToProject(t *testing.T) {
	owner := testAddr("8")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_add_key_to_project_event",
		"project", owner+"-myproject",
		"key", testAddr("9"),
		"keytype", "1",
		"block", "11400",
	), cs)

	require.Len(t, cs.Events, 1)
	ev := cs.Events[0]
	assert.Equal(t, models.KindAddKeyToProject, ev.Kind)
	require.NotNil(t, ev.Consumer)
	assert.Equal(t, owner, *ev.Consumer)
	assert.Contains(t, cs.Consumers, owner)
}

func TestDispatchConflictResponse(t *testing.T) {
	consumer := testAddr("a")

	cs := NewChangeSet()
	Dispatch(testCtx(), event("lava_response_conflict_detection",
		"client", consumer,
		"chainID", "ETH1",
		"voteID", "vote-123",
		"requestBlock", "11000",
		"voteDeadline", "11600",
		"apiInterface", "jsonrpc",
		"apiURL", "/eth_getBlockByNumber",
		"connectionType", "POST",
	), cs)

	require.Len(t, cs.ConflictResponses, 1)
	cr := cs.ConflictResponses[0]
	assert.Equal(t, consumer, *cr.Consumer)
	assert.Equal(t, "vote-123", *cr.VoteID)
	assert.Equal(t, int64(11000), *cr.RequestBlock)
	assert.Equal(t, "jsonrpc", *cr.APIInterface)
}

func TestChangeSetMonikerBackfill(t *testing.T) {
	addr := testAddr("b")

	cs := NewChangeSet()
	cs.AddProvider(addr, "")
	cs.AddProvider(addr, "named")
	cs.AddProvider(addr, "")

	// A later empty sighting never erases the moniker.
	assert.Equal(t, "named", cs.Providers[addr].Moniker)
}
