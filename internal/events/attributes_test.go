package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func TestFlattenKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"provider", "provider"},
		{"provider.1", "provider"},
		{"chainID.12", "chainID"},
		{"QoSSync", "QoSSync"},
		{"cosmos.authz.v1beta1.EventGrant", "cosmos.authz.v1beta1.EventGrant"},
		{"amount.", "amount."},
		{".5", ".5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, flattenKey(tc.in), "key %q", tc.in)
	}
}

func TestFlattenLastWins(t *testing.T) {
	ev := rpc.Event{
		Type: "lava_relay_payment",
		Attributes: []rpc.Attribute{
			{Key: "provider.0", Value: "first"},
			{Key: "provider.1", Value: "second"},
		},
	}
	attrs := Flatten(ev)
	assert.Equal(t, "second", attrs["provider"])
}

func TestAttrsInt(t *testing.T) {
	attrs := Attrs{"relays": "150", "bad": "abc"}

	got := attrs.Int("relays")
	require.NotNil(t, got)
	assert.Equal(t, int64(150), *got)

	// Malformed values degrade to zero rather than dropping the event.
	bad := attrs.Int("bad")
	require.NotNil(t, bad)
	assert.Equal(t, int64(0), *bad)

	assert.Nil(t, attrs.Int("absent"))
}

func TestAttrsUlava(t *testing.T) {
	attrs := Attrs{
		"pay":    "5000ulava",
		"bare":   "1234",
		"spaced": " 77ulava ",
		"bad":    "xyzulava",
	}

	assert.Equal(t, int64(5000), *attrs.Ulava("pay"))
	assert.Equal(t, int64(1234), *attrs.Ulava("bare"))
	assert.Equal(t, int64(77), *attrs.Ulava("spaced"))
	assert.Equal(t, int64(0), *attrs.Ulava("bad"))
	assert.Nil(t, attrs.Ulava("absent"))
}

func TestAttrsFloat(t *testing.T) {
	attrs := Attrs{"qos": "0.875"}

	got := attrs.Float("qos")
	require.NotNil(t, got)
	assert.InDelta(t, 0.875, *got, 1e-9)
	assert.Nil(t, attrs.Float("absent"))
}

func TestAttrsProvider(t *testing.T) {
	valid := "lava@1tlq4m3phd3qvwkz9kmmmc7rrvcscwcc4gsyud2"
	require.Len(t, valid, 44)

	attrs := Attrs{
		"provider": valid,
		"invalid":  "cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	}

	got, ok := attrs.Provider("provider")
	assert.True(t, ok)
	assert.Equal(t, valid, got)

	// An invalid address on the identifying field is a hard failure.
	_, ok = attrs.Provider("invalid")
	assert.False(t, ok)

	_, ok = attrs.Provider("absent")
	assert.False(t, ok)

	// Fallback keys are tried in order.
	got, ok = attrs.Provider("absent", "provider")
	assert.True(t, ok)
	assert.Equal(t, valid, got)
}
