package rpc

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestDecodeBase64(t *testing.T) {
	got, ok := decodeBase64(b64("provider"))
	assert.True(t, ok)
	assert.Equal(t, "provider", got)

	// Binary payloads are not treated as text.
	_, ok = decodeBase64(base64.StdEncoding.EncodeToString([]byte{0x00, 0x01, 0xff}))
	assert.False(t, ok)

	_, ok = decodeBase64("not base64!!")
	assert.False(t, ok)

	_, ok = decodeBase64("")
	assert.False(t, ok)
}

func TestDecodeEventAttributes(t *testing.T) {
	ev := Event{
		Type: "lava_relay_payment",
		Attributes: []Attribute{
			{Key: b64("chainID"), Value: b64("ETH1")},
			{Key: b64("relayNumber"), Value: b64("250")},
		},
	}
	decodeEventAttributes(&ev)
	assert.Equal(t, "chainID", ev.Attributes[0].Key)
	assert.Equal(t, "ETH1", ev.Attributes[0].Value)
	assert.Equal(t, "relayNumber", ev.Attributes[1].Key)
	assert.Equal(t, "250", ev.Attributes[1].Value)
}

func TestDecodeEventAttributesPlainText(t *testing.T) {
	// Post-v0.35 nodes emit plain text; it must survive untouched even
	// when a key happens to be a decodable base64 string.
	ev := Event{
		Type: "lava_relay_payment",
		Attributes: []Attribute{
			{Key: "provider", Value: "lava@1tlq4m3phd3qvwkz9kmmmc7rrvcscwcc4gsyud2"},
			{Key: "CU", Value: "1000"},
		},
	}
	decodeEventAttributes(&ev)
	assert.Equal(t, "provider", ev.Attributes[0].Key)
	assert.Equal(t, "lava@1tlq4m3phd3qvwkz9kmmmc7rrvcscwcc4gsyud2", ev.Attributes[0].Value)
	assert.Equal(t, "CU", ev.Attributes[1].Key)
	assert.Equal(t, "1000", ev.Attributes[1].Value)
}
