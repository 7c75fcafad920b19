package blockcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavanet/lava-indexer/pkg/rpc"
)

func TestCacheRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := c.Get(100)
	assert.False(t, ok)

	p := &Payload{
		Block: &rpc.Block{
			Height:  100,
			Time:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			TxCount: 1,
		},
	}
	c.Put(100, p)

	got, ok := c.Get(100)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.Block.Height)
	assert.True(t, p.Block.Time.Equal(got.Block.Time))
}

func TestCacheDropsCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "200.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := c.Get(200)
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCacheDisabled(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	c.Put(1, &Payload{Block: &rpc.Block{Height: 1}})
	_, ok := c.Get(1)
	assert.False(t, ok)
}
