package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_StableAndBoundarySensitive(t *testing.T) {
	a := Key("gpt-4o-mini", "v1", "excerpt")
	assert.Equal(t, a, Key("gpt-4o-mini", "v1", "excerpt"))
	assert.NotEqual(t, a, Key("gpt-4o", "v1", "excerpt"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, a, len("extract:")+64)
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	raw := []byte(`{"npv":1}`)
	require.NoError(t, c.Set(ctx, "k", raw))
	raw[2] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"npv":1}`, string(got))
	assert.Equal(t, 1, c.Len())
}

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), " ", 0, nil)
	assert.Error(t, err)
}
