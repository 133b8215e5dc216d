package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache("checkout")
	key := c.GenerateKey("order", "ord-1")
	require.Equal(t, "checkout:order:ord-1", key)

	require.NoError(t, c.Set(context.Background(), key, "payload", time.Minute))

	got, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "payload", got)
}

func TestMemoryCacheMissReturnsEmpty(t *testing.T) {
	c := NewMemoryCache("checkout")

	got, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache("checkout")
	key := c.GenerateKey("order", "ord-1")

	require.NoError(t, c.Set(context.Background(), key, "payload", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	got, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache("checkout")
	key := c.GenerateKey("order", "ord-1")

	require.NoError(t, c.Set(context.Background(), key, "payload", time.Minute))
	require.NoError(t, c.Delete(context.Background(), key))

	got, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Empty(t, got)
}
