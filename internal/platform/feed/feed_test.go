package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, nil)
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) add(_ context.Context, collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, collection)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func TestSubscribeSingleCollection(t *testing.T) {
	f := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got collector
	require.NoError(t, f.SubscribeAll(ctx, CollectionFabrics, got.add))

	require.NoError(t, f.Publish(ctx, CollectionOrders))
	require.NoError(t, f.Publish(ctx, CollectionFabrics))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{CollectionFabrics}, got.snapshot())
}

func TestSubscribeEveryCollection(t *testing.T) {
	f := newTestFeed(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got collector
	require.NoError(t, f.SubscribeAll(ctx, "", got.add))

	require.NoError(t, f.Publish(ctx, CollectionOrders))
	require.NoError(t, f.Publish(ctx, CollectionPurchases))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.ElementsMatch(t, []string{CollectionOrders, CollectionPurchases}, got.snapshot())
}

func TestNilFeedIsNoop(t *testing.T) {
	var f *Feed
	require.NoError(t, f.Publish(context.Background(), CollectionFabrics))
	require.NoError(t, f.SubscribeAll(context.Background(), CollectionFabrics, func(context.Context, string) {}))
}
