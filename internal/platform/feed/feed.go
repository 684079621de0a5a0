// Package feed propagates record-change notifications between processes
// over Redis pub/sub. Payloads only name the collection that changed;
// subscribers reload whatever state they need.
package feed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "fabricdesk:changes:"

// Collection names published by the services.
const (
	CollectionFabrics   = "fabrics"
	CollectionPurchases = "purchases"
	CollectionOrders    = "orders"
	CollectionExpenses  = "expenses"
)

// Feed publishes and delivers change notifications.
type Feed struct {
	client *redis.Client
	logger *slog.Logger
}

// New constructs a Feed. A nil client yields a feed whose operations are no-ops.
func New(client *redis.Client, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{client: client, logger: logger}
}

// Publish announces that collection changed.
func (f *Feed) Publish(ctx context.Context, collection string) error {
	if f == nil || f.client == nil {
		return nil
	}
	if collection == "" {
		return errors.New("feed: collection required")
	}
	return f.client.Publish(ctx, channelPrefix+collection, collection).Err()
}

// SubscribeAll calls fn for every change to collection until ctx is done.
// An empty collection subscribes to every collection. The subscription is
// confirmed before SubscribeAll returns; fn runs on a single goroutine.
func (f *Feed) SubscribeAll(ctx context.Context, collection string, fn func(ctx context.Context, collection string)) error {
	if f == nil || f.client == nil {
		return nil
	}
	if fn == nil {
		return errors.New("feed: callback required")
	}
	var pubsub *redis.PubSub
	if collection == "" {
		pubsub = f.client.PSubscribe(ctx, channelPrefix+"*")
	} else {
		pubsub = f.client.Subscribe(ctx, channelPrefix+collection)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.logger.Debug("feed change", slog.String("collection", msg.Payload))
				fn(ctx, msg.Payload)
			}
		}
	}()
	return nil
}
