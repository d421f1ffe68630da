package feed

import (
	"context"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/pkg/store"
)

const channelPrefix = "clients."

// RedisFeed broadcasts document changes over redis pub/sub, one channel per
// document id. Every process writing through a gateway publishes here, so
// dashboard instances see each other's writes.
type RedisFeed struct {
	cli *goredis.Client
}

var _ store.ChangeFeed = (*RedisFeed)(nil)

// NewRedisFeed wraps an existing redis client.
func NewRedisFeed(cli *goredis.Client) *RedisFeed {
	return &RedisFeed{cli: cli}
}

func (f *RedisFeed) Publish(ctx context.Context, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.cli.Publish(ctx, channelPrefix+ev.ID, payload).Err()
}

// Subscribe listens on the document's channel. Events arrive on the redis
// client's own delivery goroutine; fn must not assume any ordering relative
// to concurrent fetches. The returned handle closes the subscription.
func (f *RedisFeed) Subscribe(ctx context.Context, id string, fn func(store.ChangeEvent)) (store.Unsubscribe, error) {
	ps := f.cli.Subscribe(ctx, channelPrefix+id)
	// Force the SUBSCRIBE round-trip so a bad connection fails here, not
	// silently in the delivery goroutine.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var ev store.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logrus.WithError(err).WithField("channel", msg.Channel).
					Warn("dropping undecodable change event")
				continue
			}
			fn(ev)
		}
	}()

	return func() { _ = ps.Close() }, nil
}
