package dashboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subscribe feeds the hub from a Redis pub/sub channel until ctx is done.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, h *Hub) error {
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	ch := pubsub.Channel()

	h.logger.Info("Subscribed to dashboard channel", zap.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := h.Ingest([]byte(msg.Payload)); err != nil {
				h.logger.Warn("Error decoding dashboard event", zap.Error(err))
				continue
			}
			h.logger.Debug("Relayed dashboard event", zap.Int("bytes", len(msg.Payload)))
		}
	}
}
