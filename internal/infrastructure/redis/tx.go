package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// atomically queues the commands built by fn on a MULTI/EXEC pipeline and
// commits them with a single EXEC. Nothing reaches Redis before the commit; if
// fn fails the queue is discarded.
func (b *Backend) atomically(ctx context.Context, op string, fn func(pipe redis.Pipeliner) error) error {
	pipe := b.client.TxPipeline()
	if err := fn(pipe); err != nil {
		_ = pipe.Discard()
		return err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s transaction failed: %w", op, err)
	}
	return nil
}
