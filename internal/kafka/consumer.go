package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	log     *zap.Logger

	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log, retryMin: 200 * time.Millisecond, retryMax: 10 * time.Second}
}

// Start dispatches messages to a worker pool until ctx is done. All messages
// of one partition go to the same worker and are handled in offset order. A
// failing message is retried in place, so nothing after it in its partition
// is committed before it succeeds. A message still failing at shutdown stays
// uncommitted and is fetched again by the next reader.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, h, m) {
					// ctx is done; drop the rest of the queue uncommitted
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed",
						zap.String("topic", m.Topic),
						zap.Int("partition", m.Partition),
						zap.Int64("offset", m.Offset),
						zap.Error(err))
				}
			}
		}(queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case queues[c.slot(m)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) slot(m kafka.Message) int {
	return int((xxhash.Sum64String(m.Topic) + uint64(m.Partition)) % uint64(c.workers))
}

// handle runs h until it succeeds. It reports false when ctx ended first.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.retryMin
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("handler failed",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if wait *= 2; wait > c.retryMax {
			wait = c.retryMax
		}
	}
}
