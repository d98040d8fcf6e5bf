// Package outbox moves events committed alongside orders onto the broker.
package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Source interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.OutboxRecord, error)
	MarkSent(ctx context.Context, ids []int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls the outbox and publishes pending rows in id order. Delivery is
// at least once: a crash between publish and MarkSent republishes the batch,
// and consumers dedupe on event id.
type Relay struct {
	Source    Source
	Publisher Publisher
	Log       *zap.Logger
	Metrics   *metrics.Outbox
	Interval  time.Duration
	Batch     int
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		for {
			n, err := r.Flush(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.Log.Error("outbox flush failed", zap.Error(err))
				if r.Metrics != nil {
					r.Metrics.Failures.Inc()
				}
				break
			}
			// a full batch means more may be waiting
			if n < r.batch() {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return 100
	}
	return r.Batch
}

// Flush publishes one batch and reports how many rows it handled.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	recs, err := r.Source.FetchPending(ctx, r.batch())
	if err != nil || len(recs) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, len(recs))
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		m, err := kafkax.EnvelopeMessage(rec.Topic, rec.Key, rec.Payload)
		if err != nil {
			// an undecodable row would block the queue forever; publish it raw
			r.Log.Error("outbox row is not an envelope", zap.Int64("id", rec.ID), zap.Error(err))
			m = kafka.Message{Topic: rec.Topic, Key: rec.Key, Value: rec.Payload}
		}
		msgs = append(msgs, m)
		ids = append(ids, rec.ID)
	}

	if err := r.Publisher.Publish(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.Source.MarkSent(ctx, ids); err != nil {
		return 0, err
	}
	if r.Metrics != nil {
		for _, m := range msgs {
			r.Metrics.Published.WithLabelValues(m.Topic).Inc()
		}
	}
	r.Log.Debug("outbox flushed", zap.Int("events", len(msgs)))
	return len(msgs), nil
}
