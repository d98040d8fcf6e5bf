// Package cachesync keeps the Redis read cache consistent with committed
// order events.
package cachesync

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type Cache interface {
	BumpProducts(ctx context.Context) error
	InvalidateOrders(ctx context.Context, ids ...int64) error
	MarkProcessed(ctx context.Context, group, eventID string) (bool, error)
	UnmarkProcessed(ctx context.Context, group, eventID string) error
}

// Topics the handler subscribes to.
var Topics = []string{shop.TopicOrderPlaced, shop.TopicOrderCancelled}

type Handler struct {
	Cache Cache
	Group string
	Log   *zap.Logger
}

// Handle applies one event. Redelivered events are skipped by event id.
func (h *Handler) Handle(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// poison message: log and commit so the partition keeps moving
		h.Log.Error("dropping undecodable event", zap.Error(err))
		return nil
	}

	first, err := h.Cache.MarkProcessed(ctx, h.Group, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		h.Log.Debug("skipping duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	if err := h.apply(ctx, env); err != nil {
		// release the mark so the redelivery is applied
		if uerr := h.Cache.UnmarkProcessed(ctx, h.Group, env.EventID); uerr != nil {
			h.Log.Warn("dedup unmark failed", zap.String("event_id", env.EventID), zap.Error(uerr))
		}
		return err
	}
	h.Log.Debug("event applied", zap.String("type", env.EventType), zap.String("event_id", env.EventID))
	return nil
}

func (h *Handler) apply(ctx context.Context, env shop.Envelope) error {
	switch env.EventType {
	case shop.EventOrderPlaced:
		// stock changed
		return h.Cache.BumpProducts(ctx)
	case shop.EventOrderCancelled:
		p, err := shop.Decode[shop.OrderCancelledPayload](env)
		if err != nil {
			h.Log.Error("dropping malformed event", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		return h.Cache.InvalidateOrders(ctx, p.OrderID)
	case shop.EventOrdersPurged:
		p, err := shop.Decode[shop.OrdersPurgedPayload](env)
		if err != nil {
			h.Log.Error("dropping malformed event", zap.String("event_id", env.EventID), zap.Error(err))
			return nil
		}
		return h.Cache.InvalidateOrders(ctx, p.OrderIDs...)
	default:
		h.Log.Debug("ignoring event", zap.String("type", env.EventType))
		return nil
	}
}
