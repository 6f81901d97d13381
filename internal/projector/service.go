package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/evanshop/storefront/internal/kafka"
	"github.com/evanshop/storefront/internal/orders"
	"github.com/evanshop/storefront/internal/redisx"
)

// Service projects order events into Redis read models: the per-order
// status cache and the newest-first recent-orders feed.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil // ignore
	}
	if s.alreadySeen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	// Same StatusView shape the API caches, so writers never disagree.
	b := kafkax.MustMarshal(orders.StatusView{
		OrderID:    p.OrderRef,
		Status:     orders.StatusPending,
		TotalCents: p.TotalCents,
		OrderDate:  p.PlacedAt,
	})
	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderRef)
	if err := s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}

	// newest-first feed, capped
	pipe := s.Redis.Pipeline()
	pipe.LPush(ctx, redisx.KeyRecentOrders, p.OrderRef)
	pipe.LTrim(ctx, redisx.KeyRecentOrders, 0, redisx.RecentOrdersMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.markSeen(ctx, env.EventID)
	return nil
}

func (s *Service) HandleOrderFulfilled(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderFulfilled {
		return nil
	}
	if s.alreadySeen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderFulfilledPayload](env.Payload)
	if err != nil {
		return err
	}

	// Merge into the cached view rather than replacing it, so the total
	// and order date from placement survive fulfillment.
	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderRef)
	view := orders.StatusView{OrderID: p.OrderRef}
	if raw, err := s.Redis.Get(ctx, key).Result(); err == nil {
		_ = json.Unmarshal([]byte(raw), &view)
	}
	view.Status = orders.StatusDone
	view.OrderDoneDate = &p.DoneAt

	if err := s.Redis.Set(ctx, key, kafkax.MustMarshal(view), redisx.TTLStatusCache).Err(); err != nil {
		return err
	}

	s.markSeen(ctx, env.EventID)
	return nil
}

// alreadySeen reports whether an event id was fully processed before;
// a hit means skip (redelivery).
func (s *Service) alreadySeen(ctx context.Context, eventID string) bool {
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, eventID)
	exists, _ := redisx.Exists(ctx, s.Redis, key)
	return exists
}

// markSeen records an event id only after its projection landed, so a
// redelivery after a mid-handler failure is retried, not swallowed.
// Cache SETs are idempotent; at worst a retry repeats a feed entry.
func (s *Service) markSeen(ctx context.Context, eventID string) {
	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, eventID)
	_ = s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
}
