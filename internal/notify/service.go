package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkax "github.com/drinkshop/drinkshop-api/internal/kafka"
	"github.com/drinkshop/drinkshop-api/internal/orders"
	"github.com/drinkshop/drinkshop-api/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service consumes order lifecycle events, keeps the Redis status cache
// warm for the mobile app's polling, and emits notification log lines.
// Stock is never touched here: debits and credits happen inside the order
// transactions on the API side.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.accept(ctx, m, orders.EventOrderCreated)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, p.Status)
	log.Printf("notify: order %s created for user %d, total %d cents", p.OrderID, p.UserID, p.TotalCents)
	return nil
}

func (s *Service) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.accept(ctx, m, orders.EventOrderCancelled)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, orders.StatusCancelled)
	log.Printf("notify: order %s cancelled by user %d", p.OrderID, p.UserID)
	return nil
}

func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	env, ok, err := s.accept(ctx, m, orders.EventOrderStatusChanged)
	if err != nil || !ok {
		return err
	}
	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}
	s.cacheStatus(ctx, p.OrderID, p.NewStatus)
	log.Printf("notify: order %s moved %s -> %s", p.OrderID, p.OldStatus, p.NewStatus)
	return nil
}

// accept decodes the envelope, filters on event type and dedups by event id
// so redelivered messages are no-ops.
func (s *Service) accept(ctx context.Context, m kafkago.Message, eventType string) (orders.Envelope, bool, error) {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, false, err
	}
	if env.EventType != eventType {
		return env, false, nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return env, false, nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return env, true, nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, status orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q}`, status)
	_ = s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}
