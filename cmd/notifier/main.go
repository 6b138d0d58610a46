package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/drinkshop/drinkshop-api/internal/config"
	kafkax "github.com/drinkshop/drinkshop-api/internal/kafka"
	"github.com/drinkshop/drinkshop-api/internal/notify"
	"github.com/drinkshop/drinkshop-api/internal/orders"
	"github.com/drinkshop/drinkshop-api/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), 4)

	consumers := []struct {
		topic   string
		handler kafkax.Handler
	}{
		{orders.TopicOrderCreated, svc.HandleOrderCreated},
		{orders.TopicOrderCancelled, svc.HandleOrderCancelled},
		{orders.TopicOrderStatusChanged, svc.HandleStatusChanged},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, c.topic, workers)
		handler := c.handler
		topic := c.topic
		g.Go(func() error {
			log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, topic, workers)
			return cons.Start(gctx, handler)
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down notifier...")
		cancel()
	case <-gctx.Done():
	}

	if err := g.Wait(); err != nil {
		log.Printf("consumer exit: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
