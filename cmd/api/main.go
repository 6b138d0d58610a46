package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/drinkshop/drinkshop-api/internal/cart"
	"github.com/drinkshop/drinkshop-api/internal/catalog"
	"github.com/drinkshop/drinkshop-api/internal/config"
	"github.com/drinkshop/drinkshop-api/internal/httpx"
	kafkax "github.com/drinkshop/drinkshop-api/internal/kafka"
	"github.com/drinkshop/drinkshop-api/internal/orders"
	"github.com/drinkshop/drinkshop-api/internal/postgres"
	"github.com/drinkshop/drinkshop-api/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pCancelled.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	pStatus.Start(ctx)

	authSvc := &auth.Service{DB: db, Redis: rdb}

	router := httpx.NewRouter()

	(&httpx.AuthHandler{Auth: authSvc}).Register(router)
	(&httpx.CatalogHandler{Repo: &catalog.Repo{DB: db}}).Register(router, authSvc)
	(&httpx.CartHandler{Repo: &cart.Repo{DB: db}}).Register(router, authSvc)
	(&httpx.OrdersHandler{
		Store:             &orders.Repo{DB: db},
		ProducerCreated:   pCreated,
		ProducerCancelled: pCancelled,
		ProducerStatus:    pStatus,
		Redis:             rdb,
		Service:           cfg.ServiceName,
		GuestUserID:       cfg.PosGuestUserID,
	}).Register(router, authSvc)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pCreated.Close()
	pCancelled.Close()
	pStatus.Close()
	cancel()
	pCreated.WaitClosed()
	pCancelled.WaitClosed()
	pStatus.WaitClosed()
}
