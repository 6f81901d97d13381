package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/evanshop/storefront/internal/auth"
	"github.com/evanshop/storefront/internal/catalog"
	"github.com/evanshop/storefront/internal/config"
	"github.com/evanshop/storefront/internal/httpx"
	kafkax "github.com/evanshop/storefront/internal/kafka"
	"github.com/evanshop/storefront/internal/orders"
	"github.com/evanshop/storefront/internal/postgres"
	"github.com/evanshop/storefront/internal/redisx"
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

	// Kafka producers
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pDone := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFulfilled, 1024)
	pDone.Start(ctx)

	// Stores & handlers
	sessions := &auth.RedisStore{RDB: rdb, TTL: cfg.SessionTTL}
	router := httpx.NewRouter()

	oh := &httpx.OrdersHandler{
		Store:     &orders.Repo{DB: db},
		Placed:    pPlaced,
		Fulfilled: pDone,
		Redis:     rdb,
		Sessions:  sessions,
		Service:   cfg.ServiceName,
	}
	oh.Register(router)

	ph := &httpx.ProductsHandler{
		Store:    &catalog.Repo{DB: db},
		Sessions: sessions,
	}
	ph.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pPlaced.Close() // close inbox -> flush & close writer
	pDone.Close()
	pPlaced.WaitClosed()
	pDone.WaitClosed()
}
