package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/evanshop/storefront/internal/config"
	kafkax "github.com/evanshop/storefront/internal/kafka"
	"github.com/evanshop/storefront/internal/orders"
	"github.com/evanshop/storefront/internal/projector"
	"github.com/evanshop/storefront/internal/redisx"
)

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("bad integer %q, using %d", s, def)
		return def
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-projector",
	}

	group := getenv("PROJECTOR_GROUP", "order-projector")
	workers := atoiOr(os.Getenv("PROJECTOR_WORKERS"), 4)

	cPlaced := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderPlaced, workers)
	cDone := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderFulfilled, workers)

	go func() {
		log.Printf("projector started: group=%s topic=%s workers=%d", group, orders.TopicOrderPlaced, workers)
		if err := cPlaced.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Printf("placed consumer exit: %v", err)
			cancel()
		}
	}()
	go func() {
		log.Printf("projector started: group=%s topic=%s workers=%d", group, orders.TopicOrderFulfilled, workers)
		if err := cDone.Start(ctx, svc.HandleOrderFulfilled); err != nil {
			log.Printf("fulfilled consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down projector...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
