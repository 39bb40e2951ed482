package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-course-access/internal/config"
	"github.com/ariefcatur/go-course-access/internal/courses"
	"github.com/ariefcatur/go-course-access/internal/entitlement"
	kafkax "github.com/ariefcatur/go-course-access/internal/kafka"
	"github.com/ariefcatur/go-course-access/internal/postgres"
	"github.com/ariefcatur/go-course-access/internal/projector"
	"github.com/ariefcatur/go-course-access/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// The producer outlives ctx so events emitted by draining workers still flush.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, courses.TopicEntitlementChanged, 1024)
	prod.Start(context.Background())

	name := cfg.ServiceName + "-projector"
	repo := &courses.Repo{DB: db}
	svc := &projector.Service{
		Entitlements: entitlement.NewService(repo, &redisx.EntitlementCache{Redis: rdb}),
		Dedup:        &redisx.Dedup{Redis: rdb, Service: name},
		Changed:      prod,
		ServiceName:  name,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, courses.TopicPaymentRecorded, cfg.ProjectorWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("projector started: group=%s topic=%s workers=%d",
			cfg.ProjectorGroup, courses.TopicPaymentRecorded, cfg.ProjectorWorkers)
		if err := cons.Start(ctx, svc.HandlePaymentRecorded); err != nil {
			log.Printf("consumer exit: %v", err)
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
	<-done
	prod.Close()
	prod.WaitClosed()
}
