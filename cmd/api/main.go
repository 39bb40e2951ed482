package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-course-access/internal/config"
	"github.com/ariefcatur/go-course-access/internal/courses"
	"github.com/ariefcatur/go-course-access/internal/entitlement"
	"github.com/ariefcatur/go-course-access/internal/httpx"
	kafkax "github.com/ariefcatur/go-course-access/internal/kafka"
	"github.com/ariefcatur/go-course-access/internal/postgres"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, courses.TopicPaymentRecorded, 1024)
	prod.Start(ctx)

	repo := &courses.Repo{DB: db}
	router := httpx.NewRouter()
	h := &httpx.CoursesHandler{
		Store:        repo,
		Entitlements: entitlement.NewService(repo, &redisx.EntitlementCache{Redis: rdb}),
		Events:       prod,
		Redis:        rdb,
		Service:      cfg.ServiceName,
	}
	h.Register(router, []byte(cfg.JWTSecret))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	prod.Close()
	prod.WaitClosed()
}
