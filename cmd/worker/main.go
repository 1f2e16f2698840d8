package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/readmegen/internal/app"
	"github.com/suPer8Hu/readmegen/internal/config"
	"github.com/suPer8Hu/readmegen/internal/logger"
	"github.com/suPer8Hu/readmegen/internal/store/rabbitmq"
	"github.com/suPer8Hu/readmegen/internal/worker"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	log := zl.Sugar().With("process", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("init", "err", err)
	}
	defer c.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, log)
	if err != nil {
		log.Fatalw("rabbit", "err", err)
	}
	defer consumer.Close()

	pool := worker.NewPool(c.Executor, cfg.WorkerConcurrency, log)
	pool.Start(ctx)

	log.Infow("worker started", "queue", cfg.RabbitQueue, "concurrency", cfg.WorkerConcurrency)
	runErr := consumer.Run(ctx, pool)

	// in-flight jobs settle their deliveries before the channel closes
	pool.Stop()
	if runErr != nil {
		log.Errorw("consumer stopped", "err", runErr)
		zl.Sync()
		os.Exit(1)
	}
	log.Infow("worker shut down")
}

