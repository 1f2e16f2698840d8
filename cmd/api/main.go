package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/readmegen/internal/app"
	"github.com/suPer8Hu/readmegen/internal/config"
	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/httpapi"
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
	log := zl.Sugar().With("process", "api")

	if cfg.LogFormat != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("init", "err", err)
	}
	defer c.Close()

	var dispatcher generation.Dispatcher
	switch cfg.DispatchMode {
	case "local":
		// jobs run in this process; nothing survives a restart except pending rows
		pool := worker.NewPool(c.Executor, cfg.WorkerConcurrency, log)
		pool.Start(ctx)
		defer pool.Stop()
		dispatcher = pool
	case "rabbitmq":
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalw("rabbit", "err", err)
		}
		defer pub.Close()
		dispatcher = pub
	default:
		log.Fatalw("unsupported DISPATCH_MODE", "mode", cfg.DispatchMode)
	}

	svc := generation.NewService(c.Repo, dispatcher, c.Generator, log.With("component", "service"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(svc, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("http listening", "addr", cfg.HTTPAddr, "dispatch", cfg.DispatchMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	log.Infow("api shut down")
}
