package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/redis/go-redis/v9"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"aisam/internal/config"
	"aisam/internal/proxyserver"
	"aisam/internal/responder"
	"aisam/internal/store"
	"aisam/internal/transport"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfg, err := config.LoadProxy(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	log.Info("Booting up")

	httpClient, err := transport.NewHTTPClient(cfg.Socks, cfg.ReplyLimit)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Socks, "err", err)
		os.Exit(1)
	}

	resp, err := responder.New(responder.NewOpenAI(cfg.APIKey, httpClient), cfg.Model)
	if err != nil {
		log.Error("Failed to create responder", "err", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Error("Failed to open store", "err", err)
		os.Exit(1)
	}

	metrics := proxyserver.NewMetrics()
	srv, err := proxyserver.New(proxyserver.Config{
		DefaultToken: cfg.DefaultToken,
		History:      cfg.History,
		ReplyLimit:   cfg.ReplyLimit,
		Metrics:      cfg.Metrics,
	}, st, resp, metrics)
	if err != nil {
		log.Error("Failed to create server", "err", err)
		os.Exit(1)
	}

	sweeper, err := proxyserver.NewSweeper(st, cfg.Sweep, cfg.Retention, metrics)
	if err != nil {
		log.Error("Failed to schedule sweep", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Listening", "addr", cfg.Addr, "model", cfg.Model)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	srv.Close()
	if err != nil {
		log.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func openStore(cfg config.Proxy) (store.Store, error) {
	if cfg.Redis == "" {
		log.Info("Keeping sessions in memory")
		return store.NewMemory(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info("Keeping sessions in redis", "addr", cfg.Redis)
	return store.NewRedis(rdb, cfg.RedisPrefix, cfg.Retention)
}
