package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	log "log/slog"

	"github.com/redis/go-redis/v9"
	cli "github.com/spf13/pflag"

	"aisam/internal/appkey"
	"aisam/internal/chat"
	"aisam/internal/config"
	"aisam/internal/console"
	"aisam/internal/notify"
	"aisam/internal/render"
	"aisam/internal/speech"
	"aisam/internal/translit"
	"aisam/internal/transport"
	"aisam/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := transport.NewHTTPClient(cfg.Socks, 30*time.Second)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Socks, "err", err)
		os.Exit(1)
	}

	keys, err := keyStore(cfg)
	if err != nil {
		log.Error("Failed to open key store", "err", err)
		os.Exit(1)
	}

	term := console.NewTerminal(os.Stdin, os.Stdout)
	pager := &render.Pager{
		Wrapper: render.Wrapper{Width: cfg.Width, EOL: cfg.EOL()},
		Height:  cfg.Height,
		Out:     term,
	}

	opts := []chat.Option{
		chat.WithRenderer(pager),
		chat.WithTable(translit.Table{EOL: cfg.EOL()}),
	}

	var voice console.Voice
	if cfg.Speech != "" {
		dev, err := tts.Open(cfg.Speech)
		if err != nil {
			log.Error("Failed to open speech device", "target", cfg.Speech, "err", err)
			os.Exit(1)
		}
		speaker := &speech.Speaker{Device: dev, MaxChunk: speech.DefaultChunk}
		voice = speaker
		opts = append(opts, chat.WithVoice(speaker))
	}

	engine, err := chat.NewEngine(chat.Config{
		SubmitURL:    cfg.SubmitURL(),
		CheckURL:     cfg.CheckURL(),
		DefaultToken: cfg.DefaultToken,
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.Timeout,
	}, transport.New(httpClient), appkey.Slot{Store: keys, Key: appkey.TokenKey}, opts...)
	if err != nil {
		log.Error("Failed to create engine", "err", err)
		os.Exit(1)
	}
	engine.SetSpeaking(!cfg.Mute)

	shell := &console.Shell{
		Term:  term,
		Conv:  engine,
		Voice: voice,
		Bell:  notify.Chimer(cfg.Chime),
	}
	if cfg.ATASCII {
		shell.ClearSeq = console.ClearATASCII
	}

	log.Debug("Client ready", "server", cfg.Server)

	if err := shell.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func keyStore(cfg config.Client) (appkey.Store, error) {
	if cfg.Redis == "" {
		return appkey.NewFileStore(cfg.KeyDir)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis,
		Password: cfg.RedisPassword,
	})
	return appkey.NewRedisStore(rdb, "aisam")
}
