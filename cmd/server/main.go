package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whisprlink/relay/internal/bot"
	"github.com/whisprlink/relay/internal/config"
	"github.com/whisprlink/relay/internal/db"
	"github.com/whisprlink/relay/internal/directory"
	"github.com/whisprlink/relay/internal/flood"
	"github.com/whisprlink/relay/internal/logger"
	"github.com/whisprlink/relay/internal/relay"
	"github.com/whisprlink/relay/internal/state"
	"github.com/whisprlink/relay/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			zlog.Warn("db close failed", zap.Error(err))
		}
	}()
	zlog.Info("database ready", zap.String("type", cfg.Database.Type))

	var states state.Store
	if cfg.Redis.Address != "" {
		rs, err := state.NewRedis(cfg.Redis, cfg.Relay.PendingTTL)
		if err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()
		states = rs
		zlog.Info("conversation state in redis", zap.String("address", cfg.Redis.Address))
	} else {
		ms := state.NewMemory(cfg.Relay.PendingTTL)
		defer func() { _ = ms.Close() }()
		states = ms
	}

	dir := directory.New(conn, zlog.Named("directory"))

	client := bot.NewClient(cfg.Telegram.Token, cfg.Telegram.PollTimeout)
	relays := relay.NewService(dir, client, states, zlog.Named("relay"))

	limiter := flood.New(cfg.Relay.FloodCooldown)
	defer limiter.Close()

	dispatcher := bot.NewDispatcher(client, dir, relays, states, limiter, cfg.Server.PublicBaseURL, zlog.Named("bot"))
	if err := dispatcher.Setup(ctx); err != nil {
		return err
	}

	router := web.Router(web.Deps{
		DB:            conn,
		Dir:           dir,
		Dispatcher:    dispatcher,
		WebhookOn:     cfg.Telegram.Mode == config.ModeWebhook,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Log:           zlog.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("http listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		hook := cfg.Server.PublicBaseURL + "/tg/webhook?secret=" + cfg.Telegram.WebhookSecret
		if err := client.SetWebhook(ctx, hook); err != nil {
			return err
		}
		zlog.Info("webhook registered", zap.String("url", cfg.Server.PublicBaseURL+"/tg/webhook"))
	case config.ModePolling:
		poller := bot.NewPoller(client, dispatcher, cfg.Telegram.PollTimeout, zlog.Named("poller"))
		g.Go(func() error { return poller.Run(gctx) })
		zlog.Info("long polling started")
	}

	return g.Wait()
}
