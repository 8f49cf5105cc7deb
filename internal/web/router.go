package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/whisprlink/relay/internal/bot"
	"github.com/whisprlink/relay/internal/directory"
	"github.com/whisprlink/relay/internal/handlers"
)

// Deps is everything the HTTP surface needs. The webhook route is only
// mounted in webhook mode; the rest (health, QR, metrics) is always on.
type Deps struct {
	DB            *gorm.DB
	Dir           *directory.Directory
	Dispatcher    *bot.Dispatcher
	WebhookOn     bool
	WebhookSecret string
	Log           *zap.Logger
}

func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))
	if sqlDB, err := deps.DB.DB(); err == nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(sqlDB, time.Second))
	}
	r.Get("/healthz", health.LiveEndpoint)
	r.Get("/readyz", health.ReadyEndpoint)

	if deps.WebhookOn {
		r.Post("/tg/webhook", handlers.TelegramWebhook(deps.Dispatcher, deps.WebhookSecret, deps.Log))
	}

	r.Get("/qr/{code}.png", handlers.QR(deps.Dir, deps.Dispatcher.ShareLink))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger is a thin zap access log; chi's builtin logger writes to
// the stdlib log, which would bypass the structured pipeline.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
