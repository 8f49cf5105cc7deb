package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/whisprlink/relay/internal/bot"
)

// TelegramWebhook is the push binding: Telegram POSTs updates here.
// Simple secret check: /tg/webhook?secret=...
func TelegramWebhook(d *bot.Dispatcher, secret string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("secret") != secret {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		defer r.Body.Close()
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var up bot.Update
		if err := json.Unmarshal(b, &up); err != nil {
			log.Debug("webhook payload rejected", zap.Error(err))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		// Ack before handling: Telegram retries slow webhooks, and a retried
		// update would relay the same message twice. Dispatch only queues,
		// so the ack stays prompt; handling outlives the request and gets a
		// fresh context. Queueing before the ack keeps one chat's updates
		// in arrival order.
		d.Dispatch(context.Background(), &up)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
