package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/whisprlink/relay/internal/bot"
	"github.com/whisprlink/relay/internal/config"
	"github.com/whisprlink/relay/internal/db"
	"github.com/whisprlink/relay/internal/directory"
	"github.com/whisprlink/relay/internal/flood"
	"github.com/whisprlink/relay/internal/relay"
	"github.com/whisprlink/relay/internal/state"
	"github.com/whisprlink/relay/internal/web"
)

func newRouter(t *testing.T, webhookOn bool) (http.Handler, *directory.Directory, *gorm.DB) {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "router_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	dir := directory.New(conn, zap.NewNop())
	states := state.NewMemory(time.Hour)
	t.Cleanup(func() { _ = states.Close() })
	limiter := flood.New(time.Nanosecond)
	t.Cleanup(limiter.Close)

	// The client never reaches a live API in these tests; the QR and health
	// routes do not call Telegram, and the webhook ack happens before any
	// handling.
	client := bot.NewClient("test-token", time.Second)
	svc := relay.NewService(dir, client, states, zap.NewNop())
	d := bot.NewDispatcher(client, dir, svc, states, limiter, "", zap.NewNop())

	h := web.Router(web.Deps{
		DB:            conn,
		Dir:           dir,
		Dispatcher:    d,
		WebhookOn:     webhookOn,
		WebhookSecret: "s3cret",
		Log:           zap.NewNop(),
	})
	return h, dir, conn
}

func TestRouter_Health(t *testing.T) {
	h, _, _ := newRouter(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_Metrics(t *testing.T) {
	h, _, _ := newRouter(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "whispr_")
}

func TestRouter_QR(t *testing.T) {
	h, dir, _ := newRouter(t, false)
	code, err := dir.GetOrCreate(context.Background(), 77)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/"+code+".png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"), "body must be a PNG")
}

func TestRouter_QR_UnknownCode(t *testing.T) {
	h, _, _ := newRouter(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/ABCDEF.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_QR_MalformedCode(t *testing.T) {
	h, _, _ := newRouter(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr/not-a-code.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_WebhookDisabled(t *testing.T) {
	h, _, _ := newRouter(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tg/webhook?secret=s3cret", strings.NewReader(`{"update_id":1}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Webhook(t *testing.T) {
	h, _, _ := newRouter(t, true)

	t.Run("wrong secret", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tg/webhook?secret=nope", strings.NewReader(`{"update_id":1}`)))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tg/webhook?secret=s3cret", strings.NewReader("{not json")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("acks a valid update", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tg/webhook?secret=s3cret", strings.NewReader(`{"update_id":1}`)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})
}
