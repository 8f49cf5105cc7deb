package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/whisprlink/relay/internal/directory"
	"github.com/whisprlink/relay/internal/flood"
	"github.com/whisprlink/relay/internal/metrics"
	"github.com/whisprlink/relay/internal/relay"
	"github.com/whisprlink/relay/internal/state"
)

// User-visible failure texts follow one template: indicator, cause, remedy.
const (
	msgCodeNotFound  = "❌ Code not found. Check for typos and try again."
	msgDeliveryFail  = "⚠️ Your message could not be delivered. Try again in a moment, or contact the operator if it keeps failing."
	msgTargetGone    = "❌ The recipient is no longer available."
	msgStoreFail     = "⚠️ Something went wrong on our side. Please try again."
	msgUnsupported   = "⚠️ That message type is not supported. Send text, a photo, video, document, audio, voice or video note, a sticker, or a poll."
	msgSelfSend      = "🙃 That is your own code. Share it with someone else so they can message you."
	msgSlowDown      = "⏳ Please slow down, then try again."
	msgNotUnderstood = "I only understand commands and 6-character codes. Use /help for an overview."

	msgPrompt = "👉 Type the message you want to send.\n\n🤖 Supported: text, photos, videos, documents, audio, voice messages, video notes, stickers and polls."
)

// Dispatcher routes inbound updates to the relay workflow and the command
// handlers. It holds no per-conversation data itself; everything ephemeral
// lives in the state store. Dispatch serializes updates per chat, so a
// conversation's state transitions happen in arrival order while different
// chats proceed in parallel.
type Dispatcher struct {
	c       *Client
	dir     *directory.Directory
	relays  *relay.Service
	states  state.Store
	flood   *flood.Limiter
	log     *zap.Logger
	baseURL string // public base URL, "" when the QR surface is disabled

	username string // bot username, resolved by Setup

	qmu    sync.Mutex
	queues map[int64][]queuedUpdate // key present means a drain worker is running
}

type queuedUpdate struct {
	ctx context.Context
	u   *Update
}

func NewDispatcher(c *Client, dir *directory.Directory, relays *relay.Service, states state.Store, flood *flood.Limiter, baseURL string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		c:       c,
		dir:     dir,
		relays:  relays,
		states:  states,
		flood:   flood,
		baseURL: baseURL,
		log:     log,
		queues:  make(map[int64][]queuedUpdate),
	}
}

// Setup resolves the bot's username and publishes the command menu. Must
// run once before updates are dispatched.
func (d *Dispatcher) Setup(ctx context.Context) error {
	me, err := d.c.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	d.username = me.Username

	return d.c.SetMyCommands(ctx, []BotCommand{
		{Command: "start", Description: "🚀 Get your anonymous link"},
		{Command: "profile", Description: "📊 Your code and stats"},
		{Command: "help", Description: "ℹ️ How this works"},
	})
}

// Dispatch queues an update for handling. Updates for the same chat are
// handled strictly in Dispatch order; without that, a code entry and the
// message that follows it could race and the message would miss the
// pending slot. Updates without a chat are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, u *Update) {
	chat, ok := updateChat(u)
	if !ok {
		return
	}

	d.qmu.Lock()
	q, running := d.queues[chat]
	d.queues[chat] = append(q, queuedUpdate{ctx: ctx, u: u})
	d.qmu.Unlock()
	if running {
		return
	}
	go d.drain(chat)
}

// drain works off one chat's queue. The queue entry is removed only after
// the map shows it empty, under the same lock Dispatch appends with, so
// exactly one drain runs per chat.
func (d *Dispatcher) drain(chat int64) {
	for {
		d.qmu.Lock()
		q := d.queues[chat]
		if len(q) == 0 {
			delete(d.queues, chat)
			d.qmu.Unlock()
			return
		}
		next := q[0]
		d.queues[chat] = q[1:]
		d.qmu.Unlock()

		d.Handle(next.ctx, next.u)
	}
}

func updateChat(u *Update) (int64, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, true
	case u.Callback != nil && u.Callback.Message != nil && u.Callback.Message.Chat != nil:
		return u.Callback.Message.Chat.ID, true
	}
	return 0, false
}

// Handle processes one update synchronously. Errors are logged and
// confined to this update; nothing here can take the process down.
func (d *Dispatcher) Handle(ctx context.Context, u *Update) {
	switch {
	case u.Callback != nil:
		d.handleCallback(ctx, u.Callback)
	case u.Message != nil:
		d.handleMessage(ctx, u.Message)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, m *Message) {
	if m.From == nil || m.Chat == nil {
		return
	}
	chat := m.Chat.ID

	if !d.flood.Allow(chat) {
		metrics.FloodDrops.Inc()
		d.reply(ctx, chat, msgSlowDown, nil)
		return
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
		d.handleStart(ctx, chat, payload)
		return
	case strings.HasPrefix(text, "/profile"):
		d.handleProfile(ctx, chat)
		return
	case strings.HasPrefix(text, "/help"):
		d.reply(ctx, chat, helpText(), nil)
		return
	case strings.HasPrefix(text, "/"):
		d.reply(ctx, chat, msgNotUnderstood, nil)
		return
	}

	// A pending target means whatever arrives now is the message itself.
	target, pending, err := d.states.Pending(ctx, chat)
	if err != nil {
		d.log.Error("pending lookup failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}
	if pending {
		d.relayPending(ctx, m, chat, target)
		return
	}

	if code, ok := directory.NormalizeCode(text); ok {
		d.beginRelay(ctx, chat, code, false)
		return
	}

	d.reply(ctx, chat, msgNotUnderstood, nil)
}

// beginRelay resolves a code and parks the conversation in the awaiting-
// message state. fromDeepLink softens the self-code case: opening your own
// share link just shows the welcome instead of an error.
func (d *Dispatcher) beginRelay(ctx context.Context, chat int64, code string, fromDeepLink bool) {
	target, err := d.dir.Resolve(ctx, code)
	if errors.Is(err, directory.ErrCodeNotFound) {
		d.reply(ctx, chat, msgCodeNotFound, nil)
		return
	}
	if err != nil {
		d.log.Error("resolve failed", zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}
	if target == chat {
		if fromDeepLink {
			d.sendWelcome(ctx, chat)
		} else {
			d.reply(ctx, chat, msgSelfSend, nil)
		}
		return
	}

	if err := d.states.SetPending(ctx, chat, target); err != nil {
		d.log.Error("set pending failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}
	d.reply(ctx, chat, msgPrompt, CancelKeyboard())
}

// relayPending forwards the message to the pending target and reports the
// structured result back to the sender. Every payload kind and outcome
// goes through this one reporting path.
func (d *Dispatcher) relayPending(ctx context.Context, m *Message, chat, target int64) {
	payload, ok := ExtractPayload(m)
	if !ok {
		d.reply(ctx, chat, msgUnsupported, CancelKeyboard())
		return
	}

	res := d.relays.Deliver(ctx, chat, target, payload)
	switch res.Outcome {
	case relay.Delivered:
		d.reply(ctx, chat, "✅ Message delivered!", AgainKeyboard())
	case relay.TargetGone:
		d.reply(ctx, chat, msgTargetGone, nil)
	case relay.DeliveryFailed:
		// Pending state survives: the sender can just send a new payload.
		d.reply(ctx, chat, msgDeliveryFail, CancelKeyboard())
	case relay.StoreFailed:
		d.reply(ctx, chat, msgStoreFail, CancelKeyboard())
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chat := cb.Message.Chat.ID

	switch cb.Data {
	case CallbackCancel:
		if err := d.c.AnswerCallbackQuery(ctx, cb.ID, "Cancelled"); err != nil {
			d.log.Debug("answer callback failed", zap.Error(err))
		}
		if err := d.states.Clear(ctx, chat); err != nil {
			d.log.Error("clear pending failed", zap.Int64("chat", chat), zap.Error(err))
		}
		if err := d.c.EditMessageText(ctx, chat, cb.Message.MessageID, "❌ Sending cancelled.", nil); err != nil {
			d.log.Debug("edit message failed", zap.Error(err))
		}

	case CallbackAgain:
		if err := d.c.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
			d.log.Debug("answer callback failed", zap.Error(err))
		}
		target, ok, err := d.states.LastTarget(ctx, chat)
		if err != nil {
			d.log.Error("last target lookup failed", zap.Int64("chat", chat), zap.Error(err))
			d.reply(ctx, chat, msgStoreFail, nil)
			return
		}
		if !ok {
			d.reply(ctx, chat, "Couldn't tell who to message again. Enter their code to start over.", nil)
			return
		}
		if err := d.states.SetPending(ctx, chat, target); err != nil {
			d.log.Error("set pending failed", zap.Int64("chat", chat), zap.Error(err))
			d.reply(ctx, chat, msgStoreFail, nil)
			return
		}
		if err := d.c.EditMessageText(ctx, chat, cb.Message.MessageID, msgPrompt, CancelKeyboard()); err != nil {
			d.log.Debug("edit message failed", zap.Error(err))
		}
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, chat int64, payload string) {
	// First contact registers the user either way.
	if _, err := d.dir.GetOrCreate(ctx, chat); err != nil {
		d.log.Error("get-or-create failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}

	if payload != "" {
		if code, ok := directory.NormalizeCode(payload); ok {
			d.beginRelay(ctx, chat, code, true)
		} else {
			d.reply(ctx, chat, msgCodeNotFound, nil)
		}
		return
	}

	d.sendWelcome(ctx, chat)
}

func (d *Dispatcher) sendWelcome(ctx context.Context, chat int64) {
	code, err := d.dir.LookupCode(ctx, chat)
	if err != nil {
		d.log.Error("code lookup failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}

	welcome := fmt.Sprintf(
		"🚀 Start receiving anonymous messages right now!\n\n"+
			"Your link:\n👉 %s\n\n"+
			"Put it in your profile bio so people can message you anonymously 💬",
		d.shareLink(code))
	d.reply(ctx, chat, welcome, nil)

	// QR of the share link, when the web surface is reachable.
	if d.baseURL != "" {
		if err := d.c.SendPhoto(ctx, chat, d.baseURL+"/qr/"+code+".png", "", nil); err != nil {
			d.log.Debug("qr photo not sent", zap.Error(err))
		}
	}
}

func (d *Dispatcher) handleProfile(ctx context.Context, chat int64) {
	code, err := d.dir.GetOrCreate(ctx, chat)
	if err != nil {
		d.log.Error("get-or-create failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}
	sent, received, err := d.dir.Counters(ctx, chat)
	if err != nil {
		d.log.Error("counters failed", zap.Int64("chat", chat), zap.Error(err))
		d.reply(ctx, chat, msgStoreFail, nil)
		return
	}

	d.reply(ctx, chat, fmt.Sprintf(
		"📊 Your profile\n\n"+
			"🔑 Code: %s\n"+
			"🔗 Link: %s\n\n"+
			"📥 Received: %d\n"+
			"📤 Sent: %d",
		code, d.shareLink(code), received, sent), nil)
}

// ShareLink builds the deep link for a code. Exported for the QR handler
// so both surfaces encode the identical URL.
func (d *Dispatcher) ShareLink(code string) string { return d.shareLink(code) }

func (d *Dispatcher) shareLink(code string) string {
	return "https://t.me/" + d.username + "?start=" + code
}

func (d *Dispatcher) reply(ctx context.Context, chat int64, text string, markup any) {
	if err := d.c.SendMessage(ctx, chat, text, markup); err != nil {
		d.log.Warn("reply not sent", zap.Int64("chat", chat), zap.Error(err))
	}
}

func helpText() string {
	return "ℹ️ How this works\n\n" +
		"/start — get your personal link and code\n" +
		"/profile — your code and message stats\n\n" +
		"To message someone anonymously, open their link or just type their 6-character code here, then send your message. " +
		"They will receive it without knowing who it came from."
}
