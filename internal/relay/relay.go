// Package relay implements the core workflow: resolve the pending target,
// deliver the payload anonymously, then account for it. One function covers
// every payload kind and returns a structured result that the dispatcher
// reports through a single path.
package relay

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/whisprlink/relay/internal/directory"
	"github.com/whisprlink/relay/internal/metrics"
	"github.com/whisprlink/relay/internal/state"
)

// Preamble is prepended to every relayed text or caption so recipients can
// tell relayed messages from the bot's own.
const Preamble = "✉️ You have a new anonymous message!"

// Outcome classifies a relay attempt.
type Outcome string

const (
	// Delivered: payload sent, counters bumped, pending state cleared.
	Delivered Outcome = "delivered"
	// TargetGone: the pending target has no directory record. Pending state
	// is cleared; retrying cannot succeed.
	TargetGone Outcome = "target_gone"
	// DeliveryFailed: the transport rejected the send. Pending state is kept
	// so the sender can retry without re-entering the code.
	DeliveryFailed Outcome = "delivery_failed"
	// StoreFailed: the directory or state store was unavailable. Pending
	// state is kept.
	StoreFailed Outcome = "store_failed"
)

// Result is what a relay attempt produced. Err carries the underlying
// cause for logging; user-facing wording is the dispatcher's concern.
type Result struct {
	Outcome Outcome
	Err     error
}

// Directory is the slice of the user directory the relay needs.
type Directory interface {
	LookupCode(ctx context.Context, telegramID int64) (string, error)
	IncrementSent(ctx context.Context, telegramID int64) error
	IncrementReceived(ctx context.Context, telegramID int64) error
}

// Transport delivers outbound payloads. *bot.Client satisfies it.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error
	SendPhoto(ctx context.Context, chatID int64, photo, caption string, replyMarkup any) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error
	SendAudio(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error
	SendVoice(ctx context.Context, chatID int64, fileID, caption string, replyMarkup any) error
	SendVideoNote(ctx context.Context, chatID int64, fileID string, replyMarkup any) error
	SendSticker(ctx context.Context, chatID int64, fileID string, replyMarkup any) error
	SendPoll(ctx context.Context, chatID int64, question string, options []string, isAnonymous bool, pollType string, allowsMultiple bool, replyMarkup any) error
}

type Service struct {
	dir       Directory
	transport Transport
	states    state.Store
	log       *zap.Logger
}

func NewService(dir Directory, transport Transport, states state.Store, log *zap.Logger) *Service {
	return &Service{dir: dir, transport: transport, states: states, log: log}
}

// Deliver relays payload from senderChatID to target. Counters are bumped
// only after the transport confirms delivery; a failed send touches
// neither counter and leaves the pending state in place.
func (s *Service) Deliver(ctx context.Context, senderChatID, target int64, payload Payload) Result {
	res := s.deliver(ctx, senderChatID, target, payload)
	metrics.Relays.WithLabelValues(string(payload.Kind), string(res.Outcome)).Inc()
	if res.Err != nil {
		s.log.Warn("relay attempt failed",
			zap.String("kind", string(payload.Kind)),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(res.Err))
	}
	return res
}

func (s *Service) deliver(ctx context.Context, senderChatID, target int64, payload Payload) Result {
	// Records are never deleted, so a missing target means the state store
	// handed us something that was never valid. Clear it.
	if _, err := s.dir.LookupCode(ctx, target); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			_ = s.states.Clear(ctx, senderChatID)
			return Result{Outcome: TargetGone}
		}
		return Result{Outcome: StoreFailed, Err: err}
	}

	start := time.Now()
	if err := s.sendPayload(ctx, target, payload); err != nil {
		return Result{Outcome: DeliveryFailed, Err: err}
	}
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	// Accounting is post-confirmation and best-effort: the message is
	// already with the recipient, so a counter error must not fail the
	// relay. It is logged, never swallowed.
	if err := s.dir.IncrementSent(ctx, senderChatID); err != nil {
		s.log.Error("sent counter not updated", zap.Error(err))
	}
	if err := s.dir.IncrementReceived(ctx, target); err != nil {
		s.log.Error("received counter not updated", zap.Error(err))
	}

	if err := s.states.Clear(ctx, senderChatID); err != nil {
		s.log.Error("pending state not cleared", zap.Int64("chat", senderChatID), zap.Error(err))
	}
	return Result{Outcome: Delivered}
}

// sendPayload maps a payload kind onto the right transport call. Text and
// captionable media get the preamble inline. Sticker and video note have
// no caption channel, so the media goes bare; a caption, when one exists,
// follows as its own preamble-prefixed message, and a bare sticker or
// video note sends nothing extra. Polls get the preamble first, then the
// poll.
func (s *Service) sendPayload(ctx context.Context, target int64, p Payload) error {
	caption := Preamble
	if p.Text != "" {
		caption += "\n\n" + p.Text
	}

	switch p.Kind {
	case KindText:
		return s.transport.SendMessage(ctx, target, caption, nil)
	case KindPhoto:
		return s.transport.SendPhoto(ctx, target, p.FileID, caption, nil)
	case KindVideo:
		return s.transport.SendVideo(ctx, target, p.FileID, caption, nil)
	case KindDocument:
		return s.transport.SendDocument(ctx, target, p.FileID, caption, nil)
	case KindAudio:
		return s.transport.SendAudio(ctx, target, p.FileID, caption, nil)
	case KindVoice:
		return s.transport.SendVoice(ctx, target, p.FileID, caption, nil)
	case KindVideoNote:
		if err := s.transport.SendVideoNote(ctx, target, p.FileID, nil); err != nil {
			return err
		}
		if p.Text == "" {
			return nil
		}
		return s.transport.SendMessage(ctx, target, caption, nil)
	case KindSticker:
		if err := s.transport.SendSticker(ctx, target, p.FileID, nil); err != nil {
			return err
		}
		if p.Text == "" {
			return nil
		}
		return s.transport.SendMessage(ctx, target, caption, nil)
	case KindPoll:
		if err := s.transport.SendMessage(ctx, target, caption, nil); err != nil {
			return err
		}
		return s.transport.SendPoll(ctx, target,
			p.Poll.Question, p.Poll.Options, p.Poll.IsAnonymous, p.Poll.Type, p.Poll.AllowsMultipleAnswers, nil)
	default:
		return errors.New("unsupported payload kind " + string(p.Kind))
	}
}
