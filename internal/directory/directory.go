package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/whisprlink/relay/internal/metrics"
	"github.com/whisprlink/relay/internal/models"
)

var (
	// ErrUserNotFound means no record exists for the given Telegram ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrCodeNotFound means the code was never issued.
	ErrCodeNotFound = errors.New("code not found")
	// ErrCodeExhausted means repeated collisions prevented issuing a code.
	ErrCodeExhausted = errors.New("code generation exhausted")
)

// maxCodeAttempts bounds collision retries during code issuance. Past it
// the failure surfaces as ErrCodeExhausted instead of spinning.
const maxCodeAttempts = 10

// Directory owns all persistent user state: the identity↔code mapping and
// the per-user relay counters. Every read and write of user data goes
// through it.
type Directory struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Directory {
	return &Directory{db: db, log: log}
}

// GetOrCreate returns the code for telegramID, creating the record on first
// contact. Creation is an atomic insert-if-absent: concurrent calls for the
// same identity all converge on a single record and observe the same code.
func (d *Directory) GetOrCreate(ctx context.Context, telegramID int64) (string, error) {
	if code, err := d.LookupCode(ctx, telegramID); err == nil {
		return code, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		user := models.User{
			TelegramID: telegramID,
			Code:       GenerateCode(),
		}
		// DO NOTHING on the identity column: if another handler won the
		// insert race we fall through to the re-read below. A unique
		// violation can then only come from the code column, which is the
		// collision case we retry.
		res := d.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "telegram_id"}},
				DoNothing: true,
			}).
			Create(&user)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				metrics.CodeCollisions.Inc()
				d.log.Debug("code collision, retrying",
					zap.String("code", user.Code), zap.Int("attempt", attempt+1))
				continue
			}
			return "", fmt.Errorf("create user: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			metrics.UsersRegistered.Inc()
			d.log.Info("registered new user", zap.Int64("telegram_id", telegramID))
			return user.Code, nil
		}
		// Lost the race: the record exists now, return its code.
		return d.LookupCode(ctx, telegramID)
	}

	return "", ErrCodeExhausted
}

// LookupCode returns the code owned by telegramID.
func (d *Directory) LookupCode(ctx context.Context, telegramID int64) (string, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup code: %w", err)
	}
	return user.Code, nil
}

// Resolve maps a code back to the Telegram ID that owns it. This is the
// only path from a code to an identity, and its result is never echoed to
// the party that supplied the code.
func (d *Directory) Resolve(ctx context.Context, code string) (int64, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrCodeNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve code: %w", err)
	}
	return user.TelegramID, nil
}

// IncrementSent adds 1 to the sender counter. The update happens at the
// SQL level so concurrent relays never lose increments.
func (d *Directory) IncrementSent(ctx context.Context, telegramID int64) error {
	return d.increment(ctx, telegramID, "sent_count")
}

// IncrementReceived adds 1 to the receiver counter.
func (d *Directory) IncrementReceived(ctx context.Context, telegramID int64) error {
	return d.increment(ctx, telegramID, "received_count")
}

func (d *Directory) increment(ctx context.Context, telegramID int64, column string) error {
	res := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		// Unreachable in practice: identities are registered before they
		// can appear in a relay. Don't fail the relay over it.
		d.log.Warn("increment for unknown user",
			zap.Int64("telegram_id", telegramID), zap.String("column", column))
	}
	return nil
}

// Counters returns (sent, received) for telegramID, defaulting to zeros for
// unknown identities so profile rendering never errors.
func (d *Directory) Counters(ctx context.Context, telegramID int64) (sent, received int64, err error) {
	var user models.User
	e := d.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&user).Error
	if errors.Is(e, gorm.ErrRecordNotFound) {
		return 0, 0, nil
	}
	if e != nil {
		return 0, 0, fmt.Errorf("counters: %w", e)
	}
	return user.SentCount, user.ReceivedCount, nil
}

// CodeExists reports whether code was issued to anyone, without revealing
// to whom. Used by the QR handler.
func (d *Directory) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := d.Resolve(ctx, code)
	if errors.Is(err, ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
