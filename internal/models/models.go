package models

import "time"

// User is one row per Telegram identity that has ever talked to the bot.
// Code is the short public handle others use to reach this user; the
// Telegram ID behind it is never shown to anyone holding only the code.
// Rows are created once and never deleted; the only fields that change
// after creation are the two counters.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID int64  `gorm:"uniqueIndex;not null"`
	Code       string `gorm:"uniqueIndex;not null;size:6"`

	SentCount     int64 `gorm:"not null;default:0"`
	ReceivedCount int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
