// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// UserProfile carries the Telegram-reported fields refreshed on every update.
type UserProfile struct {
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	Deeplink     string
}

// GetUser fetches a user by primary key.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByTelegramID fetches a user by Telegram id, or ErrNotFound.
func GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser creates the user on first contact or refreshes the profile
// fields and last_active otherwise. The deeplink is only recorded on create.
// An inbound update proves the bot is reachable again, so left is cleared.
// It reports whether a new row was inserted.
func UpsertUser(ctx context.Context, db *gorm.DB, p UserProfile, now time.Time) (*domain.User, bool, error) {
	var (
		out     *domain.User
		created bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := GetUserByTelegramID(ctx, tx, p.TelegramID)
		switch {
		case errors.Is(err, ErrNotFound):
			u = &domain.User{
				TelegramID:    p.TelegramID,
				FirstName:     p.FirstName,
				LastName:      p.LastName,
				Username:      p.Username,
				StockLanguage: p.LanguageCode,
				Deeplink:      p.Deeplink,
				LastActive:    now,
			}
			if err := tx.Create(u).Error; err != nil {
				return err
			}
			out, created = u, true
			return nil
		case err != nil:
			return err
		}
		updates := map[string]any{
			"first_name":     p.FirstName,
			"last_name":      p.LastName,
			"username":       p.Username,
			"stock_language": p.LanguageCode,
			"last_active":    now,
			"left":           false,
		}
		if err := tx.Model(u).Updates(updates).Error; err != nil {
			return err
		}
		u.FirstName, u.LastName, u.Username = p.FirstName, p.LastName, p.Username
		u.StockLanguage, u.LastActive, u.Left = p.LanguageCode, now, false
		out = u
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// TouchUser bumps last_active for an existing user and clears left.
func TouchUser(ctx context.Context, db *gorm.DB, id uint, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_active": now, "left": false}).Error
}

// SetSelectedLanguage stores the language explicitly chosen by the user.
func SetSelectedLanguage(ctx context.Context, db *gorm.DB, id uint, lang string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("selected_language", lang)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetUserLeft sets or clears the soft "left" signal.
func SetUserLeft(ctx context.Context, db *gorm.DB, id uint, left bool) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("left", left).Error
}

// ListBroadcastTargets returns up to limit ids of non-blocked users with
// id > afterID, ascending. Users flagged left are excluded unless includeLeft.
// Callers page through the table by passing the last id they saw.
func ListBroadcastTargets(ctx context.Context, db *gorm.DB, includeLeft bool, afterID uint, limit int) ([]uint, error) {
	q := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("is_blocked = ? AND id > ?", false, afterID)
	if !includeLeft {
		q = q.Where(`"left" = ?`, false)
	}
	var ids []uint
	err := q.Order("id asc").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

// CountUsers returns the total number of users.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

// CountUsersActiveSince returns the number of users with last_active >= since.
func CountUsersActiveSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("last_active >= ?", since).
		Count(&n).Error
	return n, err
}
