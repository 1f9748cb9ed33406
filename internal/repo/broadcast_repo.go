// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Broadcast and
// BroadcastRecipient.
//
// Recipient rows are created lazily during fan-out with an
// insert-on-conflict-do-nothing on (broadcast_id, user_id), so repeated or
// concurrent fan-out passes never produce duplicate rows.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// CreateBroadcast inserts a pending broadcast.
func CreateBroadcast(ctx context.Context, db *gorm.DB, fromChatID int64, messageID int, scheduled *time.Time) (*domain.Broadcast, error) {
	b := &domain.Broadcast{
		FromChatID:    fromChatID,
		MessageID:     messageID,
		Status:        domain.BroadcastPending,
		ScheduledTime: scheduled,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBroadcast fetches a broadcast by id, or ErrNotFound.
func GetBroadcast(ctx context.Context, db *gorm.DB, id uint) (*domain.Broadcast, error) {
	var b domain.Broadcast
	if err := db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBroadcasts returns the total number of broadcasts.
func CountBroadcasts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Broadcast{}).Count(&n).Error
	return n, err
}

// ListBroadcastsPage returns broadcasts newest first.
func ListBroadcastsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Broadcast, error) {
	var out []domain.Broadcast
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetBroadcastStatus updates the status of a broadcast. It returns
// ErrNotFound when no row matched.
func SetBroadcastStatus(ctx context.Context, db *gorm.DB, id uint, status domain.BroadcastStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Broadcast{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClaimBroadcast moves a broadcast from one status to another only if it is
// still in from. It reports whether this caller won the transition.
func ClaimBroadcast(ctx context.Context, db *gorm.DB, id uint, from, to domain.BroadcastStatus) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Broadcast{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// CompleteIfSettled marks a pending broadcast completed once it has
// recipients and none of them is pending. It closes a requeue pass.
func CompleteIfSettled(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Broadcast{}).
		Where("id = ? AND status = ?", id, domain.BroadcastPending).
		Where("EXISTS (SELECT 1 FROM broadcast_recipients r WHERE r.broadcast_id = broadcasts.id)").
		Where("NOT EXISTS (SELECT 1 FROM broadcast_recipients r WHERE r.broadcast_id = broadcasts.id AND r.status = ?)", domain.RecipientPending).
		Update("status", domain.BroadcastCompleted)
	return res.RowsAffected == 1, res.Error
}

// ListDueBroadcasts returns never-started pending broadcasts whose
// scheduled_time is at or before now. Broadcasts reset to pending by a
// requeue already have recipients and are not listed.
func ListDueBroadcasts(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Broadcast, error) {
	var out []domain.Broadcast
	err := db.WithContext(ctx).
		Where("status = ? AND scheduled_time IS NOT NULL AND scheduled_time <= ?", domain.BroadcastPending, now).
		Where("NOT EXISTS (SELECT 1 FROM broadcast_recipients r WHERE r.broadcast_id = broadcasts.id)").
		Order("scheduled_time asc").
		Find(&out).Error
	return out, err
}

// GetOrCreateRecipient returns the recipient row for (broadcastID, userID),
// inserting a pending row if none exists.
func GetOrCreateRecipient(ctx context.Context, db *gorm.DB, broadcastID, userID uint) (*domain.BroadcastRecipient, error) {
	r := &domain.BroadcastRecipient{
		BroadcastID: broadcastID,
		UserID:      userID,
		Status:      domain.RecipientPending,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "broadcast_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(r).Error
	if err != nil {
		return nil, err
	}

	var out domain.BroadcastRecipient
	err = db.WithContext(ctx).
		Where("broadcast_id = ? AND user_id = ?", broadcastID, userID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecipient fetches a recipient with its user and broadcast loaded.
func GetRecipient(ctx context.Context, db *gorm.DB, id uint) (*domain.BroadcastRecipient, *domain.Broadcast, error) {
	var r domain.BroadcastRecipient
	if err := db.WithContext(ctx).Preload("User").First(&r, id).Error; err != nil {
		return nil, nil, err
	}
	b, err := GetBroadcast(ctx, db, r.BroadcastID)
	if err != nil {
		return nil, nil, err
	}
	return &r, b, nil
}

// MarkRecipientSent records a successful delivery.
func MarkRecipientSent(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.BroadcastRecipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.RecipientSent,
			"sent_at":       at,
			"error_message": nil,
		}).Error
}

// MarkRecipientFailed records a failed delivery with its error text.
func MarkRecipientFailed(ctx context.Context, db *gorm.DB, id uint, msg string) error {
	return db.WithContext(ctx).
		Model(&domain.BroadcastRecipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.RecipientFailed,
			"error_message": msg,
		}).Error
}

// ListRecipientIDsByStatus returns ids of recipients of a broadcast in the
// given status, ascending.
func ListRecipientIDsByStatus(ctx context.Context, db *gorm.DB, broadcastID uint, status domain.RecipientStatus) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.BroadcastRecipient{}).
		Where("broadcast_id = ? AND status = ?", broadcastID, status).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}

// ResetRecipients moves the given recipients back to pending and clears
// their error text.
func ResetRecipients(ctx context.Context, db *gorm.DB, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.BroadcastRecipient{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":        domain.RecipientPending,
			"error_message": nil,
		})
	return res.RowsAffected, res.Error
}

// CountRecipients returns the number of recipients of a broadcast,
// optionally filtered by status (empty status means all).
func CountRecipients(ctx context.Context, db *gorm.DB, broadcastID uint, status domain.RecipientStatus) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.BroadcastRecipient{}).
		Where("broadcast_id = ?", broadcastID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListRecipientsPage returns recipients of a broadcast ordered by id,
// optionally filtered by status.
func ListRecipientsPage(ctx context.Context, db *gorm.DB, broadcastID uint, status domain.RecipientStatus, offset, limit int) ([]domain.BroadcastRecipient, error) {
	q := db.WithContext(ctx).Where("broadcast_id = ?", broadcastID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.BroadcastRecipient
	err := q.Order("id asc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// RecipientStatusCounts groups recipients by status. A zero broadcastID
// aggregates across all broadcasts.
func RecipientStatusCounts(ctx context.Context, db *gorm.DB, broadcastID uint) (map[domain.RecipientStatus]int64, error) {
	var rows []struct {
		Status domain.RecipientStatus
		N      int64
	}
	q := db.WithContext(ctx).Model(&domain.BroadcastRecipient{}).Select("status, COUNT(*) AS n")
	if broadcastID != 0 {
		q = q.Where("broadcast_id = ?", broadcastID)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[domain.RecipientStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// BroadcastStatusCounts groups broadcasts by status.
func BroadcastStatusCounts(ctx context.Context, db *gorm.DB) (map[domain.BroadcastStatus]int64, error) {
	var rows []struct {
		Status domain.BroadcastStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Broadcast{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.BroadcastStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
