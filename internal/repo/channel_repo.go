// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for subscription
// channels, shared locations and the search log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// ListChannels returns channels ordered by id. With activeOnly set, only
// channels that are currently enforced are returned.
func ListChannels(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.SubscribeChannel, error) {
	q := db.WithContext(ctx)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []domain.SubscribeChannel
	err := q.Order("id asc").Find(&out).Error
	return out, err
}

// CreateChannel inserts a channel. A duplicate channel_id yields ErrDuplicate.
func CreateChannel(ctx context.Context, db *gorm.DB, ch *domain.SubscribeChannel) error {
	if err := db.WithContext(ctx).Create(ch).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateChannel overwrites the mutable fields of a channel.
func UpdateChannel(ctx context.Context, db *gorm.DB, id uint, ch domain.SubscribeChannel) (*domain.SubscribeChannel, error) {
	res := db.WithContext(ctx).
		Model(&domain.SubscribeChannel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"channel_username": ch.ChannelUsername,
			"channel_link":     ch.ChannelLink,
			"channel_id":       ch.ChannelID,
			"active":           ch.Active,
			"private":          ch.Private,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var out domain.SubscribeChannel
	if err := db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel removes a channel by id.
func DeleteChannel(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.SubscribeChannel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateLocation stores a location shared by a user.
func CreateLocation(ctx context.Context, db *gorm.DB, userID uint, lat, lon float64) (*domain.Location, error) {
	l := &domain.Location{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// CountLocations returns the number of stored locations, optionally for one user.
func CountLocations(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Location{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListLocationsPage returns locations newest first, optionally for one user.
func ListLocationsPage(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.Location, error) {
	q := db.WithContext(ctx)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var out []domain.Location
	err := q.Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// LogSearch appends a row to the search log.
func LogSearch(ctx context.Context, db *gorm.DB, userID uint, text string, found int64, deep bool) error {
	return db.WithContext(ctx).Create(&domain.SearchQuery{
		UserID:       userID,
		QueryText:    text,
		FoundResults: found,
		IsDeepSearch: deep,
		CreatedAt:    time.Now().UTC(),
	}).Error
}
