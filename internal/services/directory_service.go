// Package services – DirectoryService
//
// DirectoryService manages the small admin-owned tables: subscription
// channels, shared locations and the per-user language choice.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/i18n"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/utils"
)

// ChannelInput carries the writable fields of a subscription channel.
type ChannelInput struct {
	ChannelUsername string `json:"channel_username"`
	ChannelLink     string `json:"channel_link"`
	ChannelID       int64  `json:"channel_id"`
	Active          bool   `json:"active"`
	Private         bool   `json:"private"`
}

func (in ChannelInput) model() (domain.SubscribeChannel, error) {
	if in.ChannelID == 0 {
		return domain.SubscribeChannel{}, ErrInvalidChannel
	}
	return domain.SubscribeChannel{
		ChannelUsername: strings.TrimPrefix(strings.TrimSpace(in.ChannelUsername), "@"),
		ChannelLink:     strings.TrimSpace(in.ChannelLink),
		ChannelID:       in.ChannelID,
		Active:          in.Active,
		Private:         in.Private,
	}, nil
}

// DirectoryService provides channel, location and language operations.
type DirectoryService struct {
	DB *gorm.DB
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{DB: db}
}

// ListChannels returns channels ordered by id.
func (s *DirectoryService) ListChannels(ctx context.Context, activeOnly bool) ([]domain.SubscribeChannel, error) {
	return repo.ListChannels(ctx, s.DB, activeOnly)
}

// CreateChannel registers a channel.
func (s *DirectoryService) CreateChannel(ctx context.Context, in ChannelInput) (*domain.SubscribeChannel, error) {
	ch, err := in.model()
	if err != nil {
		return nil, err
	}
	if err := repo.CreateChannel(ctx, s.DB, &ch); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateChannel
		}
		return nil, err
	}
	// The active column defaults to true on insert; persist an explicit false.
	if !in.Active {
		if err := s.DB.WithContext(ctx).Model(&ch).Update("active", false).Error; err != nil {
			return nil, err
		}
		ch.Active = false
	}
	return &ch, nil
}

// UpdateChannel overwrites the writable fields of channel id.
func (s *DirectoryService) UpdateChannel(ctx context.Context, id uint, in ChannelInput) (*domain.SubscribeChannel, error) {
	ch, err := in.model()
	if err != nil {
		return nil, err
	}
	out, err := repo.UpdateChannel(ctx, s.DB, id, ch)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrChannelNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return nil, ErrDuplicateChannel
	case err != nil:
		return nil, err
	}
	return out, nil
}

// DeleteChannel removes channel id.
func (s *DirectoryService) DeleteChannel(ctx context.Context, id uint) error {
	if err := repo.DeleteChannel(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChannelNotFound
		}
		return err
	}
	return nil
}

// AddLocation stores a location for userID after validating the range.
func (s *DirectoryService) AddLocation(ctx context.Context, userID uint, lat, lon float64) (*domain.Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidLocation
	}
	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return repo.CreateLocation(ctx, s.DB, userID, lat, lon)
}

// ListLocations returns one page of locations newest first, optionally for
// one user, with the total count.
func (s *DirectoryService) ListLocations(ctx context.Context, userID uint, page, size int) ([]domain.Location, int64, error) {
	p := utils.NewPage(page, size, 20, 100)
	total, err := repo.CountLocations(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListLocationsPage(ctx, s.DB, userID, p.Offset(), p.Size)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SetLanguage stores the language chosen by userID.
func (s *DirectoryService) SetLanguage(ctx context.Context, userID uint, code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if !i18n.Supported(code) {
		return ErrUnsupportedLanguage
	}
	if err := repo.SetSelectedLanguage(ctx, s.DB, userID, code); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
