package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

func TestChannels_CRUD(t *testing.T) {
	db := newTestDB(t, &domain.SubscribeChannel{})
	ctx := context.Background()

	a := &domain.SubscribeChannel{ChannelUsername: "@a", ChannelID: -1001, Active: true}
	b := &domain.SubscribeChannel{ChannelUsername: "@b", ChannelID: -1002, Active: true}
	for _, ch := range []*domain.SubscribeChannel{a, b} {
		if err := CreateChannel(ctx, db, ch); err != nil {
			t.Fatalf("CreateChannel: %v", err)
		}
	}
	if err := CreateChannel(ctx, db, &domain.SubscribeChannel{ChannelID: -1001}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	upd := *b
	upd.Active = false
	got, err := UpdateChannel(ctx, db, b.ID, upd)
	if err != nil || got.Active {
		t.Fatalf("UpdateChannel: %+v %v", got, err)
	}
	if _, err := UpdateChannel(ctx, db, 9999, upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	active, _ := ListChannels(ctx, db, true)
	all, _ := ListChannels(ctx, db, false)
	if len(active) != 1 || len(all) != 2 {
		t.Fatalf("active=%d all=%d", len(active), len(all))
	}

	if err := DeleteChannel(ctx, db, a.ID); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if err := DeleteChannel(ctx, db, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLocations_AndSearchLog(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	u := seedUser(t, db, 1, nil)
	other := seedUser(t, db, 2, nil)

	if _, err := CreateLocation(ctx, db, u.ID, 41.3, 69.2); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if _, err := CreateLocation(ctx, db, other.ID, 1, 2); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	n, _ := CountLocations(ctx, db, u.ID)
	all, _ := CountLocations(ctx, db, 0)
	page, _ := ListLocationsPage(ctx, db, u.ID, 0, 10)
	if n != 1 || all != 2 || len(page) != 1 || page[0].Latitude != 41.3 {
		t.Fatalf("n=%d all=%d page=%+v", n, all, page)
	}

	if err := LogSearch(ctx, db, u.ID, "algebra", 4, true); err != nil {
		t.Fatalf("LogSearch: %v", err)
	}
	var q domain.SearchQuery
	if err := db.First(&q).Error; err != nil || q.FoundResults != 4 || !q.IsDeepSearch {
		t.Fatalf("search log row: %+v %v", q, err)
	}
}
