package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

func TestGetOrCreateRecipient_IsIdempotent(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	u := seedUser(t, db, 1, nil)
	b, err := CreateBroadcast(ctx, db, -100, 7, nil)
	if err != nil {
		t.Fatalf("CreateBroadcast: %v", err)
	}
	if b.Status != domain.BroadcastPending {
		t.Fatalf("new broadcast status = %s", b.Status)
	}

	r1, err := GetOrCreateRecipient(ctx, db, b.ID, u.ID)
	if err != nil {
		t.Fatalf("first GetOrCreateRecipient: %v", err)
	}
	if err := MarkRecipientSent(ctx, db, r1.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkRecipientSent: %v", err)
	}
	r2, err := GetOrCreateRecipient(ctx, db, b.ID, u.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateRecipient: %v", err)
	}
	if r2.ID != r1.ID || r2.Status != domain.RecipientSent || r2.SentAt == nil {
		t.Fatalf("existing row must be returned untouched: %+v", r2)
	}

	n, _ := CountRecipients(ctx, db, b.ID, "")
	if n != 1 {
		t.Fatalf("expected exactly one recipient row, got %d", n)
	}
}

func TestRecipientLifecycle_FailResetCounts(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	b, _ := CreateBroadcast(ctx, db, -100, 7, nil)

	var ids []uint
	for i := int64(1); i <= 3; i++ {
		u := seedUser(t, db, i, nil)
		r, err := GetOrCreateRecipient(ctx, db, b.ID, u.ID)
		if err != nil {
			t.Fatalf("GetOrCreateRecipient: %v", err)
		}
		ids = append(ids, r.ID)
	}
	if err := MarkRecipientFailed(ctx, db, ids[0], "Forbidden: bot was blocked by the user"); err != nil {
		t.Fatalf("MarkRecipientFailed: %v", err)
	}
	if err := MarkRecipientSent(ctx, db, ids[1], time.Now().UTC()); err != nil {
		t.Fatalf("MarkRecipientSent: %v", err)
	}

	counts, err := RecipientStatusCounts(ctx, db, b.ID)
	if err != nil {
		t.Fatalf("RecipientStatusCounts: %v", err)
	}
	if counts[domain.RecipientFailed] != 1 || counts[domain.RecipientSent] != 1 || counts[domain.RecipientPending] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	failed, err := ListRecipientIDsByStatus(ctx, db, b.ID, domain.RecipientFailed)
	if err != nil || len(failed) != 1 || failed[0] != ids[0] {
		t.Fatalf("ListRecipientIDsByStatus: %v %v", failed, err)
	}
	n, err := ResetRecipients(ctx, db, failed)
	if err != nil || n != 1 {
		t.Fatalf("ResetRecipients: n=%d err=%v", n, err)
	}
	r, _, err := GetRecipient(ctx, db, ids[0])
	if err != nil {
		t.Fatalf("GetRecipient: %v", err)
	}
	if r.Status != domain.RecipientPending || r.ErrorMessage != nil {
		t.Fatalf("reset recipient: %+v", r)
	}
	if r.User.TelegramID != 1 {
		t.Fatalf("user not preloaded: %+v", r.User)
	}

	if n, err := ResetRecipients(ctx, db, nil); n != 0 || err != nil {
		t.Fatalf("empty reset: n=%d err=%v", n, err)
	}

	page, err := ListRecipientsPage(ctx, db, b.ID, domain.RecipientPending, 0, 10)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListRecipientsPage: %d %v", len(page), err)
	}
}

func TestSetBroadcastStatus_AndDue(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due, _ := CreateBroadcast(ctx, db, 1, 1, &past)
	_, _ = CreateBroadcast(ctx, db, 1, 2, &future)
	_, _ = CreateBroadcast(ctx, db, 1, 3, nil)

	list, err := ListDueBroadcasts(ctx, db, now)
	if err != nil || len(list) != 1 || list[0].ID != due.ID {
		t.Fatalf("ListDueBroadcasts: %+v %v", list, err)
	}

	if err := SetBroadcastStatus(ctx, db, due.ID, domain.BroadcastInProgress); err != nil {
		t.Fatalf("SetBroadcastStatus: %v", err)
	}
	if list, _ := ListDueBroadcasts(ctx, db, now); len(list) != 0 {
		t.Fatalf("in-progress broadcast must not be due: %+v", list)
	}
	if err := SetBroadcastStatus(ctx, db, 9999, domain.BroadcastCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	counts, err := BroadcastStatusCounts(ctx, db)
	if err != nil || counts[domain.BroadcastPending] != 2 || counts[domain.BroadcastInProgress] != 1 {
		t.Fatalf("BroadcastStatusCounts: %v %v", counts, err)
	}
	total, _ := CountBroadcasts(ctx, db)
	page, _ := ListBroadcastsPage(ctx, db, 0, 2)
	if total != 3 || len(page) != 2 {
		t.Fatalf("total=%d page=%d", total, len(page))
	}
}

func TestClaimAndCompleteIfSettled(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	u1 := seedUser(t, db, 1, nil)
	u2 := seedUser(t, db, 2, nil)
	past := time.Now().UTC().Add(-time.Minute)
	b, _ := CreateBroadcast(ctx, db, 1, 1, &past)

	// A broadcast without recipients is never settled.
	if ok, err := CompleteIfSettled(ctx, db, b.ID); ok || err != nil {
		t.Fatalf("empty broadcast settled: ok=%v err=%v", ok, err)
	}

	won, err := ClaimBroadcast(ctx, db, b.ID, domain.BroadcastPending, domain.BroadcastInProgress)
	if !won || err != nil {
		t.Fatalf("first claim: won=%v err=%v", won, err)
	}
	if won, _ := ClaimBroadcast(ctx, db, b.ID, domain.BroadcastPending, domain.BroadcastInProgress); won {
		t.Fatal("second claim must lose")
	}

	r1, _ := GetOrCreateRecipient(ctx, db, b.ID, u1.ID)
	r2, _ := GetOrCreateRecipient(ctx, db, b.ID, u2.ID)
	_ = SetBroadcastStatus(ctx, db, b.ID, domain.BroadcastPending)

	// Reset to pending with recipients: not due any more.
	if list, _ := ListDueBroadcasts(ctx, db, time.Now().UTC()); len(list) != 0 {
		t.Fatalf("requeued broadcast must not be due: %+v", list)
	}

	_ = MarkRecipientSent(ctx, db, r1.ID, time.Now().UTC())
	if ok, _ := CompleteIfSettled(ctx, db, b.ID); ok {
		t.Fatal("settled while a recipient is still pending")
	}
	_ = MarkRecipientFailed(ctx, db, r2.ID, "boom")
	if ok, err := CompleteIfSettled(ctx, db, b.ID); !ok || err != nil {
		t.Fatalf("expected settle: ok=%v err=%v", ok, err)
	}
	got, _ := GetBroadcast(ctx, db, b.ID)
	if got.Status != domain.BroadcastCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}
