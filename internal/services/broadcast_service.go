// Package services – BroadcastService
//
// This file implements the broadcast fan-out pipeline. Start walks every
// eligible user, creates one recipient row per (broadcast, user) and pushes
// one delivery job per deliverable row onto the job queue, pacing enqueues
// by EnqueueDelay. DeliverOne forwards the source message to one recipient
// and records the outcome in a single transaction. RequeueFailed resets
// failed rows and schedules them again.
//
// A broadcast reaches "completed" once every recipient has been scheduled,
// not once every delivery has finished; Progress reports the latter as
// Delivered.
//
// Observability: public methods are OpenTelemetry-instrumented and delivery
// outcomes are counted in broadcast_deliveries_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/observability"
	"github.com/tbourn/go-filebot-backend/internal/queue"
	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/telegram"
	"github.com/tbourn/go-filebot-backend/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BroadcastStats aggregates broadcasts and deliveries across all runs.
type BroadcastStats struct {
	TotalBroadcasts      int64 `json:"total_broadcasts"`
	PendingBroadcasts    int64 `json:"pending_broadcasts"`
	InProgressBroadcasts int64 `json:"in_progress_broadcasts"`
	CompletedBroadcasts  int64 `json:"completed_broadcasts"`
	TotalDeliveries      int64 `json:"total_deliveries"`
	PendingDeliveries    int64 `json:"pending_deliveries"`
	SuccessfulDeliveries int64 `json:"successful_deliveries"`
	FailedDeliveries     int64 `json:"failed_deliveries"`
}

// BroadcastService coordinates broadcast persistence, fan-out and delivery.
type BroadcastService struct {
	DB    *gorm.DB
	Queue queue.Enqueuer
	// Bot forwards messages. Nil when no bot token is configured.
	Bot telegram.Messenger

	// EnqueueDelay throttles the enqueue rate during fan-out.
	EnqueueDelay time.Duration
	// DeliveryTimeout bounds one forward call.
	DeliveryTimeout time.Duration
	// IncludeLeft also targets users flagged as having left the bot.
	IncludeLeft bool
	// BatchSize is the number of user ids read per fan-out page.
	BatchSize int

	Now func() time.Time
}

// NewBroadcastService constructs a BroadcastService with default pacing.
func NewBroadcastService(db *gorm.DB, q queue.Enqueuer, bot telegram.Messenger) *BroadcastService {
	return &BroadcastService{
		DB:              db,
		Queue:           q,
		Bot:             bot,
		EnqueueDelay:    40 * time.Millisecond,
		DeliveryTimeout: 10 * time.Second,
		BatchSize:       500,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *BroadcastService) tracer() trace.Tracer { return otel.Tracer("services/BroadcastService") }

func (s *BroadcastService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create persists a pending broadcast. Unscheduled broadcasts, and those
// scheduled in the past, are queued for fan-out right away; future ones are
// picked up by EnqueueDue.
func (s *BroadcastService) Create(ctx context.Context, fromChatID int64, messageID int, scheduled *time.Time) (*domain.Broadcast, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("broadcast.from_chat_id", fromChatID),
			attribute.Int("broadcast.message_id", messageID),
		),
	)
	defer span.End()

	if fromChatID == 0 || messageID <= 0 {
		return nil, ErrInvalidBroadcast
	}
	if scheduled != nil {
		t := scheduled.UTC()
		scheduled = &t
	}
	b, err := repo.CreateBroadcast(ctx, s.DB, fromChatID, messageID, scheduled)
	if err != nil {
		return nil, err
	}
	if scheduled == nil {
		if err := s.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindStartBroadcast, ID: b.ID}); err != nil {
			return b, fmt.Errorf("enqueue broadcast %d: %w", b.ID, err)
		}
		return b, nil
	}
	if scheduled.After(s.now()) {
		return b, nil
	}
	// Already due: claim it so EnqueueDue does not queue it a second time.
	won, err := s.enqueueClaimed(ctx, b.ID)
	if err != nil {
		return b, err
	}
	if won {
		b.Status = domain.BroadcastInProgress
	}
	return b, nil
}

// enqueueClaimed moves a pending broadcast to in_progress and queues its
// start job. It reports false when another caller holds the claim. A failed
// enqueue reverts the claim.
func (s *BroadcastService) enqueueClaimed(ctx context.Context, id uint) (bool, error) {
	won, err := repo.ClaimBroadcast(ctx, s.DB, id, domain.BroadcastPending, domain.BroadcastInProgress)
	if err != nil || !won {
		return false, err
	}
	if err := s.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindStartBroadcast, ID: id}); err != nil {
		_ = repo.SetBroadcastStatus(ctx, s.DB, id, domain.BroadcastPending)
		return false, fmt.Errorf("enqueue broadcast %d: %w", id, err)
	}
	return true, nil
}

// Get returns a broadcast by id.
func (s *BroadcastService) Get(ctx context.Context, id uint) (*domain.Broadcast, error) {
	b, err := repo.GetBroadcast(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrBroadcastNotFound
	}
	return b, err
}

// ListPage returns broadcasts newest first with the total count.
func (s *BroadcastService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Broadcast, int64, error) {
	p := utils.NewPage(page, pageSize, 20, 100)
	total, err := repo.CountBroadcasts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Broadcast{}, 0, nil
	}
	items, err := repo.ListBroadcastsPage(ctx, s.DB, p.Offset(), p.Size)
	return items, total, err
}

// Recipients returns a page of recipients of a broadcast, optionally
// filtered by status.
func (s *BroadcastService) Recipients(ctx context.Context, id uint, status domain.RecipientStatus, page, pageSize int) ([]domain.BroadcastRecipient, int64, error) {
	switch status {
	case "", domain.RecipientPending, domain.RecipientSent, domain.RecipientFailed:
	default:
		return nil, 0, ErrInvalidStatus
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	p := utils.NewPage(page, pageSize, 50, 200)
	total, err := repo.CountRecipients(ctx, s.DB, id, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BroadcastRecipient{}, 0, nil
	}
	items, err := repo.ListRecipientsPage(ctx, s.DB, id, status, p.Offset(), p.Size)
	return items, total, err
}

// Start runs one fan-out pass. A missing broadcast or one that is already
// completed is logged and skipped without error. Errors scheduling a single
// recipient are logged and do not stop the pass; a queue failure does, and
// leaves the broadcast in progress so the next pass resumes it.
func (s *BroadcastService) Start(ctx context.Context, id uint) error {
	ctx, span := s.tracer().Start(ctx, "Start",
		trace.WithAttributes(attribute.Int64("broadcast.id", int64(id))),
	)
	defer span.End()
	lg := loggerFrom(ctx).With().Uint("broadcast_id", id).Logger()

	b, err := repo.GetBroadcast(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		lg.Warn().Msg("broadcast not found")
		return nil
	}
	if err != nil {
		return err
	}
	if !b.Runnable() {
		lg.Warn().Str("status", string(b.Status)).Msg("broadcast is not runnable; skipping")
		return nil
	}
	if err := repo.SetBroadcastStatus(ctx, s.DB, id, domain.BroadcastInProgress); err != nil {
		return err
	}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 500
	}
	var (
		after     uint
		scheduled int
	)
	for {
		userIDs, err := repo.ListBroadcastTargets(ctx, s.DB, s.IncludeLeft, after, batch)
		if err != nil {
			return err
		}
		if len(userIDs) == 0 {
			break
		}
		for _, uid := range userIDs {
			after = uid
			r, err := repo.GetOrCreateRecipient(ctx, s.DB, id, uid)
			if err != nil {
				lg.Error().Err(err).Uint("user_id", uid).Msg("recipient lookup failed")
				continue
			}
			if !r.Deliverable() {
				continue
			}
			if err := s.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindDeliver, ID: r.ID}); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "enqueue failed")
				return fmt.Errorf("enqueue recipient %d: %w", r.ID, err)
			}
			observability.BroadcastEnqueued.Inc()
			scheduled++
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
	}

	if err := repo.SetBroadcastStatus(ctx, s.DB, id, domain.BroadcastCompleted); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("broadcast.scheduled", scheduled))
	lg.Info().Int("scheduled", scheduled).Msg("broadcast fan-out finished")
	return nil
}

// pause waits EnqueueDelay or until ctx is done.
func (s *BroadcastService) pause(ctx context.Context) error {
	if s.EnqueueDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.EnqueueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DeliverOne forwards the broadcast message to one recipient and records
// the outcome. A missing or already sent recipient is skipped. A Bot API
// failure, including a timeout, is stored on the recipient and is not
// returned; only ErrBotNotConfigured and database errors are.
//
// A timeout does not abort the Bot API request already on the wire, so a
// recipient recorded as failed by timeout may still receive the message,
// and RequeueFailed then sends it again. Delivery after a timeout is at
// least once.
func (s *BroadcastService) DeliverOne(ctx context.Context, recipientID uint) error {
	ctx, span := s.tracer().Start(ctx, "DeliverOne",
		trace.WithAttributes(attribute.Int64("recipient.id", int64(recipientID))),
	)
	defer span.End()
	lg := loggerFrom(ctx).With().Uint("recipient_id", recipientID).Logger()

	r, b, err := repo.GetRecipient(ctx, s.DB, recipientID)
	if errors.Is(err, repo.ErrNotFound) {
		lg.Warn().Msg("recipient not found")
		return nil
	}
	if err != nil {
		return err
	}
	if r.Status == domain.RecipientSent {
		lg.Debug().Msg("recipient already sent; skipping")
		return nil
	}
	if s.Bot == nil {
		lg.Error().Msg("cannot deliver broadcast: bot is not configured")
		return ErrBotNotConfigured
	}

	timeout := s.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	sendErr := s.Bot.ForwardMessage(dctx, r.User.TelegramID, b.FromChatID, b.MessageID)
	cancel()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sendErr == nil {
			if err := repo.MarkRecipientSent(ctx, tx, r.ID, s.now()); err != nil {
				return err
			}
			return repo.SetUserLeft(ctx, tx, r.UserID, false)
		}
		if err := repo.MarkRecipientFailed(ctx, tx, r.ID, telegram.ErrorText(sendErr)); err != nil {
			return err
		}
		if telegram.IsBlockedError(sendErr) {
			return repo.SetUserLeft(ctx, tx, r.UserID, true)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if sendErr != nil {
		observability.BroadcastDeliveries.WithLabelValues(string(domain.RecipientFailed)).Inc()
		span.SetAttributes(attribute.String("delivery.status", string(domain.RecipientFailed)))
		lg.Warn().Err(sendErr).Int64("telegram_id", r.User.TelegramID).Msg("broadcast delivery failed")
	} else {
		observability.BroadcastDeliveries.WithLabelValues(string(domain.RecipientSent)).Inc()
		span.SetAttributes(attribute.String("delivery.status", string(domain.RecipientSent)))
	}

	if ok, err := repo.CompleteIfSettled(ctx, s.DB, b.ID); err != nil {
		lg.Warn().Err(err).Msg("settle check failed")
	} else if ok {
		lg.Info().Uint("broadcast_id", b.ID).Msg("requeue pass finished")
	}
	return nil
}

// RequeueFailed resets every failed recipient of a broadcast to pending,
// schedules each again and moves the broadcast back to pending. With no
// failed recipients nothing changes. It returns the number requeued.
func (s *BroadcastService) RequeueFailed(ctx context.Context, id uint) (int, error) {
	ctx, span := s.tracer().Start(ctx, "RequeueFailed",
		trace.WithAttributes(attribute.Int64("broadcast.id", int64(id))),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	ids, err := repo.ListRecipientIDsByStatus(ctx, s.DB, id, domain.RecipientFailed)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ResetRecipients(ctx, tx, ids); err != nil {
			return err
		}
		return repo.SetBroadcastStatus(ctx, tx, id, domain.BroadcastPending)
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, rid := range ids {
		if err := s.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindDeliver, ID: rid}); err != nil {
			return n, fmt.Errorf("enqueue recipient %d: %w", rid, err)
		}
		observability.BroadcastEnqueued.Inc()
		n++
	}
	span.SetAttributes(attribute.Int("broadcast.requeued", n))
	loggerFrom(ctx).Info().Uint("broadcast_id", id).Int("requeued", n).Msg("failed recipients requeued")
	return n, nil
}

// Progress returns recipient counts for one broadcast.
func (s *BroadcastService) Progress(ctx context.Context, id uint) (*domain.BroadcastProgress, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := repo.RecipientStatusCounts(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	p := &domain.BroadcastProgress{
		BroadcastID: id,
		Status:      b.Status,
		Pending:     counts[domain.RecipientPending],
		Sent:        counts[domain.RecipientSent],
		Failed:      counts[domain.RecipientFailed],
	}
	p.Total = p.Pending + p.Sent + p.Failed
	p.Delivered = b.Status == domain.BroadcastCompleted && p.Pending == 0
	return p, nil
}

// Stats aggregates broadcasts and deliveries across all runs.
func (s *BroadcastService) Stats(ctx context.Context) (BroadcastStats, error) {
	var out BroadcastStats
	bs, err := repo.BroadcastStatusCounts(ctx, s.DB)
	if err != nil {
		return out, err
	}
	rs, err := repo.RecipientStatusCounts(ctx, s.DB, 0)
	if err != nil {
		return out, err
	}
	out.PendingBroadcasts = bs[domain.BroadcastPending]
	out.InProgressBroadcasts = bs[domain.BroadcastInProgress]
	out.CompletedBroadcasts = bs[domain.BroadcastCompleted]
	out.TotalBroadcasts = out.PendingBroadcasts + out.InProgressBroadcasts + out.CompletedBroadcasts
	out.PendingDeliveries = rs[domain.RecipientPending]
	out.SuccessfulDeliveries = rs[domain.RecipientSent]
	out.FailedDeliveries = rs[domain.RecipientFailed]
	out.TotalDeliveries = out.PendingDeliveries + out.SuccessfulDeliveries + out.FailedDeliveries
	return out, nil
}

// EnqueueDue queues fan-out for scheduled broadcasts whose time has come.
// Each broadcast is claimed (pending -> in_progress) before it is queued so
// overlapping ticks never schedule it twice.
func (s *BroadcastService) EnqueueDue(ctx context.Context) error {
	due, err := repo.ListDueBroadcasts(ctx, s.DB, s.now())
	if err != nil {
		return err
	}
	for _, b := range due {
		won, err := s.enqueueClaimed(ctx, b.ID)
		if err != nil {
			return err
		}
		if won {
			loggerFrom(ctx).Info().Uint("broadcast_id", b.ID).Msg("scheduled broadcast queued")
		}
	}
	return nil
}

// Handle dispatches queue jobs to Start and DeliverOne. It satisfies
// queue.Handler.
func (s *BroadcastService) Handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindStartBroadcast:
		return s.Start(ctx, job.ID)
	case queue.KindDeliver:
		return s.DeliverOne(ctx, job.ID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
