// Package services – FileService
//
// FileService delivers catalog documents to users by their stored Telegram
// file id. View and download counters are bumped with single-statement
// increments so concurrent deliveries never lose an update.
package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/repo"
	"github.com/tbourn/go-filebot-backend/internal/telegram"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FileService sends documents through the Bot API.
type FileService struct {
	DB  *gorm.DB
	Bot telegram.Messenger
	// Timeout bounds one SendDocument call.
	Timeout time.Duration
}

// NewFileService constructs a FileService.
func NewFileService(db *gorm.DB, bot telegram.Messenger) *FileService {
	return &FileService{DB: db, Bot: bot, Timeout: 10 * time.Second}
}

// SendFile sends the document to chatID with its title as caption, followed
// by note when non-empty. It increments the view counter before sending and
// the download counter after a successful send. It returns ErrFileNotFound
// for unknown ids and ErrFileNotAvailable for documents that cannot be sent
// yet.
func (s *FileService) SendFile(ctx context.Context, chatID int64, documentID, note string) error {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "SendFile",
		trace.WithAttributes(
			attribute.String("document.id", documentID),
			attribute.Int64("chat.id", chatID),
		),
	)
	defer span.End()

	p, err := repo.GetProductByDocumentID(ctx, s.DB, documentID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}
	if !p.Document.Deliverable() {
		return ErrFileNotAvailable
	}
	if s.Bot == nil {
		return ErrBotNotConfigured
	}

	if err := repo.IncrementProductViews(ctx, s.DB, documentID); err != nil {
		return err
	}

	caption := "<b>" + html.EscapeString(p.Title) + "</b>"
	if note != "" {
		caption += "\n\n" + note
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	err = s.Bot.SendDocument(sctx, chatID, *p.Document.TelegramFileID, caption)
	cancel()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("send document %s: %w", documentID, err)
	}

	if err := repo.IncrementProductDownloads(ctx, s.DB, documentID); err != nil {
		loggerFrom(ctx).Warn().Err(err).Str("document_id", documentID).Msg("download counter update failed")
	}
	return nil
}
