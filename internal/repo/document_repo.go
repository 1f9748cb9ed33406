// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file covers the read side of the document catalog
// (documents and their products) plus the atomic view/download counters.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-filebot-backend/internal/domain"
)

// GetDocument fetches a document by its UUID, or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetProductByDocumentID fetches the product of a document with the
// document preloaded.
func GetProductByDocumentID(ctx context.Context, db *gorm.DB, documentID string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Preload("Document").
		Where("document_id = ?", documentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolveDeliverableProducts returns the products of the given documents
// whose document is completed and carries a Telegram file id. The result
// follows the order of documentIDs; unknown or undeliverable ids are dropped.
func ResolveDeliverableProducts(ctx context.Context, db *gorm.DB, documentIDs []string) ([]domain.Product, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var rows []domain.Product
	err := db.WithContext(ctx).
		Preload("Document").
		Joins("JOIN documents ON documents.id = products.document_id").
		Where("products.document_id IN ?", documentIDs).
		Where("documents.completed = ? AND documents.telegram_file_id IS NOT NULL AND documents.telegram_file_id <> ''", true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byDoc := make(map[string]domain.Product, len(rows))
	for _, p := range rows {
		byDoc[p.DocumentID] = p
	}
	out := make([]domain.Product, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, id := range documentIDs {
		p, ok := byDoc[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// ListSearchableProducts returns every product whose document is completed,
// in insertion order. It feeds the in-process search index.
func ListSearchableProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = products.document_id").
		Where("documents.completed = ?", true).
		Order("products.id asc").
		Find(&out).Error
	return out, err
}

// IncrementProductViews atomically adds one to view_count.
func IncrementProductViews(ctx context.Context, db *gorm.DB, documentID string) error {
	return incrementProductCounter(ctx, db, documentID, "view_count")
}

// IncrementProductDownloads atomically adds one to download_count.
func IncrementProductDownloads(ctx context.Context, db *gorm.DB, documentID string) error {
	return incrementProductCounter(ctx, db, documentID, "download_count")
}

func incrementProductCounter(ctx context.Context, db *gorm.DB, documentID, column string) error {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("document_id = ?", documentID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
