// Package gormstore keeps documents in Postgres through gorm: one jsonb row
// per document and one row per relation edge.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

type document struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	Body       []byte `gorm:"type:jsonb;not null"`
	Version    int64  `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (document) TableName() string { return "documents" }

type relation struct {
	Relation  string `gorm:"primaryKey;size:64"`
	FromID    string `gorm:"primaryKey;size:64"`
	ToID      string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}

func (relation) TableName() string { return "relations" }

type Store struct {
	db    *gorm.DB
	clock clockwork.Clock
}

var _ store.Store = (*Store)(nil)

// Open connects to Postgres and migrates the two tables.
func Open(ctx context.Context, dsn string, log *zap.Logger, clock clockwork.Clock) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger(log, 200*time.Millisecond),
		TranslateError: true,
		NowFunc:        func() time.Time { return clock.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %v", store.ErrUnavailable, err)
	}

	s := New(db, clock)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB, clock clockwork.Clock) *Store {
	return &Store{db: db, clock: clock}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&document{}, &relation{}); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var row document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, translate(err))
	}
	return row.toDocument(), nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	var rows []document
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, translate(err))
	}

	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	return docs, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, body any) (store.Document, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return store.Document{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	row := document{Collection: collection, ID: id, Body: raw, Version: 1}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return store.Document{}, fmt.Errorf("create %s/%s: %w", collection, id, translate(err))
	}
	return row.toDocument(), nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, patch any) (store.Document, error) {
	return s.merge(ctx, collection, id, -1, patch)
}

func (s *Store) CompareAndMerge(ctx context.Context, collection, id string, version int64, patch any) (store.Document, error) {
	return s.merge(ctx, collection, id, version, patch)
}

// merge locks the row, overlays the patch and bumps the version. A negative
// version skips the check.
func (s *Store) merge(ctx context.Context, collection, id string, version int64, patch any) (store.Document, error) {
	var out store.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			Take(&row).Error
		if err != nil {
			return translate(err)
		}
		if version >= 0 && row.Version != version {
			return fmt.Errorf("%w: at version %d, not %d", store.ErrConflict, row.Version, version)
		}

		body, err := store.MergeJSON(row.Body, patch)
		if err != nil {
			return err
		}

		res := tx.Model(&document{}).
			Where("collection = ? AND id = ? AND version = ?", collection, id, row.Version).
			Updates(map[string]any{
				"body":       body,
				"version":    row.Version + 1,
				"updated_at": s.clock.Now().UTC(),
			})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrConflict
		}

		row.Body = body
		row.Version++
		row.UpdatedAt = s.clock.Now().UTC()
		out = row.toDocument()
		return nil
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	return out, nil
}

func (s *Store) Relate(ctx context.Context, rel, fromID, toID string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&relation{Relation: rel, FromID: fromID, ToID: toID}).Error
	if err != nil {
		return fmt.Errorf("relate %s %s->%s: %w", rel, fromID, toID, translate(err))
	}
	return nil
}

func (s *Store) Related(ctx context.Context, rel, fromID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&relation{}).
		Where("relation = ? AND from_id = ?", rel, fromID).
		Order("created_at, to_id").
		Pluck("to_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("related %s %s: %w", rel, fromID, translate(err))
	}
	return ids, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, clock: s.clock})
	})
}

func (d document) toDocument() store.Document {
	return store.Document{
		Collection: d.Collection,
		ID:         d.ID,
		Body:       d.Body,
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
}
