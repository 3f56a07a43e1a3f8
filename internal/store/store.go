// Package store is a small document store: JSON bodies addressed by
// collection and id, merge updates, and named relations between ids.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("document not found")
var ErrConflict = errors.New("document version conflict")
var ErrUnavailable = errors.New("storage unavailable")

type Document struct {
	Collection string
	ID         string
	Body       json.RawMessage
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	// Create fails with ErrConflict when the id is already taken.
	Create(ctx context.Context, collection, id string, body any) (Document, error)
	// Merge overwrites the top-level fields present in patch.
	Merge(ctx context.Context, collection, id string, patch any) (Document, error)
	// CompareAndMerge is Merge guarded by the version last read.
	CompareAndMerge(ctx context.Context, collection, id string, version int64, patch any) (Document, error)
	Relate(ctx context.Context, relation, fromID, toID string) error
	Related(ctx context.Context, relation, fromID string) ([]string, error)
	// InTx runs fn atomically; nothing fn wrote is kept if it returns an error.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// MergeJSON overlays the top-level fields of patch onto body.
func MergeJSON(body []byte, patch any) ([]byte, error) {
	base := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &base); err != nil {
			return nil, fmt.Errorf("merge: decode document: %w", err)
		}
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("merge: encode patch: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("merge: patch must be an object: %w", err)
	}

	for k, v := range fields {
		base[k] = v
	}
	return json.Marshal(base)
}
