package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Memory keeps documents in process. It backs tests and runs without a
// database configured.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	data  *memData
}

func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{clock: clock, data: newMemData()}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.get(collection, id)
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.list(collection), nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, body any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.create(m.clock, collection, id, body)
}

func (m *Memory) Merge(ctx context.Context, collection, id string, patch any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.merge(m.clock, collection, id, -1, patch)
}

func (m *Memory) CompareAndMerge(ctx context.Context, collection, id string, version int64, patch any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.merge(m.clock, collection, id, version, patch)
}

func (m *Memory) Relate(ctx context.Context, relation, fromID, toID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.relate(relation, fromID, toID)
	return nil
}

func (m *Memory) Related(ctx context.Context, relation, fromID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.rels[relation][fromID]), nil
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{clock: m.clock, data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

// memTx works on a private copy; the lock is held by Memory.InTx.
type memTx struct {
	clock clockwork.Clock
	data  *memData
}

func (t *memTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return t.data.get(collection, id)
}

func (t *memTx) List(ctx context.Context, collection string) ([]Document, error) {
	return t.data.list(collection), nil
}

func (t *memTx) Create(ctx context.Context, collection, id string, body any) (Document, error) {
	return t.data.create(t.clock, collection, id, body)
}

func (t *memTx) Merge(ctx context.Context, collection, id string, patch any) (Document, error) {
	return t.data.merge(t.clock, collection, id, -1, patch)
}

func (t *memTx) CompareAndMerge(ctx context.Context, collection, id string, version int64, patch any) (Document, error) {
	return t.data.merge(t.clock, collection, id, version, patch)
}

func (t *memTx) Relate(ctx context.Context, relation, fromID, toID string) error {
	t.data.relate(relation, fromID, toID)
	return nil
}

func (t *memTx) Related(ctx context.Context, relation, fromID string) ([]string, error) {
	return slices.Clone(t.data.rels[relation][fromID]), nil
}

func (t *memTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

type memData struct {
	docs map[string]map[string]Document
	rels map[string]map[string][]string
}

func newMemData() *memData {
	return &memData{
		docs: map[string]map[string]Document{},
		rels: map[string]map[string][]string{},
	}
}

// Bodies are never mutated in place, so copying the maps is enough.
func (d *memData) clone() *memData {
	c := newMemData()
	for name, coll := range d.docs {
		c.docs[name] = maps.Clone(coll)
	}
	for name, rel := range d.rels {
		cr := make(map[string][]string, len(rel))
		for from, to := range rel {
			cr[from] = slices.Clone(to)
		}
		c.rels[name] = cr
	}
	return c
}

func (d *memData) get(collection, id string) (Document, error) {
	doc, ok := d.docs[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return doc, nil
}

func (d *memData) list(collection string) []Document {
	out := make([]Document, 0, len(d.docs[collection]))
	for _, doc := range d.docs[collection] {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *memData) create(clock clockwork.Clock, collection, id string, body any) (Document, error) {
	if _, ok := d.docs[collection][id]; ok {
		return Document{}, fmt.Errorf("%w: %s/%s already exists", ErrConflict, collection, id)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	now := clock.Now()
	doc := Document{
		Collection: collection,
		ID:         id,
		Body:       raw,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.docs[collection] == nil {
		d.docs[collection] = map[string]Document{}
	}
	d.docs[collection][id] = doc
	return doc, nil
}

// merge skips the version check when version is negative.
func (d *memData) merge(clock clockwork.Clock, collection, id string, version int64, patch any) (Document, error) {
	doc, err := d.get(collection, id)
	if err != nil {
		return Document{}, err
	}
	if version >= 0 && doc.Version != version {
		return Document{}, fmt.Errorf("%w: %s/%s is at version %d, not %d", ErrConflict, collection, id, doc.Version, version)
	}

	body, err := MergeJSON(doc.Body, patch)
	if err != nil {
		return Document{}, err
	}
	doc.Body = body
	doc.Version++
	doc.UpdatedAt = clock.Now()
	d.docs[collection][id] = doc
	return doc, nil
}

func (d *memData) relate(relation, fromID, toID string) {
	if d.rels[relation] == nil {
		d.rels[relation] = map[string][]string{}
	}
	if slices.Contains(d.rels[relation][fromID], toID) {
		return
	}
	d.rels[relation][fromID] = append(d.rels[relation][fromID], toID)
}
