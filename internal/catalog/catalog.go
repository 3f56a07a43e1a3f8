// Package catalog serves the read-mostly content a draft runs on: creatures,
// draft sets that group them, and rule sets.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

const (
	CreatureCollection = "creatures"
	DraftSetCollection = "draft_sets"
	RuleSetCollection  = "rule_sets"
)

type Type string

const (
	TypeNormal   Type = "normal"
	TypeFire     Type = "fire"
	TypeWater    Type = "water"
	TypeElectric Type = "electric"
	TypeGrass    Type = "grass"
	TypeIce      Type = "ice"
	TypeFighting Type = "fighting"
	TypePoison   Type = "poison"
	TypeGround   Type = "ground"
	TypeFlying   Type = "flying"
	TypePsychic  Type = "psychic"
	TypeBug      Type = "bug"
	TypeRock     Type = "rock"
	TypeGhost    Type = "ghost"
	TypeDragon   Type = "dragon"
	TypeDark     Type = "dark"
	TypeSteel    Type = "steel"
	TypeFairy    Type = "fairy"
)

var knownTypes = map[Type]bool{
	TypeNormal: true, TypeFire: true, TypeWater: true, TypeElectric: true,
	TypeGrass: true, TypeIce: true, TypeFighting: true, TypePoison: true,
	TypeGround: true, TypeFlying: true, TypePsychic: true, TypeBug: true,
	TypeRock: true, TypeGhost: true, TypeDragon: true, TypeDark: true,
	TypeSteel: true, TypeFairy: true,
}

// Creature is one draftable item. ID is its dex number.
type Creature struct {
	ID          uint32 `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Type1       Type   `json:"type1" yaml:"type1"`
	Type2       Type   `json:"type2,omitempty" yaml:"type2"`
	EvolvesFrom uint32 `json:"evolves_from,omitempty" yaml:"evolves_from"`
	Generation  uint8  `json:"generation" yaml:"generation"`
	Legendary   bool   `json:"legendary" yaml:"legendary"`
	Mythic      bool   `json:"mythic" yaml:"mythic"`
}

func (c Creature) Validate() error {
	if c.ID == 0 || c.Name == "" {
		return fmt.Errorf("%w: creature needs an id and a name", engine.ErrInvalidArgument)
	}
	if !knownTypes[c.Type1] {
		return fmt.Errorf("%w: creature %d has unknown type %q", engine.ErrInvalidArgument, c.ID, c.Type1)
	}
	if c.Type2 != "" && !knownTypes[c.Type2] {
		return fmt.Errorf("%w: creature %d has unknown type %q", engine.ErrInvalidArgument, c.ID, c.Type2)
	}
	return nil
}

// DraftSet is a named pool of creatures a session can draft from.
type DraftSet struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	CreatureIDs []uint32 `json:"creature_ids" yaml:"creatures"`
}

type Catalog struct {
	store store.Store
}

func New(s store.Store) *Catalog {
	return &Catalog{store: s}
}

func (c *Catalog) Creature(ctx context.Context, id uint32) (Creature, error) {
	var out Creature
	err := get(ctx, c.store, CreatureCollection, strconv.FormatUint(uint64(id), 10), &out)
	return out, err
}

func (c *Catalog) Creatures(ctx context.Context) ([]Creature, error) {
	return list[Creature](ctx, c.store, CreatureCollection)
}

func (c *Catalog) DraftSet(ctx context.Context, id string) (DraftSet, error) {
	var out DraftSet
	err := get(ctx, c.store, DraftSetCollection, id, &out)
	return out, err
}

func (c *Catalog) DraftSets(ctx context.Context) ([]DraftSet, error) {
	return list[DraftSet](ctx, c.store, DraftSetCollection)
}

func (c *Catalog) RuleSet(ctx context.Context, id string) (engine.RuleSet, error) {
	var out engine.RuleSet
	err := get(ctx, c.store, RuleSetCollection, id, &out)
	return out, err
}

func (c *Catalog) RuleSets(ctx context.Context) ([]engine.RuleSet, error) {
	return list[engine.RuleSet](ctx, c.store, RuleSetCollection)
}

// CreateRuleSet validates and stores a new rule set under a fresh id.
func (c *Catalog) CreateRuleSet(ctx context.Context, r engine.RuleSet) (engine.RuleSet, error) {
	return createRuleSet(ctx, c.store, r)
}

func createRuleSet(ctx context.Context, s store.Store, r engine.RuleSet) (engine.RuleSet, error) {
	if r.Name == "" {
		return engine.RuleSet{}, fmt.Errorf("%w: rule set name is required", engine.ErrInvalidArgument)
	}
	if err := r.Validate(); err != nil {
		return engine.RuleSet{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, err := s.Create(ctx, RuleSetCollection, r.ID, r); err != nil {
		return engine.RuleSet{}, fmt.Errorf("create rule set: %w", err)
	}
	return r, nil
}

func get(ctx context.Context, s store.Store, collection, id string, out any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return doc.Decode(out)
}

func list[T any](ctx context.Context, s store.Store, collection string) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
