package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

const (
	seedMarkerCollection = "seed_markers"
	seedMarkerID         = "catalog"
)

type Seed struct {
	Creatures []Creature    `yaml:"creatures"`
	DraftSets []DraftSet    `yaml:"draft_sets"`
	RuleSets  []RuleSetSeed `yaml:"rule_sets"`
}

type RuleSetSeed struct {
	ID               string           `yaml:"id"`
	Name             string           `yaml:"name"`
	PicksPerRound    uint16           `yaml:"picks_per_round"`
	BansPerRound     uint16           `yaml:"bans_per_round"`
	TargetRosterSize uint16           `yaml:"target_roster_size"`
	StartingPhase    engine.Phase     `yaml:"starting_phase"`
	TurnOrder        engine.TurnOrder `yaml:"turn_order"`
}

func (r RuleSetSeed) RuleSet() engine.RuleSet {
	return engine.RuleSet{
		ID:               r.ID,
		Name:             r.Name,
		PicksPerRound:    r.PicksPerRound,
		BansPerRound:     r.BansPerRound,
		TargetRosterSize: r.TargetRosterSize,
		StartingPhase:    r.StartingPhase,
		TurnOrder:        r.TurnOrder,
	}
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return seed, nil
}

// Apply writes the seed once. It returns false without writing anything when
// an earlier run already left its marker.
func Apply(ctx context.Context, s store.Store, seed Seed) (bool, error) {
	applied := false
	err := s.InTx(ctx, func(tx store.Store) error {
		_, err := tx.Get(ctx, seedMarkerCollection, seedMarkerID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		known := make(map[uint32]bool, len(seed.Creatures))
		for _, c := range seed.Creatures {
			if err := c.Validate(); err != nil {
				return err
			}
			if _, err := tx.Create(ctx, CreatureCollection, strconv.FormatUint(uint64(c.ID), 10), c); err != nil {
				return fmt.Errorf("seed creature %d: %w", c.ID, err)
			}
			known[c.ID] = true
		}

		for _, ds := range seed.DraftSets {
			if ds.Name == "" {
				return fmt.Errorf("%w: draft set needs a name", engine.ErrInvalidArgument)
			}
			for _, id := range ds.CreatureIDs {
				if !known[id] {
					return fmt.Errorf("%w: draft set %q lists unknown creature %d", engine.ErrInvalidArgument, ds.Name, id)
				}
			}
			if ds.ID == "" {
				ds.ID = uuid.NewString()
			}
			if _, err := tx.Create(ctx, DraftSetCollection, ds.ID, ds); err != nil {
				return fmt.Errorf("seed draft set %q: %w", ds.Name, err)
			}
		}

		for _, rs := range seed.RuleSets {
			if _, err := createRuleSet(ctx, tx, rs.RuleSet()); err != nil {
				return fmt.Errorf("seed rule set %q: %w", rs.Name, err)
			}
		}

		if _, err := tx.Create(ctx, seedMarkerCollection, seedMarkerID, map[string]int{
			"creatures":  len(seed.Creatures),
			"draft_sets": len(seed.DraftSets),
			"rule_sets":  len(seed.RuleSets),
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
