// Package repository maps draft sessions and their players onto the
// document store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

const (
	SessionCollection = "draft_sessions"
	PlayerCollection  = "draft_players"
	PlayersRelation   = "players"
)

type Drafts struct {
	store store.Store
}

func NewDrafts(s store.Store) *Drafts {
	return &Drafts{store: s}
}

func (r *Drafts) CreateSession(ctx context.Context, s engine.Session) (engine.Session, error) {
	doc, err := r.store.Create(ctx, SessionCollection, s.ID, s)
	if err != nil {
		return engine.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.Version = doc.Version
	return s, nil
}

func (r *Drafts) Session(ctx context.Context, id string) (engine.Session, error) {
	return loadSession(ctx, r.store, id)
}

// Load reads a session and every player linked to it.
func (r *Drafts) Load(ctx context.Context, id string) (engine.Draft, error) {
	s, err := loadSession(ctx, r.store, id)
	if err != nil {
		return engine.Draft{}, err
	}

	ids, err := r.store.Related(ctx, PlayersRelation, id)
	if err != nil {
		return engine.Draft{}, fmt.Errorf("load players of %s: %w", id, err)
	}
	players := make([]engine.Player, 0, len(ids))
	for _, pid := range ids {
		doc, err := r.store.Get(ctx, PlayerCollection, pid)
		if err != nil {
			return engine.Draft{}, fmt.Errorf("load player %s of %s: %w", pid, id, err)
		}
		var p engine.Player
		if err := doc.Decode(&p); err != nil {
			return engine.Draft{}, err
		}
		players = append(players, p)
	}
	return engine.NewDraft(s, players), nil
}

type joinPatch struct {
	AcceptingNewPlayers bool         `json:"accepting_new_players"`
	CurrentPlayer       string       `json:"current_player"`
	State               engine.State `json:"state"`
}

// SaveJoin stores the new player, links it to the session and records the
// session fields Join changes.
func (r *Drafts) SaveJoin(ctx context.Context, d engine.Draft, p engine.Player) error {
	s := d.Session
	return r.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Create(ctx, PlayerCollection, p.ID, p); err != nil {
			return fmt.Errorf("create player: %w", err)
		}
		if err := tx.Relate(ctx, PlayersRelation, s.ID, p.ID); err != nil {
			return err
		}
		_, err := tx.CompareAndMerge(ctx, SessionCollection, s.ID, s.Version, joinPatch{
			AcceptingNewPlayers: s.AcceptingNewPlayers,
			CurrentPlayer:       s.CurrentPlayer,
			State:               s.State,
		})
		return err
	})
}

type readyPatch struct {
	Ready bool `json:"ready"`
}

type statePatch struct {
	State engine.State `json:"state"`
}

func (r *Drafts) SaveReady(ctx context.Context, d engine.Draft, playerID string) error {
	p, ok := d.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: player %s", engine.ErrNotFound, playerID)
	}
	return r.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.CompareAndMerge(ctx, SessionCollection, d.Session.ID, d.Session.Version, statePatch{State: d.Session.State}); err != nil {
			return err
		}
		_, err := tx.Merge(ctx, PlayerCollection, p.ID, readyPatch{Ready: p.Ready})
		return err
	})
}

type turnPatch struct {
	SelectedOrBanned    []uint32     `json:"selected_or_banned"`
	TurnTicker          uint32       `json:"turn_ticker"`
	CurrentPlayer       string       `json:"current_player"`
	CurrentPhase        engine.Phase `json:"current_phase"`
	AcceptingNewPlayers bool         `json:"accepting_new_players"`
	State               engine.State `json:"state"`
}

func newTurnPatch(s engine.Session) turnPatch {
	return turnPatch{
		SelectedOrBanned:    s.SelectedOrBanned,
		TurnTicker:          s.TurnTicker,
		CurrentPlayer:       s.CurrentPlayer,
		CurrentPhase:        s.CurrentPhase,
		AcceptingNewPlayers: s.AcceptingNewPlayers,
		State:               s.State,
	}
}

func (r *Drafts) SaveStart(ctx context.Context, d engine.Draft) error {
	_, err := r.store.CompareAndMerge(ctx, SessionCollection, d.Session.ID, d.Session.Version, newTurnPatch(d.Session))
	return err
}

type pickedPatch struct {
	Picked []uint32 `json:"picked"`
}

// SaveSelection commits one accepted turn: the session's turn fields and the
// acting player's roster.
func (r *Drafts) SaveSelection(ctx context.Context, d engine.Draft, playerID string) error {
	p, ok := d.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: player %s", engine.ErrNotFound, playerID)
	}
	return r.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.CompareAndMerge(ctx, SessionCollection, d.Session.ID, d.Session.Version, newTurnPatch(d.Session)); err != nil {
			return err
		}
		_, err := tx.Merge(ctx, PlayerCollection, p.ID, pickedPatch{Picked: p.Picked})
		return err
	})
}

func loadSession(ctx context.Context, st store.Store, id string) (engine.Session, error) {
	doc, err := st.Get(ctx, SessionCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return engine.Session{}, fmt.Errorf("%w: session %s", engine.ErrNotFound, id)
	}
	if err != nil {
		return engine.Session{}, err
	}

	var s engine.Session
	if err := doc.Decode(&s); err != nil {
		return engine.Session{}, err
	}
	s.Version = doc.Version
	return s, nil
}
