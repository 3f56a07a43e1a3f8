// Package draft is the application layer: it checks references against the
// catalog, creates sessions, and hands every session command to that
// session's lobby.
package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/creature-draft-backend/internal/catalog"
	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/internal/hub"
	"github.com/DoyleJ11/creature-draft-backend/internal/lobby"
	"github.com/DoyleJ11/creature-draft-backend/internal/repository"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
)

type Service struct {
	catalog *catalog.Catalog
	drafts  *repository.Drafts
	hub     *hub.Hub
	clock   clockwork.Clock
	log     *zap.Logger
}

func NewService(cat *catalog.Catalog, drafts *repository.Drafts, h *hub.Hub, clock clockwork.Clock, log *zap.Logger) *Service {
	return &Service{catalog: cat, drafts: drafts, hub: h, clock: clock, log: log}
}

// NewHub builds a hub whose lobbies persist through drafts.
func NewHub(ctx context.Context, drafts *repository.Drafts, clock clockwork.Clock, log *zap.Logger, cfg lobby.Config) *hub.Hub {
	return hub.NewHub(ctx, func(ctx context.Context, sessionID string, onClose func(*lobby.Lobby)) *lobby.Lobby {
		return lobby.NewLobby(ctx, sessionID, drafts, clock, log, cfg, onClose)
	})
}

type CreateSessionParams struct {
	Name       string
	MinPlayers uint16
	MaxPlayers uint16
	RuleSetID  string
	DraftSetID string
}

type SelectParams struct {
	PlayerID string
	Action   engine.Phase
	ItemID   uint32
	Secret   string
}

func (s *Service) Creature(ctx context.Context, id uint32) (catalog.Creature, error) {
	c, err := s.catalog.Creature(ctx, id)
	return c, notFound(err, "creature %d", id)
}

func (s *Service) Creatures(ctx context.Context) ([]catalog.Creature, error) {
	return s.catalog.Creatures(ctx)
}

func (s *Service) DraftSet(ctx context.Context, id string) (catalog.DraftSet, error) {
	ds, err := s.catalog.DraftSet(ctx, id)
	return ds, notFound(err, "draft set %s", id)
}

func (s *Service) DraftSets(ctx context.Context) ([]catalog.DraftSet, error) {
	return s.catalog.DraftSets(ctx)
}

func (s *Service) RuleSet(ctx context.Context, id string) (engine.RuleSet, error) {
	r, err := s.catalog.RuleSet(ctx, id)
	return r, notFound(err, "rule set %s", id)
}

func (s *Service) RuleSets(ctx context.Context) ([]engine.RuleSet, error) {
	return s.catalog.RuleSets(ctx)
}

func (s *Service) CreateRuleSet(ctx context.Context, r engine.RuleSet) (engine.RuleSet, error) {
	r.ID = ""
	created, err := s.catalog.CreateRuleSet(ctx, r)
	if err != nil {
		return engine.RuleSet{}, err
	}
	s.log.Info("rule set created", zap.String("rule_set_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// CreateSession copies the referenced rule set into a new Open session.
func (s *Service) CreateSession(ctx context.Context, p CreateSessionParams) (engine.Session, error) {
	if p.RuleSetID == "" {
		return engine.Session{}, fmt.Errorf("%w: rule_set_id is required", engine.ErrInvalidArgument)
	}
	rules, err := s.RuleSet(ctx, p.RuleSetID)
	if err != nil {
		return engine.Session{}, err
	}
	if p.DraftSetID != "" {
		if _, err := s.DraftSet(ctx, p.DraftSetID); err != nil {
			return engine.Session{}, err
		}
	}

	sess, err := engine.NewSession(uuid.NewString(), p.Name, p.MinPlayers, p.MaxPlayers, rules, p.DraftSetID, s.clock.Now())
	if err != nil {
		return engine.Session{}, err
	}
	created, err := s.drafts.CreateSession(ctx, sess)
	if err != nil {
		return engine.Session{}, err
	}

	s.log.Info("session created",
		zap.String("session_id", created.ID),
		zap.String("rule_set_id", rules.ID),
		zap.Uint16("max_players", created.MaxPlayers))
	return created, nil
}

func (s *Service) Session(ctx context.Context, id string) (engine.Session, error) {
	return s.drafts.Session(ctx, id)
}

// View reads the session with its players ordered by slot.
func (s *Service) View(ctx context.Context, id string) (engine.Draft, error) {
	return s.drafts.Load(ctx, id)
}

func (s *Service) Join(ctx context.Context, sessionID, name string) (engine.Player, string, error) {
	res, err := s.withLobby(ctx, sessionID, func(lb *lobby.Lobby) (lobby.Result, error) {
		return lb.Join(ctx, name)
	})
	if err != nil {
		return engine.Player{}, "", err
	}
	return res.Player, res.Secret, nil
}

func (s *Service) ToggleReady(ctx context.Context, sessionID, playerID string) (engine.State, error) {
	res, err := s.withLobby(ctx, sessionID, func(lb *lobby.Lobby) (lobby.Result, error) {
		return lb.ToggleReady(ctx, playerID)
	})
	if err != nil {
		return 0, err
	}
	return res.Draft.Session.State, nil
}

func (s *Service) Start(ctx context.Context, sessionID string) (engine.Session, error) {
	res, err := s.withLobby(ctx, sessionID, func(lb *lobby.Lobby) (lobby.Result, error) {
		return lb.Start(ctx)
	})
	if err != nil {
		return engine.Session{}, err
	}
	return res.Draft.Session, nil
}

type Selection struct {
	Draft  engine.Draft
	Player engine.Player
	Events []engine.Event
}

func (s *Service) Select(ctx context.Context, sessionID string, p SelectParams) (Selection, error) {
	res, err := s.withLobby(ctx, sessionID, func(lb *lobby.Lobby) (lobby.Result, error) {
		return lb.Select(ctx, p.PlayerID, p.Action, p.ItemID, p.Secret)
	})
	if err != nil {
		return Selection{}, err
	}
	return Selection{Draft: res.Draft, Player: res.Player, Events: res.Events}, nil
}

// withLobby runs fn against the session's lobby. A lobby that stopped between
// lookup and send is replaced once.
func (s *Service) withLobby(ctx context.Context, sessionID string, fn func(*lobby.Lobby) (lobby.Result, error)) (lobby.Result, error) {
	if _, err := s.drafts.Session(ctx, sessionID); err != nil {
		return lobby.Result{}, err
	}

	var res lobby.Result
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var lb *lobby.Lobby
		lb, err = s.hub.Ensure(ctx, sessionID)
		if err != nil {
			return lobby.Result{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		res, err = fn(lb)
		if !errors.Is(err, lobby.ErrClosed) {
			return res, err
		}
		s.log.Debug("lobby closed under request, retrying", zap.String("session_id", sessionID))
	}
	return res, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: "+format, append([]any{engine.ErrNotFound}, args...)...)
	}
	return err
}
