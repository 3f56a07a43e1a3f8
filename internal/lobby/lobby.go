// Package lobby runs one goroutine per draft session. Every command for a
// session goes through its lobby, so a session only ever has one writer.
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
)

// ErrClosed is returned to callers that reach a lobby after it stopped.
var ErrClosed = errors.New("lobby closed")

// Repository loads a draft and commits the result of one command.
type Repository interface {
	Load(ctx context.Context, sessionID string) (engine.Draft, error)
	SaveJoin(ctx context.Context, d engine.Draft, p engine.Player) error
	SaveReady(ctx context.Context, d engine.Draft, playerID string) error
	SaveStart(ctx context.Context, d engine.Draft) error
	SaveSelection(ctx context.Context, d engine.Draft, playerID string) error
}

type Msg interface{ isLobbyMsg() }

type Join struct {
	Name  string
	Reply chan Result
}

func (Join) isLobbyMsg() {}

type ToggleReady struct {
	PlayerID string
	Reply    chan Result
}

func (ToggleReady) isLobbyMsg() {}

type Start struct {
	Reply chan Result
}

func (Start) isLobbyMsg() {}

type Select struct {
	PlayerID string
	Action   engine.Phase
	ItemID   uint32
	Secret   string
	Reply    chan Result
}

func (Select) isLobbyMsg() {}

// GetState reports what the lobby has handled so far.
type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// Result is the draft after a command. Player and Secret are set by Join,
// Events by Select.
type Result struct {
	Draft  engine.Draft
	Player engine.Player
	Secret string
	Events []engine.Event
	Err    error
}

type View struct {
	SessionID string
	Handled   int
}

type Config struct {
	// IdleTimeout stops a lobby that received nothing for this long. Zero
	// keeps it running until shutdown.
	IdleTimeout time.Duration
	// OpTimeout bounds the storage work of one command.
	OpTimeout time.Duration
}

type Lobby struct {
	sessionID string
	inbox     chan Msg
	repo      Repository
	clock     clockwork.Clock
	log       *zap.Logger
	cfg       Config
	onClose   func(*Lobby)
	handled   int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// newPlayerID is swapped in tests.
var newPlayerID = uuid.NewString

// NewLobby starts the lobby goroutine. onClose, if set, runs once on that
// goroutine after the lobby stops.
func NewLobby(parent context.Context, sessionID string, repo Repository, clock clockwork.Clock, log *zap.Logger, cfg Config, onClose func(*Lobby)) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}

	l := &Lobby{
		sessionID: sessionID,
		inbox:     make(chan Msg, 64),
		repo:      repo,
		clock:     clock,
		log:       log.With(zap.String("session_id", sessionID)),
		cfg:       cfg,
		onClose:   onClose,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) SessionID() string { return l.sessionID }

// Inbox exposes the raw mailbox for tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Close stops the lobby without waiting for queued commands.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) Join(ctx context.Context, name string) (Result, error) {
	return l.request(ctx, func(reply chan Result) Msg { return Join{Name: name, Reply: reply} })
}

func (l *Lobby) ToggleReady(ctx context.Context, playerID string) (Result, error) {
	return l.request(ctx, func(reply chan Result) Msg { return ToggleReady{PlayerID: playerID, Reply: reply} })
}

func (l *Lobby) Start(ctx context.Context) (Result, error) {
	return l.request(ctx, func(reply chan Result) Msg { return Start{Reply: reply} })
}

func (l *Lobby) Select(ctx context.Context, playerID string, action engine.Phase, itemID uint32, secret string) (Result, error) {
	return l.request(ctx, func(reply chan Result) Msg {
		return Select{PlayerID: playerID, Action: action, ItemID: itemID, Secret: secret, Reply: reply}
	})
}

// request hands a command to the loop and waits for its result. A command
// already queued still runs if ctx ends first.
func (l *Lobby) request(ctx context.Context, build func(chan Result) Msg) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case l.inbox <- build(reply):
	case <-l.done:
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-l.done:
		select {
		case res := <-reply:
			return res, res.Err
		default:
			return Result{}, ErrClosed
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (l *Lobby) loop() {
	defer l.finish()

	var idle clockwork.Timer
	var idleC <-chan time.Time
	if l.cfg.IdleTimeout > 0 {
		idle = l.clock.NewTimer(l.cfg.IdleTimeout)
		idleC = idle.Chan()
		defer idle.Stop()
	}

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-idleC:
			l.log.Debug("lobby idle, stopping")
			return

		case m := <-l.inbox:
			ended := false
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.join(msg)

			case ToggleReady:
				msg.Reply <- l.toggleReady(msg)

			case Start:
				msg.Reply <- l.start()

			case Select:
				res := l.selectItem(msg)
				ended = res.Err == nil && res.Draft.Session.State == engine.StateEnded
				msg.Reply <- res

			case GetState:
				msg.Reply <- View{SessionID: l.sessionID, Handled: l.handled}
				continue

			case Shutdown:
				return
			}
			l.handled++

			if ended {
				l.log.Info("draft completed, closing lobby")
				return
			}
			if idle != nil {
				idle.Reset(l.cfg.IdleTimeout)
			}
		}
	}
}

func (l *Lobby) finish() {
	l.cancel()
	close(l.done)
	if l.onClose != nil {
		l.onClose(l)
	}
}

func (l *Lobby) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(l.ctx, l.cfg.OpTimeout)
}

func (l *Lobby) join(msg Join) Result {
	ctx, cancel := l.opContext()
	defer cancel()

	d, err := l.repo.Load(ctx, l.sessionID)
	if err != nil {
		return Result{Err: err}
	}
	next, p, secret, err := engine.Join(d, newPlayerID(), msg.Name, l.clock.Now())
	if err != nil {
		return Result{Draft: d, Err: err}
	}
	if err := l.repo.SaveJoin(ctx, next, p); err != nil {
		l.log.Warn("persist join failed", zap.Error(err))
		return Result{Draft: d, Err: err}
	}

	l.log.Info("player joined", zap.String("player_id", p.ID), zap.Uint32("slot", p.Slot))
	return Result{Draft: next, Player: p, Secret: secret}
}

func (l *Lobby) toggleReady(msg ToggleReady) Result {
	ctx, cancel := l.opContext()
	defer cancel()

	d, err := l.repo.Load(ctx, l.sessionID)
	if err != nil {
		return Result{Err: err}
	}
	next, err := engine.ToggleReady(d, msg.PlayerID)
	if err != nil {
		return Result{Draft: d, Err: err}
	}
	if err := l.repo.SaveReady(ctx, next, msg.PlayerID); err != nil {
		l.log.Warn("persist ready failed", zap.Error(err))
		return Result{Draft: d, Err: err}
	}

	p, _ := next.Player(msg.PlayerID)
	l.log.Debug("ready toggled",
		zap.String("player_id", msg.PlayerID),
		zap.Bool("ready", p.Ready),
		zap.Stringer("state", next.Session.State))
	return Result{Draft: next, Player: p}
}

func (l *Lobby) start() Result {
	ctx, cancel := l.opContext()
	defer cancel()

	d, err := l.repo.Load(ctx, l.sessionID)
	if err != nil {
		return Result{Err: err}
	}
	next, err := engine.Start(d)
	if err != nil {
		return Result{Draft: d, Err: err}
	}
	if err := l.repo.SaveStart(ctx, next); err != nil {
		l.log.Warn("persist start failed", zap.Error(err))
		return Result{Draft: d, Err: err}
	}

	l.log.Info("draft started",
		zap.Int("players", len(next.Players)),
		zap.String("current_player", next.Session.CurrentPlayer))
	return Result{Draft: next}
}

func (l *Lobby) selectItem(msg Select) Result {
	ctx, cancel := l.opContext()
	defer cancel()

	d, err := l.repo.Load(ctx, l.sessionID)
	if err != nil {
		return Result{Err: err}
	}
	next, events, err := engine.ApplySelection(d, msg.PlayerID, msg.Action, msg.ItemID, msg.Secret)
	if err != nil {
		l.log.Debug("selection rejected",
			zap.String("player_id", msg.PlayerID),
			zap.Stringer("action", msg.Action),
			zap.Uint32("item_id", msg.ItemID),
			zap.Error(err))
		return Result{Draft: d, Err: err}
	}
	if err := l.repo.SaveSelection(ctx, next, msg.PlayerID); err != nil {
		l.log.Warn("persist selection failed", zap.Error(err))
		return Result{Draft: d, Err: err}
	}

	for _, ev := range events {
		l.log.Info("draft event",
			zap.String("type", string(ev.Type)),
			zap.String("player_id", ev.PlayerID),
			zap.Uint32("item_id", ev.ItemID),
			zap.Uint32("ticker", ev.Ticker))
	}
	p, _ := next.Player(msg.PlayerID)
	return Result{Draft: next, Player: p, Events: events}
}
