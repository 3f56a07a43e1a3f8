package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")
var ErrWrongState = errors.New("wrong state")
var ErrWrongPhase = errors.New("wrong phase")
var ErrNotYourTurn = errors.New("not your turn")
var ErrItemUnavailable = errors.New("item unavailable")
var ErrNameTaken = errors.New("name taken")
var ErrSessionFull = errors.New("session full")
var ErrAccessDenied = errors.New("access denied")
var ErrInvalidArgument = errors.New("invalid argument")

// Phase is the kind of action a turn performs.
type Phase uint8

const (
	PhasePick Phase = iota + 1
	PhaseBan
)

func (p Phase) Valid() bool { return p == PhasePick || p == PhaseBan }

func (p Phase) String() string {
	switch p {
	case PhasePick:
		return "pick"
	case PhaseBan:
		return "ban"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: phase %d", ErrInvalidArgument, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "pick":
		*p = PhasePick
	case "ban":
		*p = PhaseBan
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidArgument, b)
	}
	return nil
}

// TurnOrder decides how player slots are traversed from one round to the next.
type TurnOrder uint8

const (
	TurnOrderRoundRobin TurnOrder = iota + 1
	TurnOrderSnake
)

func (o TurnOrder) Valid() bool { return o == TurnOrderRoundRobin || o == TurnOrderSnake }

func (o TurnOrder) String() string {
	switch o {
	case TurnOrderRoundRobin:
		return "round_robin"
	case TurnOrderSnake:
		return "snake"
	}
	return fmt.Sprintf("TurnOrder(%d)", uint8(o))
}

func (o TurnOrder) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: turn order %d", ErrInvalidArgument, uint8(o))
	}
	return []byte(o.String()), nil
}

func (o *TurnOrder) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "round_robin", "roundrobin":
		*o = TurnOrderRoundRobin
	case "snake":
		*o = TurnOrderSnake
	default:
		return fmt.Errorf("%w: unknown turn order %q", ErrInvalidArgument, b)
	}
	return nil
}

// State is the lifecycle position of a draft session.
type State uint8

const (
	StateOpen State = iota + 1
	StateReady
	StateInProgress
	StateEnded
)

func (s State) Valid() bool { return s >= StateOpen && s <= StateEnded }

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReady:
		return "ready"
	case StateInProgress:
		return "in_progress"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: state %d", ErrInvalidArgument, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "open":
		*s = StateOpen
	case "ready":
		*s = StateReady
	case "in_progress", "inprogress":
		*s = StateInProgress
	case "ended":
		*s = StateEnded
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, b)
	}
	return nil
}

type Session struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	MinPlayers          uint16    `json:"min_players"`
	MaxPlayers          uint16    `json:"max_players"`
	RuleSetID           string    `json:"rule_set_id"`
	DraftSetID          string    `json:"draft_set_id,omitempty"`
	Rules               RuleSet   `json:"rules"`
	SelectedOrBanned    []uint32  `json:"selected_or_banned"`
	TurnTicker          uint32    `json:"turn_ticker"`
	CurrentPlayer       string    `json:"current_player"`
	CurrentPhase        Phase     `json:"current_phase"`
	AcceptingNewPlayers bool      `json:"accepting_new_players"`
	State               State     `json:"state"`
	CreatedAt           time.Time `json:"created_at"`

	// Version is owned by the store and used for compare-and-merge writes.
	Version int64 `json:"-"`
}

type Player struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Name       string    `json:"name"`
	Slot       uint32    `json:"slot"`
	Picked     []uint32  `json:"picked"`
	SecretHash int64     `json:"secret_hash"`
	Ready      bool      `json:"ready"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Draft is a session together with its players ordered by slot.
type Draft struct {
	Session Session
	Players []Player
}

type EventType string

const (
	EvtItemPicked     EventType = "ItemPicked"
	EvtItemBanned     EventType = "ItemBanned"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtDraftCompleted EventType = "DraftCompleted"
)

type Event struct {
	Type     EventType
	PlayerID string
	ItemID   uint32
	Ticker   uint32
}

// NewSession builds a session in the Open state. The rules are copied and
// never change afterwards.
func NewSession(id, name string, minPlayers, maxPlayers uint16, rules RuleSet, draftSetID string, now time.Time) (Session, error) {
	if name == "" {
		return Session{}, fmt.Errorf("%w: session name is required", ErrInvalidArgument)
	}
	if maxPlayers == 0 {
		return Session{}, fmt.Errorf("%w: max_players must be at least 1", ErrInvalidArgument)
	}
	if minPlayers > maxPlayers {
		return Session{}, fmt.Errorf("%w: min_players %d exceeds max_players %d", ErrInvalidArgument, minPlayers, maxPlayers)
	}
	if err := rules.Validate(); err != nil {
		return Session{}, err
	}

	return Session{
		ID:                  id,
		Name:                name,
		MinPlayers:          minPlayers,
		MaxPlayers:          maxPlayers,
		RuleSetID:           rules.ID,
		DraftSetID:          draftSetID,
		Rules:               rules,
		SelectedOrBanned:    []uint32{},
		CurrentPhase:        rules.StartingPhase,
		AcceptingNewPlayers: true,
		State:               StateOpen,
		CreatedAt:           now,
	}, nil
}
