package engine

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Join adds a player to an Open or Ready session. The returned secret is the
// only copy of the plaintext; the player keeps just its hash.
func Join(d Draft, playerID, name string, now time.Time) (Draft, Player, string, error) {
	name = norm.NFC.String(name)
	if name == "" {
		return d, Player{}, "", fmt.Errorf("%w: player name is required", ErrInvalidArgument)
	}

	s := d.Session
	if s.State != StateOpen && s.State != StateReady {
		return d, Player{}, "", fmt.Errorf("%w: session is %s and no longer accepts players", ErrWrongState, s.State)
	}
	if len(d.Players) >= int(s.MaxPlayers) || !s.AcceptingNewPlayers {
		return d, Player{}, "", fmt.Errorf("%w: no slots available to join", ErrSessionFull)
	}
	if d.nameTaken(name) {
		return d, Player{}, "", fmt.Errorf("%w: %q is already in use", ErrNameTaken, name)
	}

	secret, err := newSecret()
	if err != nil {
		return d, Player{}, "", fmt.Errorf("generate secret: %w", err)
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return d, Player{}, "", fmt.Errorf("hash secret: %w", err)
	}

	p := Player{
		ID:         playerID,
		SessionID:  s.ID,
		Name:       name,
		Slot:       uint32(len(d.Players)),
		Picked:     []uint32{},
		SecretHash: hash,
		JoinedAt:   now,
	}

	next := d.clone()
	next.Players = append(next.Players, p)
	if len(next.Players) >= int(s.MaxPlayers) {
		next.Session.AcceptingNewPlayers = false
	}
	if len(d.Players) == 0 {
		next.Session.CurrentPlayer = p.ID
	}
	// A newcomer is never ready, so a Ready session drops back to Open.
	next.Session.State = StateOpen

	return next, p, secret, nil
}

// ToggleReady flips the player's ready flag and recomputes Open/Ready.
func ToggleReady(d Draft, playerID string) (Draft, error) {
	if d.Session.State == StateInProgress || d.Session.State == StateEnded {
		return d, fmt.Errorf("%w: can't ready when the draft is %s", ErrWrongState, d.Session.State)
	}
	i := d.indexOf(playerID)
	if i < 0 {
		return d, fmt.Errorf("%w: player %s is not in session %s", ErrNotFound, playerID, d.Session.ID)
	}

	next := d.clone()
	next.Players[i].Ready = !next.Players[i].Ready
	if next.allReady() {
		next.Session.State = StateReady
	} else {
		next.Session.State = StateOpen
	}
	return next, nil
}

// Start moves a Ready session with enough players into InProgress and primes
// the first turn.
func Start(d Draft) (Draft, error) {
	s := d.Session
	if s.State != StateReady {
		return d, fmt.Errorf("%w: only a ready session can start, session is %s", ErrWrongState, s.State)
	}
	minPlayers := max(int(s.MinPlayers), 1)
	if len(d.Players) < minPlayers {
		return d, fmt.Errorf("%w: need at least %d players, have %d", ErrWrongState, minPlayers, len(d.Players))
	}
	first, ok := d.PlayerBySlot(0)
	if !ok {
		return d, fmt.Errorf("%w: no player in the first slot", ErrWrongState)
	}

	next := d.clone()
	next.Session.State = StateInProgress
	next.Session.AcceptingNewPlayers = false
	next.Session.TurnTicker = 0
	next.Session.CurrentPhase = s.Rules.StartingPhase
	next.Session.CurrentPlayer = first.ID
	return next, nil
}

// ApplySelection validates one pick or ban against the pre-turn state and
// returns the draft with the turn taken. On error the input draft is
// returned untouched.
func ApplySelection(d Draft, playerID string, action Phase, itemID uint32, secret string) (Draft, []Event, error) {
	s := d.Session

	if s.State != StateInProgress {
		return d, nil, fmt.Errorf("%w: draft is %s", ErrWrongState, s.State)
	}
	if slices.Contains(s.SelectedOrBanned, itemID) {
		return d, nil, fmt.Errorf("%w: item %d is either banned or has already been selected", ErrItemUnavailable, itemID)
	}
	if action != s.CurrentPhase {
		return d, nil, fmt.Errorf("%w: current action is %s, got %s", ErrWrongPhase, s.CurrentPhase, action)
	}
	if playerID != s.CurrentPlayer {
		return d, nil, fmt.Errorf("%w: player %s", ErrNotYourTurn, playerID)
	}
	i := d.indexOf(playerID)
	if i < 0 {
		return d, nil, fmt.Errorf("%w: player %s is not in session %s", ErrNotFound, playerID, s.ID)
	}
	if !VerifySecret(secret, d.Players[i].SecretHash) {
		return d, nil, ErrAccessDenied
	}

	next := d.clone()
	events := make([]Event, 0, 3)

	if action == PhasePick {
		next.Players[i].Picked = append(next.Players[i].Picked, itemID)
		events = append(events, Event{Type: EvtItemPicked, PlayerID: playerID, ItemID: itemID, Ticker: s.TurnTicker})
	} else {
		events = append(events, Event{Type: EvtItemBanned, PlayerID: playerID, ItemID: itemID, Ticker: s.TurnTicker})
	}
	next.Session.SelectedOrBanned = append(next.Session.SelectedOrBanned, itemID)

	n := d.NumPlayers()
	newTicker, slot := NextTurn(s.TurnTicker, n, s.Rules)
	nextPlayer, ok := d.PlayerBySlot(slot)
	if !ok {
		panic(fmt.Sprintf("engine: session %s has no player in slot %d", s.ID, slot))
	}
	nextPhase := NextPhase(s.TurnTicker, s.Rules, n)

	if SessionComplete(s, n) {
		next.Session.State = StateEnded
	}

	next.Session.TurnTicker = newTicker
	next.Session.CurrentPlayer = nextPlayer.ID
	next.Session.CurrentPhase = nextPhase

	events = append(events, Event{Type: EvtTurnAdvanced, PlayerID: nextPlayer.ID, Ticker: newTicker})
	if next.Session.State == StateEnded {
		events = append(events, Event{Type: EvtDraftCompleted, Ticker: newTicker})
	}

	return next, events, nil
}
