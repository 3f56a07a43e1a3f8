package engine

import (
	"slices"
	"sort"
)

// NewDraft pairs a session with its players, sorting them by slot.
func NewDraft(s Session, players []Player) Draft {
	ps := slices.Clone(players)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Slot < ps[j].Slot })
	return Draft{Session: s, Players: ps}
}

func (d Draft) NumPlayers() uint32 { return uint32(len(d.Players)) }

func (d Draft) Player(id string) (Player, bool) {
	for _, p := range d.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (d Draft) PlayerBySlot(slot uint32) (Player, bool) {
	for _, p := range d.Players {
		if p.Slot == slot {
			return p, true
		}
	}
	return Player{}, false
}

func (d Draft) indexOf(id string) int {
	return slices.IndexFunc(d.Players, func(p Player) bool { return p.ID == id })
}

func (d Draft) nameTaken(name string) bool {
	return slices.ContainsFunc(d.Players, func(p Player) bool { return p.Name == name })
}

func (d Draft) allReady() bool {
	for _, p := range d.Players {
		if !p.Ready {
			return false
		}
	}
	return len(d.Players) > 0
}

// clone deep-copies the slices so operations never write through to the
// caller's draft.
func (d Draft) clone() Draft {
	next := Draft{Session: d.Session, Players: make([]Player, len(d.Players))}
	next.Session.SelectedOrBanned = slices.Clone(d.Session.SelectedOrBanned)
	for i, p := range d.Players {
		p.Picked = slices.Clone(p.Picked)
		next.Players[i] = p
	}
	return next
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
