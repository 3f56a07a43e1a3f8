package types

import "time"

// SessionView is what a client polls to render a draft. Secret hashes never
// leave the server.
type SessionView struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	State               string       `json:"state"`
	RuleSetID           string       `json:"rule_set_id"`
	DraftSetID          string       `json:"draft_set_id,omitempty"`
	MinPlayers          uint16       `json:"min_players"`
	MaxPlayers          uint16       `json:"max_players"`
	AcceptingNewPlayers bool         `json:"accepting_new_players"`
	CurrentPhase        string       `json:"current_phase"`
	CurrentPlayerID     string       `json:"current_player_id,omitempty"`
	CurrentPlayerName   string       `json:"current_player_name,omitempty"`
	TurnTicker          uint32       `json:"turn_ticker"`
	SelectedOrBanned    []uint32     `json:"selected_or_banned"`
	Players             []PlayerView `json:"players"`
	CreatedAt           time.Time    `json:"created_at"`
}

type PlayerView struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Slot   uint32   `json:"slot"`
	Picked []uint32 `json:"picked"`
	Ready  bool     `json:"ready"`
}
