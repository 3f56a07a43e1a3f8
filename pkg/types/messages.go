// Package types holds the JSON bodies of the HTTP API.
package types

// Client -> Server

// CreateRuleSetRequest:
//
//	starting_phase: "pick" | "ban"
//	turn_order: "round_robin" | "snake"
type CreateRuleSetRequest struct {
	Name             string `json:"name"`
	PicksPerRound    uint16 `json:"picks_per_round"`
	BansPerRound     uint16 `json:"bans_per_round"`
	TargetRosterSize uint16 `json:"target_roster_size"`
	StartingPhase    string `json:"starting_phase"`
	TurnOrder        string `json:"turn_order"`
}

type CreateSessionRequest struct {
	Name       string `json:"name"`
	MinPlayers uint16 `json:"min_players"`
	MaxPlayers uint16 `json:"max_players"`
	RuleSetID  string `json:"rule_set_id"`
	DraftSetID string `json:"draft_set_id,omitempty"`
}

type JoinRequest struct {
	Name string `json:"name"`
}

type ReadyRequest struct {
	PlayerID string `json:"player_id"`
}

// SelectRequest:
//
//	action: "pick" | "ban"
type SelectRequest struct {
	PlayerID string `json:"player_id"`
	Action   string `json:"action"`
	ItemID   uint32 `json:"item_id"`
	Secret   string `json:"secret"`
}

// Server -> Client

// JoinResponse carries the player's secret. It is never shown again.
type JoinResponse struct {
	PlayerID  string `json:"player_id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Slot      uint32 `json:"slot"`
	Secret    string `json:"secret"`
}

type ReadyResponse struct {
	State string `json:"state"`
}

type SelectResponse struct {
	Picked           []uint32 `json:"picked"`
	SelectedOrBanned []uint32 `json:"selected_or_banned"`
	NextPhase        string   `json:"next_phase"`
	NextPlayer       string   `json:"next_player"`
	State            string   `json:"state"`
	TurnTicker       uint32   `json:"turn_ticker"`
	Events           []Event  `json:"events"`
}

type Event struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	ItemID   uint32 `json:"item_id,omitempty"`
	Ticker   uint32 `json:"ticker"`
}

// ErrorResponse:
//
//	code: "not_found" | "wrong_state" | "wrong_phase" | "not_your_turn" |
//	      "item_unavailable" | "name_taken" | "session_full" |
//	      "access_denied" | "invalid_argument" | "storage_unavailable" |
//	      "internal"
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
