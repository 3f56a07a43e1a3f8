package engine

import "fmt"

// RuleSet describes how many picks and bans make up one cycle, how many picks
// each player needs, and how slots are traversed.
type RuleSet struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	PicksPerRound    uint16    `json:"picks_per_round"`
	BansPerRound     uint16    `json:"bans_per_round"`
	TargetRosterSize uint16    `json:"target_roster_size"`
	StartingPhase    Phase     `json:"starting_phase"`
	TurnOrder        TurnOrder `json:"turn_order"`
}

// Validate rejects rule sets the scheduler and termination detector cannot
// run. A cycle must contain at least one pick, otherwise no roster ever
// reaches its target.
func (r RuleSet) Validate() error {
	if uint32(r.PicksPerRound)+uint32(r.BansPerRound) < 1 {
		return fmt.Errorf("%w: a round needs at least one pick or ban", ErrInvalidArgument)
	}
	if r.PicksPerRound < 1 {
		return fmt.Errorf("%w: picks_per_round must be at least 1", ErrInvalidArgument)
	}
	if r.TargetRosterSize < 1 {
		return fmt.Errorf("%w: target_roster_size must be at least 1", ErrInvalidArgument)
	}
	if !r.StartingPhase.Valid() {
		return fmt.Errorf("%w: starting_phase is required", ErrInvalidArgument)
	}
	if r.StartingPhase == PhaseBan && r.BansPerRound < 1 {
		return fmt.Errorf("%w: a ban start needs bans_per_round of at least 1", ErrInvalidArgument)
	}
	if !r.TurnOrder.Valid() {
		return fmt.Errorf("%w: turn_order is required", ErrInvalidArgument)
	}
	return nil
}

func (r RuleSet) fullCycle() uint32 {
	return uint32(r.PicksPerRound) + uint32(r.BansPerRound)
}
