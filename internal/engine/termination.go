package engine

// GuaranteedMinimumPicks is a lower bound on the picks every player has made
// once the turn at ticker has been taken. It never decreases as ticker grows.
func GuaranteedMinimumPicks(ticker uint32, rules RuleSet, numPlayers uint32) uint32 {
	if numPlayers == 0 {
		panic("engine: GuaranteedMinimumPicks called with zero players")
	}

	picks := uint32(rules.PicksPerRound)
	bans := uint32(rules.BansPerRound)
	turnsPerRound := numPlayers * (picks + bans)

	completedRounds := (ticker + 1) / turnsPerRound
	remainder := (ticker + 1) % turnsPerRound

	var partial uint32
	switch rules.StartingPhase {
	case PhaseBan:
		if remainder > bans*numPlayers {
			partial = (remainder - bans*numPlayers) / (picks * numPlayers)
		}
	default:
		if remainder > picks*numPlayers {
			partial = picks
		} else {
			partial = remainder / (picks * numPlayers)
		}
	}

	return partial + completedRounds*picks
}

// SessionComplete reports whether the turn at the session's current ticker
// finishes the draft.
func SessionComplete(s Session, numPlayers uint32) bool {
	return GuaranteedMinimumPicks(s.TurnTicker, s.Rules, numPlayers) >= uint32(s.Rules.TargetRosterSize)
}
