package engine

// NextTurn advances the ticker and returns the slot that acts on the new
// ticker value. Snake order walks odd rounds back to front.
func NextTurn(ticker uint32, numPlayers uint32, rules RuleSet) (uint32, uint32) {
	if numPlayers == 0 {
		panic("engine: NextTurn called with zero players")
	}

	newTicker := ticker + 1
	x := newTicker % numPlayers
	round := newTicker / numPlayers

	if rules.TurnOrder == TurnOrderRoundRobin || round%2 == 0 {
		return newTicker, x
	}
	return newTicker, numPlayers - (x + 1)
}

// NextPhase returns the action type of the turn after ticker. A cycle is
// BansPerRound ban rounds followed by PicksPerRound pick rounds, or the
// reverse when the draft starts with picks. Every player in a round performs
// the same action.
func NextPhase(ticker uint32, rules RuleSet, numPlayers uint32) Phase {
	if numPlayers == 0 {
		panic("engine: NextPhase called with zero players")
	}

	round := (ticker + 1) / numPlayers
	fullCycle := rules.fullCycle()
	normalizedRound := round % fullCycle

	if rules.StartingPhase == PhaseBan {
		if normalizedRound+uint32(rules.PicksPerRound) < fullCycle {
			return PhaseBan
		}
		return PhasePick
	}

	if normalizedRound+uint32(rules.BansPerRound) < fullCycle {
		return PhasePick
	}
	return PhaseBan
}
