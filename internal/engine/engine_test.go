package engine

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRules(picks, bans, target uint16, start Phase, order TurnOrder) RuleSet {
	return RuleSet{
		ID:               "rules-1",
		Name:             "test",
		PicksPerRound:    picks,
		BansPerRound:     bans,
		TargetRosterSize: target,
		StartingPhase:    start,
		TurnOrder:        order,
	}
}

// startedDraft joins n players, readies them all and starts the draft.
func startedDraft(t *testing.T, rules RuleSet, n int) (Draft, map[string]string) {
	t.Helper()
	s, err := NewSession("session-1", "test draft", 1, uint16(n), rules, "", testNow)
	require.NoError(t, err)

	d := NewDraft(s, nil)
	secrets := map[string]string{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("player-%d", i)
		var secret string
		d, _, secret, err = Join(d, id, fmt.Sprintf("Player %d", i), testNow)
		require.NoError(t, err)
		secrets[id] = secret
	}
	for _, p := range d.Players {
		d, err = ToggleReady(d, p.ID)
		require.NoError(t, err)
	}
	require.Equal(t, StateReady, d.Session.State)

	d, err = Start(d)
	require.NoError(t, err)
	return d, secrets
}

func TestNextTurn_SlotSequence(t *testing.T) {
	cases := []struct {
		name  string
		order TurnOrder
		n     uint32
		want  []uint32
	}{
		{
			name:  "round robin",
			order: TurnOrderRoundRobin,
			n:     3,
			want:  []uint32{1, 2, 0, 1, 2, 0, 1, 2},
		},
		{
			name:  "snake",
			order: TurnOrderSnake,
			n:     3,
			want:  []uint32{1, 2, 2, 1, 0, 0, 1, 2},
		},
		{
			name:  "single player snake",
			order: TurnOrderSnake,
			n:     1,
			want:  []uint32{0, 0, 0, 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := testRules(1, 0, 1, PhasePick, tc.order)
			var got []uint32
			for ticker := uint32(0); ticker < uint32(len(tc.want)); ticker++ {
				newTicker, slot := NextTurn(ticker, tc.n, rules)
				require.Equal(t, ticker+1, newTicker)
				got = append(got, slot)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextTurn_EachRoundIsAPermutation(t *testing.T) {
	for _, order := range []TurnOrder{TurnOrderRoundRobin, TurnOrderSnake} {
		rules := testRules(1, 1, 1, PhaseBan, order)
		for n := uint32(1); n <= 7; n++ {
			for round := uint32(1); round < 6; round++ {
				seen := make([]uint32, 0, n)
				for k := uint32(0); k < n; k++ {
					_, slot := NextTurn(round*n+k-1, n, rules)
					require.Less(t, slot, n)
					seen = append(seen, slot)
				}
				slices.Sort(seen)
				for i, s := range seen {
					require.Equal(t, uint32(i), s, "order=%s n=%d round=%d", order, n, round)
				}
			}
		}
	}
}

func TestScheduler_PanicsWithoutPlayers(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderSnake)
	assert.Panics(t, func() { NextTurn(0, 0, rules) })
	assert.Panics(t, func() { NextPhase(0, rules, 0) })
	assert.Panics(t, func() { GuaranteedMinimumPicks(0, rules, 0) })
}

func TestNextPhase_Schedule(t *testing.T) {
	cases := []struct {
		name  string
		rules RuleSet
		n     uint32
		// phase of turns 1.. (turn 0 uses StartingPhase)
		want []Phase
	}{
		{
			name:  "ban first, one of each",
			rules: testRules(1, 1, 1, PhaseBan, TurnOrderSnake),
			n:     2,
			want:  []Phase{PhaseBan, PhasePick, PhasePick, PhaseBan, PhaseBan, PhasePick},
		},
		{
			name:  "pick first, one of each",
			rules: testRules(1, 1, 1, PhasePick, TurnOrderSnake),
			n:     2,
			want:  []Phase{PhasePick, PhaseBan, PhaseBan, PhasePick, PhasePick, PhaseBan},
		},
		{
			name:  "one ban round then three pick rounds",
			rules: testRules(3, 1, 3, PhaseBan, TurnOrderRoundRobin),
			n:     1,
			want:  []Phase{PhasePick, PhasePick, PhasePick, PhaseBan, PhasePick},
		},
		{
			name:  "two pick rounds then one ban round",
			rules: testRules(2, 1, 2, PhasePick, TurnOrderRoundRobin),
			n:     1,
			want:  []Phase{PhasePick, PhaseBan, PhasePick, PhasePick, PhaseBan},
		},
		{
			name:  "picks only",
			rules: testRules(1, 0, 3, PhasePick, TurnOrderSnake),
			n:     3,
			want:  []Phase{PhasePick, PhasePick, PhasePick, PhasePick, PhasePick},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []Phase
			for ticker := uint32(0); ticker < uint32(len(tc.want)); ticker++ {
				got = append(got, NextPhase(ticker, tc.rules, tc.n))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextPhase_SameForWholeRound(t *testing.T) {
	rules := testRules(2, 3, 4, PhaseBan, TurnOrderSnake)
	for n := uint32(1); n <= 6; n++ {
		for round := uint32(0); round < 12; round++ {
			// phase of turn k is NextPhase(k-1); turn 0 uses the starting phase
			want := rules.StartingPhase
			if round > 0 {
				want = NextPhase(round*n-1, rules, n)
			}
			for k := uint32(1); k < n; k++ {
				turn := round*n + k
				assert.Equal(t, want, NextPhase(turn-1, rules, n), "n=%d round=%d k=%d", n, round, k)
			}
		}
	}
}

func TestGuaranteedMinimumPicks(t *testing.T) {
	cases := []struct {
		name   string
		rules  RuleSet
		n      uint32
		ticker uint32
		want   uint32
	}{
		{"three players ban first early", testRules(2, 2, 5, PhaseBan, TurnOrderSnake), 3, 7, 0},
		{"three players ban first late", testRules(2, 2, 5, PhaseBan, TurnOrderSnake), 3, 25, 4},
		{"two players ban first", testRules(1, 1, 3, PhaseBan, TurnOrderSnake), 2, 9, 2},
		{"two players pick first", testRules(1, 1, 3, PhasePick, TurnOrderSnake), 2, 9, 3},
		{"two players pick first next turn", testRules(1, 1, 3, PhasePick, TurnOrderSnake), 2, 10, 3},
		{"four players snake", testRules(1, 1, 1, PhaseBan, TurnOrderSnake), 4, 8, 1},
		{"nothing done yet", testRules(1, 1, 1, PhaseBan, TurnOrderSnake), 4, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GuaranteedMinimumPicks(tc.ticker, tc.rules, tc.n))
		})
	}
}

func TestGuaranteedMinimumPicks_NonDecreasing(t *testing.T) {
	for _, start := range []Phase{PhasePick, PhaseBan} {
		for picks := uint16(1); picks <= 3; picks++ {
			for bans := uint16(0); bans <= 3; bans++ {
				rules := testRules(picks, bans, 5, start, TurnOrderSnake)
				for n := uint32(1); n <= 5; n++ {
					prev := uint32(0)
					for ticker := uint32(0); ticker < 200; ticker++ {
						got := GuaranteedMinimumPicks(ticker, rules, n)
						require.GreaterOrEqual(t, got, prev, "start=%s picks=%d bans=%d n=%d ticker=%d", start, picks, bans, n, ticker)
						prev = got
					}
				}
			}
		}
	}
}

// Every rule set that passes validation must end with full rosters.
func TestApplySelection_ValidRulesFillEveryRoster(t *testing.T) {
	for _, start := range []Phase{PhasePick, PhaseBan} {
		for _, order := range []TurnOrder{TurnOrderRoundRobin, TurnOrderSnake} {
			for picks := uint16(1); picks <= 3; picks++ {
				for bans := uint16(0); bans <= 3; bans++ {
					for target := uint16(1); target <= 4; target++ {
						rules := testRules(picks, bans, target, start, order)
						if rules.Validate() != nil {
							continue
						}
						for n := 1; n <= 4; n++ {
							d, secrets := startedDraft(t, rules, n)
							item := uint32(1)
							for d.Session.State == StateInProgress {
								require.Less(t, item, uint32(10000), "draft never ended")
								var err error
								d, _, err = ApplySelection(d, d.Session.CurrentPlayer, d.Session.CurrentPhase, item, secrets[d.Session.CurrentPlayer])
								require.NoError(t, err)
								item++
							}
							for _, p := range d.Players {
								require.GreaterOrEqual(t, len(p.Picked), int(target),
									"%s/%s picks=%d bans=%d target=%d n=%d player=%s", start, order, picks, bans, target, n, p.Name)
							}
						}
					}
				}
			}
		}
	}
}

// Play full drafts and check that completion never fires before every
// player has reached the target and that every player ends with the target.
func TestApplySelection_FullDraftReachesTarget(t *testing.T) {
	for _, start := range []Phase{PhasePick, PhaseBan} {
		for _, order := range []TurnOrder{TurnOrderRoundRobin, TurnOrderSnake} {
			for _, n := range []int{1, 2, 3, 4} {
				rules := testRules(1, 1, 3, start, order)
				t.Run(fmt.Sprintf("%s/%s/%d", start, order, n), func(t *testing.T) {
					d, secrets := startedDraft(t, rules, n)
					item := uint32(1)
					for d.Session.State == StateInProgress {
						require.Less(t, item, uint32(1000), "draft never ended")
						var err error
						d, _, err = ApplySelection(d, d.Session.CurrentPlayer, d.Session.CurrentPhase, item, secrets[d.Session.CurrentPlayer])
						require.NoError(t, err)
						item++
					}
					for _, p := range d.Players {
						assert.Len(t, p.Picked, int(rules.TargetRosterSize), "player %s", p.Name)
					}
				})
			}
		}
	}
}

func TestApplySelection_FourPlayerSnakeEndsAfterEightTurns(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderSnake)
	d, secrets := startedDraft(t, rules, 4)

	wantSlots := []uint32{0, 1, 2, 3, 3, 2, 1, 0}
	wantPhase := []Phase{PhaseBan, PhaseBan, PhaseBan, PhaseBan, PhasePick, PhasePick, PhasePick, PhasePick}

	var events []Event
	for turn := 0; turn < 8; turn++ {
		cur, ok := d.Player(d.Session.CurrentPlayer)
		require.True(t, ok)
		require.Equal(t, wantSlots[turn], cur.Slot, "turn %d", turn)
		require.Equal(t, wantPhase[turn], d.Session.CurrentPhase, "turn %d", turn)
		require.Equal(t, StateInProgress, d.Session.State, "turn %d", turn)

		var err error
		d, events, err = ApplySelection(d, cur.ID, d.Session.CurrentPhase, uint32(100+turn), secrets[cur.ID])
		require.NoError(t, err)
	}

	assert.Equal(t, uint32(8), d.Session.TurnTicker)
	assert.Equal(t, uint32(1), GuaranteedMinimumPicks(d.Session.TurnTicker, rules, 4))
	assert.Equal(t, StateEnded, d.Session.State)
	assert.True(t, ContainsEvent(events, EvtDraftCompleted))
	assert.Len(t, d.Session.SelectedOrBanned, 8)
	for _, p := range d.Players {
		assert.Len(t, p.Picked, 1)
	}
}

func TestApplySelection_Rejections(t *testing.T) {
	rules := testRules(1, 1, 2, PhaseBan, TurnOrderSnake)
	started, secrets := startedDraft(t, rules, 2)

	first := started.Session.CurrentPlayer
	afterBan, _, err := ApplySelection(started, first, PhaseBan, 7, secrets[first])
	require.NoError(t, err)

	open := started
	open.Session.State = StateOpen
	ready := started
	ready.Session.State = StateReady
	ended := started
	ended.Session.State = StateEnded

	cases := []struct {
		name    string
		setup   Draft
		player  string
		action  Phase
		item    uint32
		secret  string
		wantErr error
	}{
		{"open session", open, first, PhaseBan, 1, secrets[first], ErrWrongState},
		{"ready session", ready, first, PhaseBan, 1, secrets[first], ErrWrongState},
		{"ended session", ended, first, PhaseBan, 1, secrets[first], ErrWrongState},
		{"item already banned", afterBan, afterBan.Session.CurrentPlayer, PhaseBan, 7, secrets[afterBan.Session.CurrentPlayer], ErrItemUnavailable},
		{"wrong phase", started, first, PhasePick, 1, secrets[first], ErrWrongPhase},
		{"not your turn", started, "player-1", PhaseBan, 1, secrets["player-1"], ErrNotYourTurn},
		{"secret of another player", started, first, PhaseBan, 1, secrets["player-1"], ErrAccessDenied},
		{"malformed secret", started, first, PhaseBan, 1, "hunter2", ErrAccessDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.setup.clone()
			got, events, err := ApplySelection(tc.setup, tc.player, tc.action, tc.item, tc.secret)
			if err == nil || !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			assert.Nil(t, events)
			assert.Equal(t, before, got)
			assert.Equal(t, before, tc.setup)
		})
	}
}

func TestApplySelection_DoesNotMutateInput(t *testing.T) {
	rules := testRules(1, 0, 2, PhasePick, TurnOrderRoundRobin)
	d, secrets := startedDraft(t, rules, 2)
	before := d.clone()

	next, events, err := ApplySelection(d, "player-0", PhasePick, 25, secrets["player-0"])
	require.NoError(t, err)

	assert.Equal(t, before, d)
	assert.Equal(t, []uint32{25}, next.Players[0].Picked)
	assert.Equal(t, []uint32{25}, next.Session.SelectedOrBanned)
	assert.Equal(t, uint32(1), next.Session.TurnTicker)
	assert.Equal(t, "player-1", next.Session.CurrentPlayer)
	assert.True(t, ContainsEvent(events, EvtItemPicked))
	assert.True(t, ContainsEvent(events, EvtTurnAdvanced))
}

func TestApplySelection_BanDoesNotGrowRoster(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderRoundRobin)
	d, secrets := startedDraft(t, rules, 2)

	next, events, err := ApplySelection(d, "player-0", PhaseBan, 3, secrets["player-0"])
	require.NoError(t, err)
	assert.Empty(t, next.Players[0].Picked)
	assert.Equal(t, []uint32{3}, next.Session.SelectedOrBanned)
	assert.True(t, ContainsEvent(events, EvtItemBanned))
}

func TestJoin(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderSnake)
	s, err := NewSession("s", "draft", 1, 2, rules, "", testNow)
	require.NoError(t, err)
	d := NewDraft(s, nil)

	d, p0, secret, err := Join(d, "p0", "Ash", testNow)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), p0.Slot)
	assert.Equal(t, "p0", d.Session.CurrentPlayer)
	assert.True(t, d.Session.AcceptingNewPlayers)
	assert.True(t, VerifySecret(secret, p0.SecretHash))

	_, _, _, err = Join(d, "dup", "Ash", testNow)
	assert.ErrorIs(t, err, ErrNameTaken)

	d, p1, _, err := Join(d, "p1", "ash", testNow)
	require.NoError(t, err, "names are case-sensitive")
	assert.Equal(t, uint32(1), p1.Slot)
	assert.Equal(t, "p0", d.Session.CurrentPlayer)
	assert.False(t, d.Session.AcceptingNewPlayers)

	_, _, _, err = Join(d, "p2", "Misty", testNow)
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestJoin_Rejections(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderSnake)
	s, err := NewSession("s", "draft", 1, 4, rules, "", testNow)
	require.NoError(t, err)

	notAccepting := NewDraft(s, nil)
	notAccepting.Session.AcceptingNewPlayers = false
	inProgress := NewDraft(s, nil)
	inProgress.Session.State = StateInProgress
	ended := NewDraft(s, nil)
	ended.Session.State = StateEnded

	cases := []struct {
		name    string
		setup   Draft
		player  string
		wantErr error
	}{
		{"not accepting", notAccepting, "Brock", ErrSessionFull},
		{"in progress", inProgress, "Brock", ErrWrongState},
		{"ended", ended, "Brock", ErrWrongState},
		{"empty name", NewDraft(s, nil), "", ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := Join(tc.setup, "id", tc.player, testNow)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestJoin_SecretFailurePropagates(t *testing.T) {
	orig := newSecret
	t.Cleanup(func() { newSecret = orig })
	newSecret = func() (string, error) { return "", errors.New("entropy exhausted") }

	s, err := NewSession("s", "draft", 1, 2, testRules(1, 1, 1, PhaseBan, TurnOrderSnake), "", testNow)
	require.NoError(t, err)
	d := NewDraft(s, nil)

	got, _, _, err := Join(d, "p0", "Ash", testNow)
	require.Error(t, err)
	assert.Equal(t, d, got)
}

func TestJoin_ReadySessionReopens(t *testing.T) {
	s, err := NewSession("s", "draft", 1, 3, testRules(1, 1, 1, PhaseBan, TurnOrderSnake), "", testNow)
	require.NoError(t, err)
	d := NewDraft(s, nil)
	d, _, _, err = Join(d, "p0", "Ash", testNow)
	require.NoError(t, err)
	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	require.Equal(t, StateReady, d.Session.State)

	d, _, _, err = Join(d, "p1", "Misty", testNow)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, d.Session.State)
}

func TestToggleReady(t *testing.T) {
	s, err := NewSession("s", "draft", 1, 2, testRules(1, 1, 1, PhaseBan, TurnOrderSnake), "", testNow)
	require.NoError(t, err)
	d := NewDraft(s, nil)
	d, _, _, err = Join(d, "p0", "Ash", testNow)
	require.NoError(t, err)
	d, _, _, err = Join(d, "p1", "Misty", testNow)
	require.NoError(t, err)

	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, d.Session.State)

	d, err = ToggleReady(d, "p1")
	require.NoError(t, err)
	assert.Equal(t, StateReady, d.Session.State)

	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, d.Session.State)

	_, err = ToggleReady(d, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	d.Session.State = StateInProgress
	_, err = ToggleReady(d, "p0")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestStart(t *testing.T) {
	rules := testRules(1, 1, 1, PhaseBan, TurnOrderSnake)
	s, err := NewSession("s", "draft", 2, 3, rules, "", testNow)
	require.NoError(t, err)
	d := NewDraft(s, nil)
	d, _, _, err = Join(d, "p0", "Ash", testNow)
	require.NoError(t, err)

	_, err = Start(d)
	assert.ErrorIs(t, err, ErrWrongState, "open session")

	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	_, err = Start(d)
	assert.ErrorIs(t, err, ErrWrongState, "below min players")

	d, _, _, err = Join(d, "p1", "Misty", testNow)
	require.NoError(t, err)
	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	d, err = ToggleReady(d, "p1")
	require.NoError(t, err)
	require.Equal(t, StateOpen, d.Session.State)
	d, err = ToggleReady(d, "p0")
	require.NoError(t, err)
	require.Equal(t, StateReady, d.Session.State)

	started, err := Start(d)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, started.Session.State)
	assert.False(t, started.Session.AcceptingNewPlayers)
	assert.Equal(t, "p0", started.Session.CurrentPlayer)
	assert.Equal(t, PhaseBan, started.Session.CurrentPhase)

	_, err = Start(started)
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestRuleSetValidate(t *testing.T) {
	cases := []struct {
		name    string
		rules   RuleSet
		wantErr bool
	}{
		{"valid", testRules(1, 1, 3, PhaseBan, TurnOrderSnake), false},
		{"picks only", testRules(2, 0, 3, PhasePick, TurnOrderRoundRobin), false},
		{"empty cycle", testRules(0, 0, 1, PhaseBan, TurnOrderSnake), true},
		{"bans only", testRules(0, 2, 1, PhaseBan, TurnOrderSnake), true},
		{"no target", testRules(1, 1, 0, PhaseBan, TurnOrderSnake), true},
		{"ban start without bans", testRules(1, 0, 1, PhaseBan, TurnOrderRoundRobin), true},
		{"missing phase", testRules(1, 1, 1, 0, TurnOrderSnake), true},
		{"missing order", testRules(1, 1, 1, PhasePick, 0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rules.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnumText(t *testing.T) {
	var p Phase
	require.NoError(t, p.UnmarshalText([]byte("BAN")))
	assert.Equal(t, PhaseBan, p)
	assert.Error(t, p.UnmarshalText([]byte("select")))

	var o TurnOrder
	require.NoError(t, o.UnmarshalText([]byte("ROUNDROBIN")))
	assert.Equal(t, TurnOrderRoundRobin, o)

	var s State
	require.NoError(t, s.UnmarshalText([]byte("in_progress")))
	assert.Equal(t, StateInProgress, s)

	_, err := Phase(0).MarshalText()
	assert.Error(t, err)
}

func TestHashSecret(t *testing.T) {
	const secret = "7f0c3c0e-2a5b-4c43-9c1e-5d0b1a4f8e21"
	h1, err := HashSecret(secret)
	require.NoError(t, err)
	h2, err := HashSecret(secret)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.True(t, VerifySecret(secret, h1))
	assert.False(t, VerifySecret("11111111-2222-3333-4444-555555555555", h1))

	_, err = HashSecret("not-a-uuid")
	assert.ErrorIs(t, err, ErrAccessDenied)
}
