package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/creature-draft-backend/internal/draft"
	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/pkg/types"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ListCreatures(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatures, err := svc.Creatures(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, creatures)
	}
}

func GetCreature(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
		if err != nil {
			writeError(w, r, log, fmt.Errorf("%w: creature id must be a number", engine.ErrInvalidArgument))
			return
		}
		c, err := svc.Creature(r.Context(), uint32(id))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func ListDraftSets(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := svc.DraftSets(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sets)
	}
}

func GetDraftSet(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := svc.DraftSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, ds)
	}
}

func CreateRuleSet(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateRuleSetRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}

		rules := engine.RuleSet{
			Name:             req.Name,
			PicksPerRound:    req.PicksPerRound,
			BansPerRound:     req.BansPerRound,
			TargetRosterSize: req.TargetRosterSize,
		}
		if err := rules.StartingPhase.UnmarshalText([]byte(req.StartingPhase)); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := rules.TurnOrder.UnmarshalText([]byte(req.TurnOrder)); err != nil {
			writeError(w, r, log, err)
			return
		}

		created, err := svc.CreateRuleSet(r.Context(), rules)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func ListRuleSets(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.RuleSets(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func GetRuleSet(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.RuleSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func CreateSession(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}

		sess, err := svc.CreateSession(r.Context(), draft.CreateSessionParams{
			Name:       req.Name,
			MinPlayers: req.MinPlayers,
			MaxPlayers: req.MaxPlayers,
			RuleSetID:  req.RuleSetID,
			DraftSetID: req.DraftSetID,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func GetSession(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func GetSessionView(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.View(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView(d))
	}
}

func JoinSession(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.JoinRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}

		p, secret, err := svc.Join(r.Context(), chi.URLParam(r, "id"), req.Name)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, types.JoinResponse{
			PlayerID:  p.ID,
			SessionID: p.SessionID,
			Name:      p.Name,
			Slot:      p.Slot,
			Secret:    secret,
		})
	}
}

func ToggleReady(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ReadyRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}

		state, err := svc.ToggleReady(r.Context(), chi.URLParam(r, "id"), req.PlayerID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ReadyResponse{State: state.String()})
	}
}

func StartSession(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Start(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func ApplySelection(svc *draft.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		var action engine.Phase
		if err := action.UnmarshalText([]byte(req.Action)); err != nil {
			writeError(w, r, log, err)
			return
		}

		sel, err := svc.Select(r.Context(), chi.URLParam(r, "id"), draft.SelectParams{
			PlayerID: req.PlayerID,
			Action:   action,
			ItemID:   req.ItemID,
			Secret:   req.Secret,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, selectResponse(sel))
	}
}

func sessionView(d engine.Draft) types.SessionView {
	s := d.Session
	v := types.SessionView{
		ID:                  s.ID,
		Name:                s.Name,
		State:               s.State.String(),
		RuleSetID:           s.RuleSetID,
		DraftSetID:          s.DraftSetID,
		MinPlayers:          s.MinPlayers,
		MaxPlayers:          s.MaxPlayers,
		AcceptingNewPlayers: s.AcceptingNewPlayers,
		CurrentPhase:        s.CurrentPhase.String(),
		CurrentPlayerID:     s.CurrentPlayer,
		TurnTicker:          s.TurnTicker,
		SelectedOrBanned:    s.SelectedOrBanned,
		Players:             make([]types.PlayerView, 0, len(d.Players)),
		CreatedAt:           s.CreatedAt,
	}
	if current, ok := d.Player(s.CurrentPlayer); ok {
		v.CurrentPlayerName = current.Name
	}
	for _, p := range d.Players {
		v.Players = append(v.Players, types.PlayerView{
			ID:     p.ID,
			Name:   p.Name,
			Slot:   p.Slot,
			Picked: p.Picked,
			Ready:  p.Ready,
		})
	}
	return v
}

func selectResponse(sel draft.Selection) types.SelectResponse {
	s := sel.Draft.Session
	resp := types.SelectResponse{
		Picked:           sel.Player.Picked,
		SelectedOrBanned: s.SelectedOrBanned,
		NextPhase:        s.CurrentPhase.String(),
		NextPlayer:       s.CurrentPlayer,
		State:            s.State.String(),
		TurnTicker:       s.TurnTicker,
		Events:           make([]types.Event, 0, len(sel.Events)),
	}
	for _, ev := range sel.Events {
		resp.Events = append(resp.Events, types.Event{
			Type:     string(ev.Type),
			PlayerID: ev.PlayerID,
			ItemID:   ev.ItemID,
			Ticker:   ev.Ticker,
		})
	}
	return resp
}
