package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/creature-draft-backend/internal/engine"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
	"github.com/DoyleJ11/creature-draft-backend/pkg/types"
)

const maxBodyBytes = 1 << 20

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrNotFound, http.StatusNotFound, "not_found"},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{engine.ErrWrongState, http.StatusConflict, "wrong_state"},
	{engine.ErrWrongPhase, http.StatusConflict, "wrong_phase"},
	{engine.ErrNotYourTurn, http.StatusConflict, "not_your_turn"},
	{engine.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{engine.ErrNameTaken, http.StatusConflict, "name_taken"},
	{engine.ErrSessionFull, http.StatusConflict, "session_full"},
	{engine.ErrAccessDenied, http.StatusForbidden, "access_denied"},
	{engine.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{store.ErrConflict, http.StatusServiceUnavailable, "storage_unavailable"},
	{store.ErrUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			if k.status >= http.StatusInternalServerError {
				log.Warn("request failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
			}
			writeJSON(w, k.status, types.ErrorResponse{Code: k.code, Message: err.Error()})
			return
		}
	}

	log.Error("unhandled error", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Code: "internal", Message: "internal error"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", engine.ErrInvalidArgument, err)
	}
	return nil
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
