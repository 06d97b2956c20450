package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/blindtest/game"
	"github.com/onnwee/blindtest/ledger"
	"github.com/onnwee/blindtest/telemetry"
	"github.com/onnwee/blindtest/track"
	"github.com/onnwee/blindtest/validation"
)

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, validation.ErrMissingBody),
		errors.Is(err, validation.ErrInvalidBody),
		errors.Is(err, ledger.ErrAdjustment):
		return http.StatusBadRequest
	case errors.Is(err, track.ErrIndex), errors.Is(err, ledger.ErrUnknownPlayer):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNoTrack),
		errors.Is(err, game.ErrPlaylistDone),
		errors.Is(err, game.ErrNothingToCancel),
		errors.Is(err, game.ErrTrackActive),
		errors.Is(err, game.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		telemetry.LoggerWithCorr(r.Context()).Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err), slog.String("component", "http"))
	}
	writeJSON(w, status, resp)
}
