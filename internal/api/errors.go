package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/validate"
)

// handleError centralizes error handling for HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())
	appErr := toAppError(err)

	switch {
	case appErr.Status >= 500:
		log.Error().Err(appErr).Msg("server error")
	case appErr.Status >= 400:
		log.Warn().Err(appErr).Msg("client error")
	default:
		log.Debug().Err(appErr).Msg("error")
	}
	writeJSON(w, appErr.Status, errorPayload(appErr.Code, appErr.Message, appErr.Fields))
}

func toAppError(err error) *apperr.AppError {
	switch {
	case errors.Is(err, leaderboard.ErrNotAuthenticated):
		return apperr.Unauthorized(err.Error())
	case errors.Is(err, leaderboard.ErrNotFinished), errors.Is(err, leaderboard.ErrNothingToSave):
		return apperr.BadRequest(err.Error())
	}
	return apperr.As(err)
}

func errorPayload(code, message string, fields map[string]string) map[string]any {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	return map[string]any{"error": body}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation(validate.TranslateErrors(err))
	}
	return nil
}
