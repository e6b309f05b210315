package handlers

import (
	"io"
	"net/http"
	"strconv"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// errorResponse is the JSON body of every error
type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := sonic.Marshal(body)
	if err != nil {
		logging.Errorf("Failed to encode response: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps the error taxonomy onto HTTP statuses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *models.ValidationError
	var conflict *models.ConflictError
	var upstream *models.UpstreamDataError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &conflict):
		status := http.StatusConflict
		if conflict.Reason == models.ConflictLocked {
			status = http.StatusLocked
		}
		writeJSON(w, status, errorResponse{Error: conflict.Message, Field: conflict.Field, Reason: string(conflict.Reason)})
	case errors.Is(err, models.ErrRevealForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: models.ErrRevealForbidden.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &upstream):
		logging.FromContext(r.Context()).Warnf("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "game data is temporarily unavailable"})
	default:
		logging.FromContext(r.Context()).Errorf("%s %s: %+v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeBody reads, decodes and validates a JSON body into dst
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return models.NewValidationError("body", "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return models.NewValidationError("body", "request body too large")
	}
	if err := sonic.Unmarshal(body, dst); err != nil {
		return models.NewValidationError("body", "malformed JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.NewValidationError(fe.Field(), "failed %q validation", fe.Tag())
		}
		return models.NewValidationError("body", "%v", err)
	}
	return nil
}

// pathInt reads a positive integer route variable
func pathInt(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, models.NewValidationError(name, "%q is not a valid %s", raw, name)
	}
	return value, nil
}

// seasonWeek reads the {season} and {week} route variables
func seasonWeek(r *http.Request) (int, int, error) {
	season, err := pathInt(r, "season")
	if err != nil {
		return 0, 0, err
	}
	week, err := pathInt(r, "week")
	if err != nil {
		return 0, 0, err
	}
	if week > 22 {
		return 0, 0, models.NewValidationError("week", "week %d is out of range", week)
	}
	return season, week, nil
}
