package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/middleware"
	"github.com/Dan9191/strata-service/internal/models"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Anything unrecognised is a 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *apperr.ValidationError
		state      *apperr.StateError
		compliance *apperr.ComplianceViolation
		notFound   *apperr.NotFoundError
		conflict   *apperr.ConflictError
		forbidden  *apperr.ForbiddenError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Msg, Fields: validation.Fields})
	case errors.As(err, &state):
		writeJSON(w, http.StatusConflict, errorResponse{Error: state.Error()})
	case errors.As(err, &compliance):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: compliance.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: conflict.Error()})
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: forbidden.Error()})
	default:
		h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

func actorOf(r *http.Request) models.Actor {
	actor, _ := middleware.ActorFrom(r.Context())
	return actor
}

// requireAdmin guards operations run by billing and operations tooling.
func requireAdmin(r *http.Request, op string) error {
	actor := actorOf(r)
	if actor.Role != models.RoleAdmin {
		return apperr.Forbidden(actor.ID, op)
	}
	return nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// asOfParam reads the optional as_of query parameter. Zero means today.
func asOfParam(r *http.Request) (models.Date, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, apperr.Field("as_of", "must be a date in YYYY-MM-DD form")
	}
	return d, nil
}
