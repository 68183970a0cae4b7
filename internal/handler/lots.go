package handler

import (
	"net/http"

	"github.com/Dan9191/strata-service/internal/models"
)

type recoveryActionRequest struct {
	ActionType string `json:"action_type" validate:"notblank"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// Arrears reports the unpaid levies of a lot
func (h *Handler) Arrears(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.AuthorizeLotReader(r.Context(), actorOf(r), pathID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.svc.Arrears(r.Context(), pathID(r), asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Eligibility asks the recovery gate about ?action=
func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AuthorizeLotReader(r.Context(), actorOf(r), pathID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	action := models.ActionType(r.URL.Query().Get("action"))
	verdict, err := h.svc.EvaluateEligibility(r.Context(), pathID(r), action)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// RecordRecoveryAction records an escalation step once the gate allows it
func (h *Handler) RecordRecoveryAction(w http.ResponseWriter, r *http.Request) {
	var req recoveryActionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	action, err := h.svc.RecordRecoveryAction(r.Context(), actorOf(r), pathID(r), models.ActionType(req.ActionType), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

func (h *Handler) RecoveryHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AuthorizeLotReader(r.Context(), actorOf(r), pathID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	actions, err := h.svc.RecoveryHistory(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}
