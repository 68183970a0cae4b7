package handler

import (
	"net/http"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
)

type levyRequest struct {
	LotID         string       `json:"lot_id" validate:"notblank"`
	BuildingID    string       `json:"building_id" validate:"notblank"`
	Period        string       `json:"period" validate:"notblank,max=32"`
	Amount        money.Amount `json:"amount" validate:"gt=0"`
	DueDate       models.Date  `json:"due_date"`
	RecoveryCosts money.Amount `json:"recovery_costs" validate:"gte=0"`
}

type markPaidRequest struct {
	PaidAt *models.Date `json:"paid_at"`
}

type recoveryCostRequest struct {
	Amount money.Amount `json:"amount" validate:"gt=0"`
}

// RecordLevy stores a levy raised by billing
func (h *Handler) RecordLevy(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "record levies"); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req levyRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	levy, err := h.svc.RecordLevy(r.Context(), models.Levy{
		LotID:         req.LotID,
		BuildingID:    req.BuildingID,
		Period:        req.Period,
		Amount:        req.Amount,
		DueDate:       req.DueDate,
		RecoveryCosts: req.RecoveryCosts,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, levy)
}

func (h *Handler) GetLevy(w http.ResponseWriter, r *http.Request) {
	levy, err := h.svc.GetLevy(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.AuthorizeReader(r.Context(), actorOf(r), levy.BuildingID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levy)
}

func (h *Handler) MarkLevyPaid(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "mark levies paid"); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req markPaidRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	var paidAt models.Date
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	levy, err := h.svc.MarkPaid(r.Context(), pathID(r), paidAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levy)
}

func (h *Handler) RecordRecoveryCost(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "record recovery costs"); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req recoveryCostRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	levy, err := h.svc.RecordRecoveryCost(r.Context(), pathID(r), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levy)
}
