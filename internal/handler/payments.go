package handler

import (
	"fmt"
	"net/http"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/integrations/bankstatement"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
)

type paymentRequest struct {
	Amount    money.Amount `json:"amount" validate:"gt=0"`
	Reference string       `json:"reference" validate:"notblank,max=140"`
	PaidDate  *models.Date `json:"paid_date"`
}

func (h *Handler) PlanPayment(w http.ResponseWriter, r *http.Request) {
	h.applyPayment(w, r, models.TargetPlan)
}

func (h *Handler) LevyPayment(w http.ResponseWriter, r *http.Request) {
	h.applyPayment(w, r, models.TargetLevy)
}

// applyPayment credits a settled payment. Payments arrive from the payment
// provider integration, so only admin tokens may post them.
func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request, target models.TargetType) {
	if err := requireAdmin(r, "apply payments"); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := models.IncomingPayment{
		TargetType: target,
		TargetID:   pathID(r),
		Amount:     req.Amount,
		Reference:  req.Reference,
	}
	if req.PaidDate != nil {
		in.PaidDate = *req.PaidDate
	}
	result, err := h.svc.ApplyPayment(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// ImportStatement applies a camt.053 bank statement posted as XML
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "import bank statements"); err != nil {
		h.writeError(w, r, err)
		return
	}
	stmt, err := bankstatement.Parse(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, apperr.Validation(fmt.Sprintf("invalid bank statement: %v", err)))
		return
	}
	report, err := h.svc.ImportStatement(r.Context(), stmt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
