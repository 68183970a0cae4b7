package handler

import (
	"net/http"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
	"github.com/Dan9191/strata-service/internal/service"
)

type planRequest struct {
	LotID                 string       `json:"lot_id" validate:"notblank"`
	TotalOwed             money.Amount `json:"total_owed" validate:"gt=0"`
	InterestOwed          money.Amount `json:"interest_owed" validate:"gte=0"`
	NumberOfInstallments  int          `json:"number_of_installments" validate:"min=1"`
	InstallmentFrequency  string       `json:"installment_frequency" validate:"oneof=weekly fortnightly monthly"`
	RequestInterestWaiver bool         `json:"request_interest_waiver"`
	LevyIDs               []string     `json:"levy_ids" validate:"omitempty,dive,notblank"`
	Notes                 string       `json:"notes" validate:"max=2000"`
}

type decisionRequest struct {
	Approve        *bool        `json:"approve" validate:"required"`
	Reason         string       `json:"reason" validate:"max=2000"`
	InterestWaived bool         `json:"interest_waived"`
	StartDate      *models.Date `json:"start_date"`
}

type extensionRequest struct {
	RequestedEndDate models.Date `json:"requested_end_date"`
	Reason           string      `json:"reason" validate:"notblank,max=2000"`
}

type extensionDecisionRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=2000"`
}

// RequestPlan handles a resident's payment plan request
func (h *Handler) RequestPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.svc.RequestPlan(r.Context(), actorOf(r), service.RequestPlanInput{
		LotID:                 req.LotID,
		TotalOwed:             req.TotalOwed,
		InterestOwed:          req.InterestOwed,
		NumberOfInstallments:  req.NumberOfInstallments,
		Frequency:             models.Frequency(req.InstallmentFrequency),
		RequestInterestWaiver: req.RequestInterestWaiver,
		LevyIDs:               req.LevyIDs,
		Notes:                 req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// readablePlan loads the plan in the path if the caller belongs to its building.
func (h *Handler) readablePlan(r *http.Request) (*models.PaymentPlan, error) {
	plan, err := h.svc.GetPlan(r.Context(), pathID(r))
	if err != nil {
		return nil, err
	}
	if err := h.svc.AuthorizeReader(r.Context(), actorOf(r), plan.BuildingID); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlan returns a plan with its schedule
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.readablePlan(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// DecidePlan approves or rejects a pending plan
func (h *Handler) DecidePlan(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	plan, err := h.svc.Decide(r.Context(), actorOf(r), pathID(r), service.DecisionInput{
		Approve:        *req.Approve,
		Reason:         req.Reason,
		InterestWaived: req.InterestWaived,
		StartDate:      req.StartDate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) PlanProgress(w http.ResponseWriter, r *http.Request) {
	if _, err := h.readablePlan(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	progress, err := h.svc.Progress(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) PlanDeadline(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.readablePlan(r); err != nil {
		h.writeError(w, r, err)
		return
	}
	deadline, err := h.svc.ResponseDeadline(r.Context(), pathID(r), asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deadline)
}

// RequestExtension handles a request to move a plan's end date
func (h *Handler) RequestExtension(w http.ResponseWriter, r *http.Request) {
	var req extensionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ext, err := h.svc.RequestExtension(r.Context(), actorOf(r), pathID(r), req.RequestedEndDate, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ext)
}

func (h *Handler) DecideExtension(w http.ResponseWriter, r *http.Request) {
	var req extensionDecisionRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ext, err := h.svc.DecideExtension(r.Context(), actorOf(r), pathID(r), *req.Approve, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

// PendingPlans lists the undecided plans of a building, most urgent first
func (h *Handler) PendingPlans(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	buildingID := pathID(r)
	if err := h.svc.AuthorizeDecider(r.Context(), actorOf(r), buildingID); err != nil {
		h.writeError(w, r, err)
		return
	}
	pending, err := h.svc.PendingDecisions(r.Context(), buildingID, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}
