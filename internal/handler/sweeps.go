package handler

import (
	"net/http"
)

// OverdueSweep marks a building's levies overdue as of today
func (h *Handler) OverdueSweep(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "run sweeps"); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.svc.MarkOverdueSweep(r.Context(), pathID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"levies_overdue": n})
}

// SweepAll runs the levy and installment sweeps as of ?as_of= or today
func (h *Handler) SweepAll(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r, "run sweeps"); err != nil {
		h.writeError(w, r, err)
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.svc.SweepAll(r.Context(), asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
