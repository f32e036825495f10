package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-hq/apiserver/internal/services"
)

// EmployeeHandler serves the public employee directory used by the
// visitor kiosk's host picker.
type EmployeeHandler struct {
	accounts *services.AccountService
}

func NewEmployeeHandler(accounts *services.AccountService) *EmployeeHandler {
	return &EmployeeHandler{accounts: accounts}
}

// EmployeeRouter mounts the directory routes under /employees.
func EmployeeRouter(r chi.Router, handler *EmployeeHandler) {
	r.Get("/public", handler.ListPublic)
}

// ListPublic returns the host-pickable employees. Names and badge
// identifiers only; no account data.
func (h *EmployeeHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	employees, err := h.accounts.ListPublicEmployees(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
}
