package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/service"
)

// ValidationHandler serves the public QR check. It needs no session.
type ValidationHandler struct {
	validation service.ValidationServiceInterface
}

func NewValidationHandler(validation service.ValidationServiceInterface) *ValidationHandler {
	return &ValidationHandler{validation: validation}
}

func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	res, err := h.validation.Validate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, res)
}
