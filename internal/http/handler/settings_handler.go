package handler

import (
	"net/http"

	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/service"
)

type SettingsHandler struct {
	settings  service.SettingsServiceInterface
	maxUpload int64
}

func NewSettingsHandler(settings service.SettingsServiceInterface, maxUpload int64) *SettingsHandler {
	return &SettingsHandler{settings: settings, maxUpload: maxUpload}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, s)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.SettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	s, err := h.settings.Update(r.Context(), req)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, "settings.update", "admin_id", adminID(r))
	response.JSON(w, r, http.StatusOK, s)
}

func (h *SettingsHandler) UploadPresidentSignature(w http.ResponseWriter, r *http.Request) {
	u, release, err := readUpload(r, h.maxUpload)
	defer release()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	p, err := h.settings.SetPresidentSignature(r.Context(), u)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, "settings.president_signature.upload", "admin_id", adminID(r))
	response.JSON(w, r, http.StatusOK, map[string]string{"path": p})
}

func (h *SettingsHandler) PresidentSignature(w http.ResponseWriter, r *http.Request) {
	f, err := h.settings.OpenPresidentSignature(r.Context())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	serveStored(w, f)
}
