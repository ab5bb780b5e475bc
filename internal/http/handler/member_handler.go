package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctm-colima/credential-service/internal/http/middleware"
	"github.com/ctm-colima/credential-service/internal/http/response"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/service"
	"github.com/ctm-colima/credential-service/internal/storage"
)

type MemberHandler struct {
	members   service.MemberServiceInterface
	cards     service.CardServiceInterface
	maxUpload int64
}

func NewMemberHandler(members service.MemberServiceInterface, cards service.CardServiceInterface, maxUpload int64) *MemberHandler {
	return &MemberHandler{members: members, cards: cards, maxUpload: maxUpload}
}

func adminID(r *http.Request) string {
	if a, ok := middleware.AdminFromContext(r.Context()); ok {
		return a.ID
	}
	return ""
}

func (h *MemberHandler) Search(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"users": members})
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	m, err := h.members.Create(r.Context(), req)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, "member.create", "admin_id", adminID(r), "member_id", m.ID)
	response.JSON(w, r, http.StatusCreated, m)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, m)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	m, err := h.members.Update(r.Context(), id, req)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, "member.update", "admin_id", adminID(r), "member_id", id)
	response.JSON(w, r, http.StatusOK, m)
}

func (h *MemberHandler) RenewVigency(w http.ResponseWriter, r *http.Request) {
	var req service.RenewVigencyRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			response.WriteError(w, r, err)
			return
		}
	}
	id := chi.URLParam(r, "id")
	ev, err := h.members.RenewVigency(r.Context(), id, req)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, "member.vigency.renew", "admin_id", adminID(r), "member_id", id)
	response.JSON(w, r, http.StatusCreated, map[string]any{"vigencyEvent": ev})
}

func (h *MemberHandler) VigencyHistory(w http.ResponseWriter, r *http.Request) {
	res, err := h.members.VigencyHistory(r.Context(), chi.URLParam(r, "id"), pageFromQuery(r))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *MemberHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "member.photo.upload", h.members.AttachPhoto)
}

func (h *MemberHandler) UploadSignature(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "member.signature.upload", h.members.AttachSignature)
}

type attachFunc func(ctx context.Context, id string, u storage.Upload) (string, error)

func (h *MemberHandler) upload(w http.ResponseWriter, r *http.Request, event string, attach attachFunc) {
	u, release, err := readUpload(r, h.maxUpload)
	defer release()
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	p, err := attach(r.Context(), id, u)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	observability.Audit(r, event, "admin_id", adminID(r), "member_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"path": p})
}

func (h *MemberHandler) Photo(w http.ResponseWriter, r *http.Request) {
	f, err := h.members.OpenPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	serveStored(w, f)
}

func (h *MemberHandler) Signature(w http.ResponseWriter, r *http.Request) {
	f, err := h.members.OpenSignature(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	serveStored(w, f)
}

func (h *MemberHandler) Card(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.Card(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, card)
}
