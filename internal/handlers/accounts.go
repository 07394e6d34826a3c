package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/internal/response"
)

type AccountService interface {
	Links(ctx context.Context) (dto.LinksResponse, error)
	DeleteLink(ctx context.Context, linkType string) error
	AssignPot(ctx context.Context, linkType, potID string) error
	Pots(ctx context.Context) ([]dto.PotStatus, error)
	SetFundingSelection(ctx context.Context, selection models.AccountSelection) error
}

type accountHandlers struct {
	ResponseHandler response.ResponseHandler
	AccountSvc      AccountService
}

func NewAccountHandlers(deps *Deps) *accountHandlers {
	return &accountHandlers{
		ResponseHandler: deps.ResponseHandler,
		AccountSvc:      deps.AccountSvc,
	}
}

func (h *accountHandlers) LinkRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListLinks)
	r.Delete("/{type}", h.DeleteLink)
	r.Put("/{type}/pot", h.AssignPot)
	r.Put("/funding", h.SetFundingSelection)
	return r
}

func (h *accountHandlers) PotRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPots)
	return r
}

func (h *accountHandlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.AccountSvc.Links(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, links)
}

func (h *accountHandlers) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.AccountSvc.DeleteLink(r.Context(), chi.URLParam(r, "type")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *accountHandlers) AssignPot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PotID string `json:"potId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	if err := h.AccountSvc.AssignPot(r.Context(), chi.URLParam(r, "type"), body.PotID); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *accountHandlers) ListPots(w http.ResponseWriter, r *http.Request) {
	pots, err := h.AccountSvc.Pots(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, pots)
}

func (h *accountHandlers) SetFundingSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selection string `json:"selection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	if err := h.AccountSvc.SetFundingSelection(r.Context(), models.AccountSelection(body.Selection)); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
