package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/internal/response"
)

type SettingsService interface {
	List(ctx context.Context) ([]models.Setting, error)
	Update(ctx context.Context, key, value string) error
}

type settingsHandlers struct {
	ResponseHandler response.ResponseHandler
	SettingsSvc     SettingsService
}

func NewSettingsHandlers(deps *Deps) *settingsHandlers {
	return &settingsHandlers{
		ResponseHandler: deps.ResponseHandler,
		SettingsSvc:     deps.SettingsSvc,
	}
}

func (h *settingsHandlers) SettingsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListSettings)
	r.Put("/{key}", h.UpdateSetting)
	return r
}

func (h *settingsHandlers) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.SettingsSvc.List(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, settings)
}

func (h *settingsHandlers) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	if err := h.SettingsSvc.Update(r.Context(), chi.URLParam(r, "key"), body.Value); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
