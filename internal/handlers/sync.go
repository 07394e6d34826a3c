package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/response"
)

type SyncService interface {
	RunCycle(ctx context.Context) (dto.CycleResult, error)
}

type syncHandlers struct {
	ResponseHandler response.ResponseHandler
	SyncSvc         SyncService
}

func NewSyncHandlers(deps *Deps) *syncHandlers {
	return &syncHandlers{
		ResponseHandler: deps.ResponseHandler,
		SyncSvc:         deps.SyncSvc,
	}
}

func (h *syncHandlers) SyncRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.RunSync)
	return r
}

// RunSync runs one cycle inline and returns its result, so the portal can
// show what moved without waiting for the next tick.
func (h *syncHandlers) RunSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.SyncSvc.RunCycle(r.Context())
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, result)
}
