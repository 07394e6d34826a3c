package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/response"
)

type AuthService interface {
	Providers() []dto.ProviderInfo
	BeginAuth(ctx context.Context, linkType string) (string, error)
	CompleteAuth(ctx context.Context, state, code string) (string, error)
	SetProviderCredentials(ctx context.Context, linkType, clientID, clientSecret string) error
}

type authHandlers struct {
	ResponseHandler response.ResponseHandler
	AuthSvc         AuthService
}

func NewAuthHandlers(deps *Deps) *authHandlers {
	return &authHandlers{
		ResponseHandler: deps.ResponseHandler,
		AuthSvc:         deps.AuthSvc,
	}
}

// ProviderRoutes are portal-facing and sit behind authentication.
func (h *authHandlers) ProviderRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListProviders)
	r.Get("/{type}/connect", h.Connect)
	r.Put("/{type}/credentials", h.SetCredentials)
	return r
}

// CallbackRoutes receive OAuth redirects from the providers' auth pages, so
// they carry no bearer token and stay public.
func (h *authHandlers) CallbackRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/monzo", h.MonzoCallback)
	r.Get("/truelayer", h.TrueLayerCallback)
	return r
}

func (h *authHandlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.AuthSvc.Providers())
}

func (h *authHandlers) Connect(w http.ResponseWriter, r *http.Request) {
	linkType := chi.URLParam(r, "type")

	authorizeURL, err := h.AuthSvc.BeginAuth(r.Context(), linkType)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, map[string]string{"url": authorizeURL})
}

// MonzoCallback arrives as a form post (response_mode=form_post).
func (h *authHandlers) MonzoCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.completeAuth(w, r, r.PostFormValue("state"), r.PostFormValue("code"))
}

// TrueLayerCallback arrives as a query-string redirect shared by all issuers;
// the state picks the issuer back out.
func (h *authHandlers) TrueLayerCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.completeAuth(w, r, q.Get("state"), q.Get("code"))
}

func (h *authHandlers) completeAuth(w http.ResponseWriter, r *http.Request, state, code string) {
	linkType, err := h.AuthSvc.CompleteAuth(r.Context(), state, code)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	// back to the portal with the connected provider in the fragment
	http.Redirect(w, r, "/?connected="+linkType, http.StatusSeeOther)
}

func (h *authHandlers) SetCredentials(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	linkType := chi.URLParam(r, "type")
	if err := h.AuthSvc.SetProviderCredentials(r.Context(), linkType, body.ClientID, body.ClientSecret); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}
