package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GregMSThompson/potsync-backend/internal/handlers"
	"github.com/GregMSThompson/potsync-backend/internal/middleware"
)

func NewRouter(deps *handlers.Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)

	ah := handlers.NewAuthHandlers(deps)
	ach := handlers.NewAccountHandlers(deps)
	sh := handlers.NewSettingsHandlers(deps)
	syh := handlers.NewSyncHandlers(deps)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// OAuth redirect targets, reached by the browser without a token
	r.Mount("/auth/callback", ah.CallbackRoutes())

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewMiddleware(deps.Firebase).FirebaseAuth)

		r.Mount("/providers", ah.ProviderRoutes())
		r.Mount("/links", ach.LinkRoutes())
		r.Mount("/pots", ach.PotRoutes())
		r.Mount("/settings", sh.SettingsRoutes())
		r.Mount("/sync", syh.SyncRoutes())
	})

	return r
}
