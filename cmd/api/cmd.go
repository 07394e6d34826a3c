package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/GregMSThompson/potsync-backend/internal/bootstrap"
	monzoclient "github.com/GregMSThompson/potsync-backend/internal/client/monzo"
	truelayerclient "github.com/GregMSThompson/potsync-backend/internal/client/truelayer"
	"github.com/GregMSThompson/potsync-backend/internal/config"
	"github.com/GregMSThompson/potsync-backend/internal/crypto"
	"github.com/GregMSThompson/potsync-backend/internal/handlers"
	"github.com/GregMSThompson/potsync-backend/internal/oauth"
	"github.com/GregMSThompson/potsync-backend/internal/response"
	"github.com/GregMSThompson/potsync-backend/internal/router"
	"github.com/GregMSThompson/potsync-backend/internal/services"
	"github.com/GregMSThompson/potsync-backend/internal/store"
)

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// bootstrap
	cfg := config.New()
	bs, err := bootstrap.Run(cfg)
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// helpers
	cipher := crypto.NewTokenCipher(bs.KMS, cfg.KMSKeyName)

	// stores
	lstore := store.NewLinkStore(bs.Firestore, cipher)
	sstore := store.NewSettingStore(bs.Firestore)
	ostore := store.NewOAuthSecretsStore(bs.Secrets, cfg.ProjectID)
	locks := store.NewLockStore(bs.Firestore)

	// provider clients
	monzo := monzoclient.NewAdapter()
	cards := func(linkType string) services.CardClient {
		return truelayerclient.NewAdapter(linkType)
	}
	oauthClient := oauth.NewClient(ostore, cfg.BaseURL)

	// services
	syncsvc := services.NewSyncService(lstore, sstore, monzo, cards, oauthClient, locks)
	authsvc := services.NewAuthService(oauthClient, lstore, ostore)
	accsvc := services.NewAccountService(lstore, monzo)
	setsvc := services.NewSettingsService(sstore, nil)

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.Firebase = bs.Firebase
	deps.AuthSvc = authsvc
	deps.AccountSvc = accsvc
	deps.SettingsSvc = setsvc
	deps.SyncSvc = syncsvc

	// router
	r := router.NewRouter(deps)
	err = http.ListenAndServe(":"+cfg.Port, r)
	exitOnError("server start failed", err, bs.Log)
}
