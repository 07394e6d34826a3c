package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/bootstrap"
	monzoclient "github.com/GregMSThompson/potsync-backend/internal/client/monzo"
	truelayerclient "github.com/GregMSThompson/potsync-backend/internal/client/truelayer"
	"github.com/GregMSThompson/potsync-backend/internal/config"
	"github.com/GregMSThompson/potsync-backend/internal/crypto"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/internal/oauth"
	"github.com/GregMSThompson/potsync-backend/internal/scheduler"
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

	// engine
	syncsvc := services.NewSyncService(lstore, sstore, monzo, cards, oauthClient, locks)

	startupCtx := context.Background()
	interval, err := sstore.GetInt(startupCtx, models.SettingSyncInterval)
	exitOnError("read sync interval", err, bs.Log)

	var sched *scheduler.Scheduler
	sched = scheduler.New(func(ctx context.Context) error {
		_, runErr := syncsvc.RunCycle(ctx)

		// pick up interval changes made through the portal without a restart
		if seconds, err := sstore.GetInt(ctx, models.SettingSyncInterval); err == nil {
			sched.SetInterval(time.Duration(seconds) * time.Second)
		}
		return runErr
	}, time.Duration(interval)*time.Second, bs.Log)
	sched.Start()
	sched.TriggerNow()

	// minimal health endpoint so the platform can probe the worker
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			bs.Log.Error("health server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	bs.Log.Info("shutting down")
	sched.Shutdown(30 * time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
