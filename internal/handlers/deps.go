package handlers

import (
	"log/slog"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/potsync-backend/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	AuthSvc         AuthService
	AccountSvc      AccountService
	SettingsSvc     SettingsService
	SyncSvc         SyncService
	Firebase        *auth.Client
}
