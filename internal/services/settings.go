package services

import (
	"context"
	"strconv"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

type settingsStore interface {
	All(ctx context.Context) ([]models.Setting, error)
	Save(ctx context.Context, key, value string) error
}

// intervalUpdater retunes the running scheduler when the sync interval
// setting changes. Optional: the API can run without a scheduler attached.
type intervalUpdater interface {
	SetInterval(d time.Duration)
}

type settingsService struct {
	settings  settingsStore
	scheduler intervalUpdater
}

func NewSettingsService(settings settingsStore, scheduler intervalUpdater) *settingsService {
	return &settingsService{settings: settings, scheduler: scheduler}
}

// List returns every setting, with defaults filled in for keys never written.
func (s *settingsService) List(ctx context.Context) ([]models.Setting, error) {
	return s.settings.All(ctx)
}

// Update validates and persists one setting. An interval change takes effect
// on the running scheduler immediately instead of waiting for a restart.
func (s *settingsService) Update(ctx context.Context, key, value string) error {
	if _, ok := models.DefaultSettings[key]; !ok {
		return errs.NewValidationError("unknown setting " + key)
	}

	switch key {
	case models.SettingEnableSync, models.SettingOverrideCooldown:
		if value != "true" && value != "false" {
			return errs.NewValidationError(key + " must be true or false")
		}
	case models.SettingSyncInterval, models.SettingCooldownHours:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return errs.NewValidationError(key + " must be a positive integer")
		}
	}

	if err := s.settings.Save(ctx, key, value); err != nil {
		return err
	}

	if key == models.SettingSyncInterval && s.scheduler != nil {
		seconds, _ := strconv.Atoi(value)
		s.scheduler.SetInterval(time.Duration(seconds) * time.Second)
		logger.FromContext(ctx).Info("sync interval updated", "seconds", seconds)
	}
	return nil
}
