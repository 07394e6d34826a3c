package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

type moneyClient interface {
	Ping(ctx context.Context, accessToken string) error
	Balance(ctx context.Context, accessToken string, selection models.AccountSelection) (int64, error)
	PotBalance(ctx context.Context, accessToken, potID string) (int64, error)
	SelectionForPot(ctx context.Context, accessToken, potID string) (models.AccountSelection, error)
	Deposit(ctx context.Context, accessToken, potID string, selection models.AccountSelection, amount int64, dedupeID string) error
	Withdraw(ctx context.Context, accessToken, potID string, selection models.AccountSelection, amount int64, dedupeID string) error
	SendFeedItem(ctx context.Context, accessToken string, selection models.AccountSelection, title, body string) error
}

// CardClient reads one linked card's provider API.
type CardClient interface {
	Ping(ctx context.Context, accessToken string) error
	TotalBalance(ctx context.Context, accessToken string) (int64, error)
}

// cardClientFunc resolves the card API client for a link type. All card
// providers share one API surface so the engine never branches on type.
type cardClientFunc func(linkType string) CardClient

type syncLinkStore interface {
	GetMoneyLink(ctx context.Context) (*models.MoneyLink, error)
	GetCreditLinks(ctx context.Context) ([]*models.CreditLink, error)
	GetCreditLink(ctx context.Context, linkType string) (*models.CreditLink, error)
	SaveMoneyLink(ctx context.Context, link *models.MoneyLink) error
	SaveCreditLink(ctx context.Context, link *models.CreditLink) error
	Delete(ctx context.Context, linkType string) error
	UpdateSyncState(ctx context.Context, linkType string, prevBalance int64, cooldown *models.Cooldown) error
}

type syncSettingStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetBool(ctx context.Context, key string) (bool, error)
	GetInt(ctx context.Context, key string) (int, error)
	Save(ctx context.Context, key, value string) error
}

type tokenRefresher interface {
	RefreshByType(ctx context.Context, linkType, refreshToken string) (dto.TokenResponse, error)
}

// cycleLock serializes cycles across processes: the scheduler in the worker
// and the manual trigger in the api both run the same engine against the same
// links, so at most one of them may hold the lease at a time.
type cycleLock interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

const (
	cycleLockName = "sync-cycle"

	// cycleLockTTL bounds how long a crashed holder can block the next cycle.
	cycleLockTTL = 10 * time.Minute
)

type syncService struct {
	links    syncLinkStore
	settings syncSettingStore
	money    moneyClient
	cards    cardClientFunc
	auth     tokenRefresher
	locks    cycleLock

	clockNow    func() time.Time
	newDedupeID func() string
}

func NewSyncService(links syncLinkStore, settings syncSettingStore, money moneyClient, cards cardClientFunc, auth tokenRefresher, locks cycleLock) *syncService {
	return &syncService{
		links:       links,
		settings:    settings,
		money:       money,
		cards:       cards,
		auth:        auth,
		locks:       locks,
		clockNow:    time.Now,
		newDedupeID: uuid.NewString,
	}
}

// RunCycle performs one full reconciliation pass: verify link health,
// aggregate balances, then walk each credit link through the state machine
// and execute at most one pot movement per link. A returned CycleResult with
// Aborted set describes a handled stop (missing config, sync disabled, a
// cycle already in flight); an insufficient-funds shortfall returns as
// *errs.InsufficientFundsError after pausing sync; any other non-nil error
// is an unexpected provider or store failure.
func (s *syncService) RunCycle(ctx context.Context) (dto.CycleResult, error) {
	log := logger.FromContext(ctx)
	var result dto.CycleResult

	owner := s.newDedupeID()
	acquired, err := s.locks.Acquire(ctx, cycleLockName, owner, cycleLockTTL)
	if err != nil {
		return result, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !acquired {
		result.Aborted = true
		result.AbortReason = "another cycle is running"
		log.Info("sync cycle already in flight, skipping")
		return result, nil
	}
	defer func() {
		if err := s.locks.Release(ctx, cycleLockName, owner); err != nil {
			log.Error("failed to release cycle lock", "error", err)
		}
	}()

	money, err := s.ensureMoneyLink(ctx)
	if err != nil {
		if abortable(err) {
			result.Aborted = true
			result.AbortReason = err.Error()
			log.Warn("sync cycle aborted", "reason", result.AbortReason)
			return result, nil
		}
		return result, fmt.Errorf("money link health: %w", err)
	}

	healthy, removed, err := s.ensureCreditLinks(ctx, money)
	if err != nil {
		return result, fmt.Errorf("credit link health: %w", err)
	}
	result.LinksRemoved = removed
	if len(healthy) == 0 {
		log.Info("sync cycle finished, no healthy credit links")
		return result, nil
	}

	enabled, err := s.settings.GetBool(ctx, models.SettingEnableSync)
	if err != nil {
		return result, fmt.Errorf("read enable_sync: %w", err)
	}
	if !enabled {
		result.Aborted = true
		result.AbortReason = "sync disabled"
		log.Info("sync disabled, skipping reconciliation")
		return result, nil
	}

	agg, err := s.aggregate(ctx, money, healthy)
	if err != nil {
		return result, fmt.Errorf("aggregate balances: %w", err)
	}
	result.LinksSkipped = agg.skipped

	override, err := s.settings.GetBool(ctx, models.SettingOverrideCooldown)
	if err != nil {
		return result, fmt.Errorf("read override_cooldown_spending: %w", err)
	}
	cooldownHours, err := s.settings.GetInt(ctx, models.SettingCooldownHours)
	if err != nil {
		return result, fmt.Errorf("read cooldown_hours: %w", err)
	}

	for _, l := range agg.links {
		err := s.reconcileLink(ctx, money, agg, l, override, time.Duration(cooldownHours)*time.Hour, &result)
		if err != nil {
			if errs.IsTransient(err) {
				log.Warn("skipping link after transient failure", "type", l.Type, "error", err)
				result.LinksSkipped++
				continue
			}
			var shortfall *errs.InsufficientFundsError
			if errors.As(err, &shortfall) {
				result.Aborted = true
				result.AbortReason = "insufficient funds"
				log.Warn("sync cycle aborted",
					"reason", result.AbortReason,
					"required", shortfall.Required,
					"available", shortfall.Available,
				)
				return result, shortfall
			}
			return result, fmt.Errorf("reconcile %s: %w", l.Type, err)
		}
		result.LinksChecked++
	}

	log.Info("sync cycle finished",
		"checked", result.LinksChecked,
		"deposits", result.Deposits,
		"withdrawals", result.Withdrawals,
		"moved", result.AmountMoved,
	)
	return result, nil
}

// reconcileLink runs one link through the state machine and executes the
// decision.
func (s *syncService) reconcileLink(ctx context.Context, money *models.MoneyLink, agg *aggregate, link *models.CreditLink, override bool, cooldownFor time.Duration, result *dto.CycleResult) error {
	log := logger.FromContext(ctx)

	// Re-read persisted state: an earlier phase of this cycle, or a portal
	// action, may have touched it since the links were listed.
	fresh, err := s.links.GetCreditLink(ctx, link.Type)
	if err != nil {
		return err
	}

	decision := Reconcile(ReconcileInput{
		PrevBalance: fresh.PrevBalance,
		CardBalance: agg.cardBalances[link.Type],
		PotBalance:  agg.potBalances[fresh.PotID],
		Cooldown:    fresh.Cooldown,
		Now:         s.clockNow(),
		CooldownFor: cooldownFor,
		Override:    override,
	})

	log.Info("reconciled link",
		"type", link.Type,
		"card_balance", agg.cardBalances[link.Type],
		"pot_balance", agg.potBalances[fresh.PotID],
		"prev_balance", fresh.PrevBalance,
		"reason", decision.Reason,
	)

	selection := agg.selections[fresh.PotID]
	newPrev := decision.NewPrevBalance

	switch decision.Action {
	case ActionDeposit:
		if err := s.executeDeposit(ctx, money, fresh, selection, decision.Amount); err != nil {
			return err
		}
		result.Deposits++
		result.AmountMoved += decision.Amount
	case ActionWithdraw:
		err := s.money.Withdraw(ctx, money.Credential.AccessToken, fresh.PotID, selection, decision.Amount, s.newDedupeID())
		if err != nil {
			return err
		}
		result.Withdrawals++
		result.AmountMoved += decision.Amount
	}

	if decision.Action != ActionNone {
		// Re-read the pot so links sharing it reconcile against the moved
		// balance, and so an expiry deposit can rebase on what actually landed.
		balance, err := s.money.PotBalance(ctx, money.Credential.AccessToken, fresh.PotID)
		if err != nil {
			return err
		}
		agg.potBalances[fresh.PotID] = balance
		if decision.RebaseToPot {
			newPrev = balance
		}
	}

	if decision.Entered {
		result.CooldownsBegun++
	}
	if decision.Cleared {
		result.CooldownsEnded++
	}

	return s.links.UpdateSyncState(ctx, fresh.Type, newPrev, decision.Cooldown)
}

// executeDeposit checks the funding account can cover the amount before
// moving anything. On a shortfall it disables sync, posts a single feed
// notification, and returns an InsufficientFundsError that ends the cycle.
func (s *syncService) executeDeposit(ctx context.Context, money *models.MoneyLink, link *models.CreditLink, selection models.AccountSelection, amount int64) error {
	log := logger.FromContext(ctx)

	available, err := s.money.Balance(ctx, money.Credential.AccessToken, selection)
	if err != nil {
		return err
	}
	if available < amount {
		log.Warn("insufficient funds for deposit",
			"type", link.Type,
			"required", amount,
			"available", available,
		)
		if err := s.settings.Save(ctx, models.SettingEnableSync, "false"); err != nil {
			return err
		}
		body := fmt.Sprintf("Pot sync needs £%.2f but only £%.2f is available. Syncing is paused until you re-enable it.",
			float64(amount)/100, float64(available)/100)
		if err := s.money.SendFeedItem(ctx, money.Credential.AccessToken, selection, "Pot Sync Paused", body); err != nil {
			log.Error("failed to send insufficient funds notification", "error", err)
		}
		return errs.NewInsufficientFundsError(amount, available)
	}

	return s.money.Deposit(ctx, money.Credential.AccessToken, link.PotID, selection, amount, s.newDedupeID())
}

func abortable(err error) bool {
	if errs.IsTransient(err) || errs.IsPermanentAuth(err) || errs.IsNotFound(err) {
		return true
	}
	var notConfigured *errs.NotConfiguredError
	return errors.As(err, &notConfigured)
}
