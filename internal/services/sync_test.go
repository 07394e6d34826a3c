package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/pkg/helpers"
)

// --- fakes ---

type movement struct {
	potID    string
	amount   int64
	dedupeID string
}

type fakeMoney struct {
	balance     int64
	potBalances map[string]int64
	selections  map[string]models.AccountSelection
	pots        []models.Pot

	deposits     []movement
	withdrawals  []movement
	feedTitles   []string
	balanceCalls int

	pingErr    error
	depositErr error
}

func (f *fakeMoney) Ping(ctx context.Context, token string) error { return f.pingErr }

func (f *fakeMoney) Pots(ctx context.Context, token string) ([]models.Pot, error) {
	return f.pots, nil
}

func (f *fakeMoney) AccountID(ctx context.Context, token string, sel models.AccountSelection) (string, error) {
	return "acc-" + string(sel), nil
}

func (f *fakeMoney) Balance(ctx context.Context, token string, sel models.AccountSelection) (int64, error) {
	f.balanceCalls++
	return f.balance, nil
}

func (f *fakeMoney) PotBalance(ctx context.Context, token, potID string) (int64, error) {
	return f.potBalances[potID], nil
}

func (f *fakeMoney) SelectionForPot(ctx context.Context, token, potID string) (models.AccountSelection, error) {
	if sel, ok := f.selections[potID]; ok {
		return sel, nil
	}
	return models.SelectPersonal, nil
}

func (f *fakeMoney) Deposit(ctx context.Context, token, potID string, sel models.AccountSelection, amount int64, dedupeID string) error {
	if f.depositErr != nil {
		return f.depositErr
	}
	f.deposits = append(f.deposits, movement{potID, amount, dedupeID})
	f.potBalances[potID] += amount
	return nil
}

func (f *fakeMoney) Withdraw(ctx context.Context, token, potID string, sel models.AccountSelection, amount int64, dedupeID string) error {
	f.withdrawals = append(f.withdrawals, movement{potID, amount, dedupeID})
	f.potBalances[potID] -= amount
	return nil
}

func (f *fakeMoney) SendFeedItem(ctx context.Context, token string, sel models.AccountSelection, title, body string) error {
	f.feedTitles = append(f.feedTitles, title)
	return nil
}

type fakeCard struct {
	balance    int64
	pingErr    error
	balanceErr error
}

func (f *fakeCard) Ping(ctx context.Context, token string) error { return f.pingErr }

func (f *fakeCard) TotalBalance(ctx context.Context, token string) (int64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

type fakeCards struct {
	byType map[string]*fakeCard
}

func (f *fakeCards) client(linkType string) CardClient { return f.byType[linkType] }

type syncState struct {
	linkType    string
	prevBalance int64
	cooldown    *models.Cooldown
}

type fakeLinkStore struct {
	money  *models.MoneyLink
	credit map[string]models.CreditLink
	order  []string

	deleted    []string
	syncStates []syncState
	potUpdates []string // "type=potID"
	selection  models.AccountSelection
}

func (f *fakeLinkStore) GetMoneyLink(ctx context.Context) (*models.MoneyLink, error) {
	if f.money == nil {
		return nil, errs.NewNotFoundError("no money link")
	}
	return f.money, nil
}

func (f *fakeLinkStore) GetCreditLinks(ctx context.Context) ([]*models.CreditLink, error) {
	links := make([]*models.CreditLink, 0, len(f.order))
	for _, typ := range f.order {
		if l, ok := f.credit[typ]; ok {
			cp := l
			links = append(links, &cp)
		}
	}
	return links, nil
}

func (f *fakeLinkStore) GetCreditLink(ctx context.Context, linkType string) (*models.CreditLink, error) {
	l, ok := f.credit[linkType]
	if !ok {
		return nil, errs.NewNotFoundError("no link " + linkType)
	}
	return &l, nil
}

func (f *fakeLinkStore) SaveMoneyLink(ctx context.Context, link *models.MoneyLink) error {
	f.money = link
	return nil
}

func (f *fakeLinkStore) SaveCreditLink(ctx context.Context, link *models.CreditLink) error {
	f.credit[link.Type] = *link
	return nil
}

func (f *fakeLinkStore) Delete(ctx context.Context, linkType string) error {
	f.deleted = append(f.deleted, linkType)
	delete(f.credit, linkType)
	return nil
}

func (f *fakeLinkStore) UpdatePot(ctx context.Context, linkType, potID string) error {
	l := f.credit[linkType]
	l.PotID = potID
	f.credit[linkType] = l
	f.potUpdates = append(f.potUpdates, linkType+"="+potID)
	return nil
}

func (f *fakeLinkStore) UpdateSelection(ctx context.Context, sel models.AccountSelection) error {
	f.selection = sel
	if f.money != nil {
		f.money.Selection = sel
	}
	return nil
}

func (f *fakeLinkStore) UpdateSyncState(ctx context.Context, linkType string, prevBalance int64, cooldown *models.Cooldown) error {
	f.syncStates = append(f.syncStates, syncState{linkType, prevBalance, cooldown})
	l := f.credit[linkType]
	l.PrevBalance = prevBalance
	l.Cooldown = cooldown
	f.credit[linkType] = l
	return nil
}

type fakeSettingStore struct {
	values map[string]string
	saved  []string // "key=value"
}

func (f *fakeSettingStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return models.DefaultSettings[key], nil
}

func (f *fakeSettingStore) GetBool(ctx context.Context, key string) (bool, error) {
	v, _ := f.Get(ctx, key)
	return v == "true", nil
}

func (f *fakeSettingStore) GetInt(ctx context.Context, key string) (int, error) {
	v, _ := f.Get(ctx, key)
	return strconv.Atoi(v)
}

func (f *fakeSettingStore) Save(ctx context.Context, key, value string) error {
	f.values[key] = value
	f.saved = append(f.saved, key+"="+value)
	return nil
}

func (f *fakeSettingStore) All(ctx context.Context) ([]models.Setting, error) {
	settings := make([]models.Setting, 0, len(models.DefaultSettings))
	for key := range models.DefaultSettings {
		v, _ := f.Get(context.Background(), key)
		settings = append(settings, models.Setting{Key: key, Value: v})
	}
	return settings, nil
}

type fakeLock struct {
	held     bool
	acquires int
	releases int
}

func (f *fakeLock) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(ctx context.Context, name, owner string) error {
	f.releases++
	f.held = false
	return nil
}

type fakeRefresher struct {
	token     dto.TokenResponse
	err       error
	refreshed []string
}

func (f *fakeRefresher) RefreshByType(ctx context.Context, linkType, refreshToken string) (dto.TokenResponse, error) {
	f.refreshed = append(f.refreshed, linkType)
	if f.err != nil {
		return dto.TokenResponse{}, f.err
	}
	return f.token, nil
}

// --- fixtures ---

var testNow = time.Unix(1_700_000_000, 0)

func freshCred() models.Credential {
	return models.Credential{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenExpiry:  testNow.Add(24 * time.Hour).Unix(),
	}
}

func newTestEngine(links *fakeLinkStore, settings *fakeSettingStore, money *fakeMoney, cards *fakeCards, auth *fakeRefresher) *syncService {
	svc := NewSyncService(links, settings, money, cards.client, auth, &fakeLock{})
	svc.clockNow = func() time.Time { return testNow }
	count := 0
	svc.newDedupeID = func() string {
		count++
		return fmt.Sprintf("dedupe-%d", count)
	}
	return svc
}

func singleLinkFixture(prev, card, pot int64, cooldown *models.Cooldown) (*fakeLinkStore, *fakeSettingStore, *fakeMoney, *fakeCards, *fakeRefresher) {
	links := &fakeLinkStore{
		money: &models.MoneyLink{Type: models.ProviderMonzo, Credential: freshCred(), Selection: models.SelectPersonal},
		credit: map[string]models.CreditLink{
			models.ProviderAmex: {Type: models.ProviderAmex, Credential: freshCred(), PotID: "pot-1", PrevBalance: prev, Cooldown: cooldown},
		},
		order: []string{models.ProviderAmex},
	}
	settings := &fakeSettingStore{values: map[string]string{}}
	money := &fakeMoney{
		balance:     100_000,
		potBalances: map[string]int64{"pot-1": pot},
	}
	cards := &fakeCards{byType: map[string]*fakeCard{
		models.ProviderAmex: {balance: card},
	}}
	return links, settings, money, cards, &fakeRefresher{}
}

// --- tests ---

func TestRunCycleUnchangedBalancesMovesNothing(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 1000, nil)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 0 || len(money.withdrawals) != 0 {
		t.Fatalf("expected no movements, got %v %v", money.deposits, money.withdrawals)
	}
	if res.LinksChecked != 1 || res.AmountMoved != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCycleDepositsCardIncrease(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 1 || money.deposits[0].amount != 500 {
		t.Fatalf("expected one deposit of 500, got %v", money.deposits)
	}
	if money.deposits[0].dedupeID == "" {
		t.Fatal("deposit must carry a dedupe token")
	}
	if got := links.credit[models.ProviderAmex].PrevBalance; got != 1500 {
		t.Fatalf("expected prev balance persisted as 1500, got %d", got)
	}
	if res.Deposits != 1 || res.AmountMoved != 500 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCycleWithdrawsCardDecrease(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1500, 900, 1500, nil)
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.withdrawals) != 1 || money.withdrawals[0].amount != 600 {
		t.Fatalf("expected one withdrawal of 600, got %v", money.withdrawals)
	}
	if got := links.credit[models.ProviderAmex].PrevBalance; got != 900 {
		t.Fatalf("expected prev balance persisted as 900, got %d", got)
	}
}

func TestRunCyclePotDropEntersCooldownWithoutMoving(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 800, nil)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 0 || len(money.withdrawals) != 0 {
		t.Fatalf("cooldown entry must not move money, got %v %v", money.deposits, money.withdrawals)
	}
	link := links.credit[models.ProviderAmex]
	if link.Cooldown == nil {
		t.Fatal("expected a cooldown persisted")
	}
	if link.Cooldown.Baseline != 1000 {
		t.Fatalf("expected baseline 1000, got %d", link.Cooldown.Baseline)
	}
	if link.Cooldown.Until != testNow.Add(3*time.Hour).Unix() {
		t.Fatalf("expected default 3h deadline, got %d", link.Cooldown.Until)
	}
	if link.PrevBalance != 1000 {
		t.Fatalf("prev balance must not move, got %d", link.PrevBalance)
	}
	if res.CooldownsBegun != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCycleExpiredCooldownDepositsResidual(t *testing.T) {
	cd := &models.Cooldown{Until: testNow.Add(-time.Minute).Unix(), Baseline: 1000, PendingDrop: 200}
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 800, cd)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 1 || money.deposits[0].amount != 200 {
		t.Fatalf("expected deposit of residual 200, got %v", money.deposits)
	}
	link := links.credit[models.ProviderAmex]
	if link.Cooldown != nil {
		t.Fatal("expected cooldown cleared")
	}
	if link.PrevBalance != 1000 {
		t.Fatalf("expected prev balance rebased to post-deposit pot 1000, got %d", link.PrevBalance)
	}
	if res.CooldownsEnded != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCycleEarlyClearWhenPotRecovers(t *testing.T) {
	cd := &models.Cooldown{Until: testNow.Add(time.Hour).Unix(), Baseline: 1000, PendingDrop: 200}
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 1000, cd)
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 0 || len(money.withdrawals) != 0 {
		t.Fatal("early clear must not move money")
	}
	if links.credit[models.ProviderAmex].Cooldown != nil {
		t.Fatal("expected cooldown cleared")
	}
}

func TestRunCycleOverrideDepositKeepsCooldown(t *testing.T) {
	cd := &models.Cooldown{Until: testNow.Add(time.Hour).Unix(), Baseline: 1000, PendingDrop: 200}
	links, settings, money, cards, auth := singleLinkFixture(1000, 1050, 800, cd)
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.deposits) != 1 || money.deposits[0].amount != 50 {
		t.Fatalf("expected deposit of the increase only, got %v", money.deposits)
	}
	link := links.credit[models.ProviderAmex]
	if link.Cooldown == nil || link.Cooldown.Until != cd.Until || link.Cooldown.Baseline != 1000 {
		t.Fatalf("cooldown must survive an override deposit, got %+v", link.Cooldown)
	}
	if link.PrevBalance != 1050 {
		t.Fatalf("expected prev balance 1050, got %d", link.PrevBalance)
	}
}

func TestRunCycleInsufficientFundsPausesSync(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	money.balance = 300 // deposit needs 500
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	var shortfall *errs.InsufficientFundsError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
	if shortfall.Required != 500 || shortfall.Available != 300 {
		t.Fatalf("unexpected shortfall %+v", shortfall)
	}
	if len(money.deposits) != 0 {
		t.Fatalf("no deposit may happen on a shortfall, got %v", money.deposits)
	}
	if !res.Aborted || res.AbortReason != "insufficient funds" {
		t.Fatalf("expected aborted cycle, got %+v", res)
	}
	if v := settings.values[models.SettingEnableSync]; v != "false" {
		t.Fatalf("expected sync disabled, got %q", v)
	}
	if len(money.feedTitles) != 1 {
		t.Fatalf("expected exactly one notification, got %v", money.feedTitles)
	}
	if len(links.syncStates) != 0 {
		t.Fatalf("no sync state may be written after an abort, got %v", links.syncStates)
	}

	// the next cycle sees sync disabled and does nothing further
	res, err = svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Aborted || res.AbortReason != "sync disabled" {
		t.Fatalf("expected disabled cycle, got %+v", res)
	}
	if len(money.feedTitles) != 1 {
		t.Fatalf("notification must not repeat, got %v", money.feedTitles)
	}
}

func TestRunCycleWithdrawalIgnoresFundingBalance(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1500, 900, 1500, nil)
	money.balance = 0 // only deposits are funds-checked
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(money.withdrawals) != 1 || money.withdrawals[0].amount != 600 {
		t.Fatalf("expected the withdrawal regardless of funding balance, got %v", money.withdrawals)
	}
	if money.balanceCalls != 0 {
		t.Fatalf("a withdrawal must not read the funding balance, got %d calls", money.balanceCalls)
	}
	if v := settings.values[models.SettingEnableSync]; v == "false" {
		t.Fatal("a withdrawal must not pause sync")
	}
	if len(money.feedTitles) != 0 {
		t.Fatalf("no notification for a withdrawal, got %v", money.feedTitles)
	}
}

func TestRunCycleSkipsWhileAnotherCycleHoldsTheLease(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	svc := newTestEngine(links, settings, money, cards, auth)
	lock := &fakeLock{held: true}
	svc.locks = lock

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Aborted || res.AbortReason != "another cycle is running" {
		t.Fatalf("expected skipped cycle, got %+v", res)
	}
	if len(money.deposits) != 0 || len(links.syncStates) != 0 {
		t.Fatal("a skipped cycle must not touch provider or store state")
	}
	if lock.releases != 0 {
		t.Fatal("must not release a lease it never held")
	}
}

func TestRunCycleReleasesLeaseWhenDone(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 1000, nil)
	svc := newTestEngine(links, settings, money, cards, auth)
	lock := &fakeLock{}
	svc.locks = lock

	if _, err := svc.RunCycle(helpers.TestCtx()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lock.acquires != 1 || lock.releases != 1 || lock.held {
		t.Fatalf("lease not released: %+v", lock)
	}
}

func TestRunCycleDisabledSyncStillChecksHealth(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	settings.values[models.SettingEnableSync] = "false"
	cards.byType[models.ProviderAmex].pingErr = errs.NewAuthError(models.ProviderAmex, "revoked", true)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LinksRemoved != 1 {
		t.Fatalf("health checks must run even with sync disabled, got %+v", res)
	}
	if len(money.deposits) != 0 {
		t.Fatal("no movement with sync disabled")
	}
}

func TestRunCyclePermanentAuthFailureRemovesLinkAndNotifies(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	cards.byType[models.ProviderAmex].pingErr = errs.NewAuthError(models.ProviderAmex, "revoked", true)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links.deleted) != 1 || links.deleted[0] != models.ProviderAmex {
		t.Fatalf("expected link removed, got %v", links.deleted)
	}
	if len(money.feedTitles) != 1 {
		t.Fatalf("expected a disconnect notification, got %v", money.feedTitles)
	}
	if res.LinksRemoved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunCycleTransientFailureSkipsWithoutRemoving(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	cards.byType[models.ProviderAmex].pingErr = errs.NewUnavailableError(models.ProviderAmex, "currently unavailable")
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links.deleted) != 0 {
		t.Fatalf("transient failure must not remove the link, got %v", links.deleted)
	}
	if len(money.deposits) != 0 {
		t.Fatal("skipped link must not be reconciled")
	}
	if _, ok := links.credit[models.ProviderAmex]; !ok {
		t.Fatal("link must survive a transient failure")
	}
}

func TestRunCycleUnassignedPotSkipsLink(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1500, 1000, nil)
	l := links.credit[models.ProviderAmex]
	l.PotID = ""
	links.credit[models.ProviderAmex] = l
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LinksSkipped != 1 || len(money.deposits) != 0 {
		t.Fatalf("unconfigured link must be skipped, got %+v", res)
	}
}

func TestRunCycleSharedPotSeesMovedBalance(t *testing.T) {
	links := &fakeLinkStore{
		money: &models.MoneyLink{Type: models.ProviderMonzo, Credential: freshCred(), Selection: models.SelectPersonal},
		credit: map[string]models.CreditLink{
			models.ProviderAmex:    {Type: models.ProviderAmex, Credential: freshCred(), PotID: "pot-1", PrevBalance: 1000},
			models.ProviderHalifax: {Type: models.ProviderHalifax, Credential: freshCred(), PotID: "pot-1", PrevBalance: 500},
		},
		order: []string{models.ProviderAmex, models.ProviderHalifax},
	}
	settings := &fakeSettingStore{values: map[string]string{}}
	money := &fakeMoney{balance: 100_000, potBalances: map[string]int64{"pot-1": 1500}}
	cards := &fakeCards{byType: map[string]*fakeCard{
		models.ProviderAmex:    {balance: 1300}, // rose by 300
		models.ProviderHalifax: {balance: 500},  // unchanged
	}}
	svc := newTestEngine(links, settings, money, cards, &fakeRefresher{})

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Amex deposits against the shared pot; Halifax must then reconcile
	// against the topped-up balance rather than entering a spurious state.
	if res.Deposits != 1 {
		t.Fatalf("expected one deposit, got %+v", res)
	}
	if res.CooldownsBegun != 0 {
		t.Fatalf("second link must see the refreshed pot balance, got %+v", res)
	}
}

func TestRunCycleNoMoneyLinkAborts(t *testing.T) {
	links := &fakeLinkStore{credit: map[string]models.CreditLink{}}
	settings := &fakeSettingStore{values: map[string]string{}}
	money := &fakeMoney{potBalances: map[string]int64{}}
	cards := &fakeCards{byType: map[string]*fakeCard{}}
	svc := newTestEngine(links, settings, money, cards, &fakeRefresher{})

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("missing configuration is not an error: %v", err)
	}
	if !res.Aborted {
		t.Fatalf("expected aborted cycle, got %+v", res)
	}
}

func TestRunCycleRefreshesExpiringTokens(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 1000, nil)
	l := links.credit[models.ProviderAmex]
	l.Credential.TokenExpiry = testNow.Add(30 * time.Second).Unix()
	links.credit[models.ProviderAmex] = l
	auth.token = dto.TokenResponse{AccessToken: "new-at", RefreshToken: "new-rt", ExpiresIn: 3600}
	svc := newTestEngine(links, settings, money, cards, auth)

	_, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(auth.refreshed) != 1 || auth.refreshed[0] != models.ProviderAmex {
		t.Fatalf("expected one refresh for amex, got %v", auth.refreshed)
	}
	cred := links.credit[models.ProviderAmex].Credential
	if cred.AccessToken != "new-at" || cred.RefreshToken != "new-rt" {
		t.Fatalf("refreshed credential not persisted, got %+v", cred)
	}
	if cred.TokenExpiry != testNow.Unix()+3600 {
		t.Fatalf("unexpected expiry %d", cred.TokenExpiry)
	}
}

func TestRunCycleRefreshRejectionRemovesLink(t *testing.T) {
	links, settings, money, cards, auth := singleLinkFixture(1000, 1000, 1000, nil)
	l := links.credit[models.ProviderAmex]
	l.Credential.TokenExpiry = testNow.Unix()
	links.credit[models.ProviderAmex] = l
	auth.err = errs.NewAuthError(models.ProviderAmex, "invalid_grant", true)
	svc := newTestEngine(links, settings, money, cards, auth)

	res, err := svc.RunCycle(helpers.TestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links.deleted) != 1 {
		t.Fatalf("expected link removed after refresh rejection, got %v", links.deleted)
	}
	if res.LinksRemoved != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
