package monzoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
)

const (
	defaultBaseURL = "https://api.monzo.com"
	defaultTimeout = 30 * time.Second

	accountTypePersonal = "uk_retail"
	accountTypeJoint    = "uk_retail_joint"
)

// Adapter wraps the Monzo REST API. Every method takes the link's access
// token explicitly: tokens rotate per link and the adapter itself stays
// stateless.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
}

func NewAdapter() *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
}

// NewAdapterWithBaseURL is used by tests to point the adapter at a stub.
func NewAdapterWithBaseURL(baseURL string) *Adapter {
	a := NewAdapter()
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

// Ping verifies the token is live.
func (a *Adapter) Ping(ctx context.Context, token string) error {
	return a.get(ctx, token, "/ping/whoami", nil, nil)
}

// Accounts returns the open current accounts on the connection.
func (a *Adapter) Accounts(ctx context.Context, token string) ([]dto.MonzoAccount, error) {
	var resp dto.MonzoAccountsResponse
	if err := a.get(ctx, token, "/accounts", nil, &resp); err != nil {
		return nil, err
	}
	open := make([]dto.MonzoAccount, 0, len(resp.Accounts))
	for _, acc := range resp.Accounts {
		if !acc.Closed {
			open = append(open, acc)
		}
	}
	return open, nil
}

// AccountID resolves the funding selection to a concrete account ID.
func (a *Adapter) AccountID(ctx context.Context, token string, sel models.AccountSelection) (string, error) {
	accounts, err := a.Accounts(ctx, token)
	if err != nil {
		return "", err
	}
	want := accountTypePersonal
	if sel == models.SelectJoint {
		want = accountTypeJoint
	}
	for _, acc := range accounts {
		if acc.Type == want {
			return acc.ID, nil
		}
	}
	// fall back to the first open account rather than failing a sync over a
	// missing joint account
	if len(accounts) > 0 {
		return accounts[0].ID, nil
	}
	return "", errs.NewNotConfiguredError("no open monzo account on connection")
}

// Balance returns the funding account's available balance in minor units.
func (a *Adapter) Balance(ctx context.Context, token string, sel models.AccountSelection) (int64, error) {
	accountID, err := a.AccountID(ctx, token, sel)
	if err != nil {
		return 0, err
	}
	var resp dto.MonzoBalanceResponse
	q := url.Values{"account_id": {accountID}}
	if err := a.get(ctx, token, "/balance", q, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Pots lists the live pots across all open accounts.
func (a *Adapter) Pots(ctx context.Context, token string) ([]models.Pot, error) {
	accounts, err := a.Accounts(ctx, token)
	if err != nil {
		return nil, err
	}

	var pots []models.Pot
	for _, acc := range accounts {
		var resp dto.MonzoPotsResponse
		q := url.Values{"current_account_id": {acc.ID}}
		if err := a.get(ctx, token, "/pots", q, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Pots {
			if p.Deleted {
				continue
			}
			pots = append(pots, models.Pot{
				ID:       p.ID,
				Name:     p.Name,
				Balance:  p.Balance,
				Currency: p.Currency,
			})
		}
	}
	return pots, nil
}

// PotBalance returns one pot's balance in minor units.
func (a *Adapter) PotBalance(ctx context.Context, token, potID string) (int64, error) {
	pots, err := a.Pots(ctx, token)
	if err != nil {
		return 0, err
	}
	for _, p := range pots {
		if p.ID == potID {
			return p.Balance, nil
		}
	}
	return 0, errs.NewNotFoundError(fmt.Sprintf("pot %s not found on monzo connection", potID))
}

// SelectionForPot reports which current account owns the pot, so deposits and
// withdrawals move money against the right funding account.
func (a *Adapter) SelectionForPot(ctx context.Context, token, potID string) (models.AccountSelection, error) {
	accounts, err := a.Accounts(ctx, token)
	if err != nil {
		return models.SelectPersonal, err
	}
	for _, acc := range accounts {
		var resp dto.MonzoPotsResponse
		q := url.Values{"current_account_id": {acc.ID}}
		if err := a.get(ctx, token, "/pots", q, &resp); err != nil {
			return models.SelectPersonal, err
		}
		for _, p := range resp.Pots {
			if p.ID == potID && !p.Deleted {
				if acc.Type == accountTypeJoint {
					return models.SelectJoint, nil
				}
				return models.SelectPersonal, nil
			}
		}
	}
	return models.SelectPersonal, errs.NewNotFoundError(fmt.Sprintf("pot %s not owned by any open account", potID))
}

// Deposit moves amount from the selected account into the pot. The dedupe ID
// makes the call idempotent on Monzo's side for retried cycles.
func (a *Adapter) Deposit(ctx context.Context, token, potID string, sel models.AccountSelection, amount int64, dedupeID string) error {
	accountID, err := a.AccountID(ctx, token, sel)
	if err != nil {
		return err
	}
	form := url.Values{
		"source_account_id": {accountID},
		"amount":            {strconv.FormatInt(amount, 10)},
		"dedupe_id":         {dedupeID},
	}
	return a.putForm(ctx, token, "/pots/"+potID+"/deposit", form)
}

// Withdraw moves amount from the pot back to the selected account.
func (a *Adapter) Withdraw(ctx context.Context, token, potID string, sel models.AccountSelection, amount int64, dedupeID string) error {
	accountID, err := a.AccountID(ctx, token, sel)
	if err != nil {
		return err
	}
	form := url.Values{
		"destination_account_id": {accountID},
		"amount":                 {strconv.FormatInt(amount, 10)},
		"dedupe_id":              {dedupeID},
	}
	return a.putForm(ctx, token, "/pots/"+potID+"/withdraw", form)
}

// SendFeedItem posts a notification into the account's Monzo feed.
func (a *Adapter) SendFeedItem(ctx context.Context, token string, sel models.AccountSelection, title, body string) error {
	accountID, err := a.AccountID(ctx, token, sel)
	if err != nil {
		return err
	}
	form := url.Values{
		"account_id":     {accountID},
		"type":           {"basic"},
		"params[title]":  {title},
		"params[body]":   {body},
	}
	return a.postForm(ctx, token, "/feed", form)
}

// --- transport helpers ---

func (a *Adapter) get(ctx context.Context, token, path string, query url.Values, out any) error {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return a.do(req, token, out)
}

func (a *Adapter) putForm(ctx context.Context, token, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, token, nil)
}

func (a *Adapter) postForm(ctx context.Context, token, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, token, nil)
}

func (a *Adapter) do(req *http.Request, token string, out any) error {
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errs.NewUnavailableError(models.ProviderMonzo, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.NewAuthError(models.ProviderMonzo, fmt.Sprintf("monzo rejected credentials (%d)", resp.StatusCode), true)
	case resp.StatusCode >= 500:
		return errs.NewUnavailableError(models.ProviderMonzo, fmt.Sprintf("monzo unavailable (%d)", resp.StatusCode))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("monzo request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
