package truelayerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
)

const (
	defaultBaseURL = "https://api.truelayer.com"
	defaultTimeout = 30 * time.Second
)

// Adapter wraps the TrueLayer data API, through which every supported card
// issuer is read. The provider type only matters for error attribution; the
// wire format is the same for all issuers.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	provider   string
}

func NewAdapter(provider string) *Adapter {
	return &Adapter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		provider:   provider,
	}
}

// NewAdapterWithBaseURL is used by tests to point the adapter at a stub.
func NewAdapterWithBaseURL(provider, baseURL string) *Adapter {
	a := NewAdapter(provider)
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

// Ping verifies the token is live.
func (a *Adapter) Ping(ctx context.Context, token string) error {
	return a.get(ctx, token, "/data/v1/me", nil)
}

// Cards lists the cards visible on the connection.
func (a *Adapter) Cards(ctx context.Context, token string) ([]dto.TrueLayerCard, error) {
	var resp dto.TrueLayerCardsResponse
	if err := a.get(ctx, token, "/data/v1/cards", &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CardBalance returns one card's current balance in minor units. TrueLayer
// reports major units; the current figure already folds in pending
// transactions the way each issuer settles them.
func (a *Adapter) CardBalance(ctx context.Context, token, cardID string) (int64, error) {
	var resp dto.TrueLayerBalanceResponse
	if err := a.get(ctx, token, "/data/v1/cards/"+cardID+"/balance", &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("truelayer returned no balance for card %s", cardID)
	}
	return int64(math.Round(resp.Results[0].Current * 100)), nil
}

// TotalBalance sums the balances of every card on the connection.
func (a *Adapter) TotalBalance(ctx context.Context, token string) (int64, error) {
	cards, err := a.Cards(ctx, token)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, card := range cards {
		balance, err := a.CardBalance(ctx, token, card.AccountID)
		if err != nil {
			return 0, err
		}
		total += balance
	}
	return total, nil
}

func (a *Adapter) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errs.NewUnavailableError(a.provider, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return a.classify(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classify separates a revoked consent from the issuer being down. TrueLayer
// signals the latter with provider_error or an "currently unavailable"
// description, which must not tear the link down.
func (a *Adapter) classify(resp *http.Response) error {
	var payload dto.TrueLayerError
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	if payload.Error == "provider_error" || strings.Contains(payload.ErrorDescription, "currently unavailable") {
		return errs.NewUnavailableError(a.provider, fmt.Sprintf("issuer unavailable via truelayer: %s", payload.ErrorDescription))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.NewAuthError(a.provider, fmt.Sprintf("truelayer rejected credentials (%d): %s", resp.StatusCode, payload.Error), true)
	}
	if resp.StatusCode >= 500 {
		return errs.NewUnavailableError(a.provider, fmt.Sprintf("truelayer unavailable (%d)", resp.StatusCode))
	}
	return fmt.Errorf("truelayer request failed (%d): %s", resp.StatusCode, payload.Error)
}
