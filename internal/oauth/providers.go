package oauth

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/models"
)

const (
	// secret prefixes group providers that share one OAuth app registration
	prefixMonzo     = "monzo"
	prefixTrueLayer = "truelayer"

	truelayerScopes = "accounts balance cards offline_access"
)

// Provider describes one connectable OAuth provider: where to send the user,
// where to trade codes and refresh tokens, and which extra parameters the
// authorization request needs.
type Provider struct {
	Type         string
	DisplayName  string
	IconName     string
	AuthURL      string
	TokenURL     string
	SecretPrefix string
	CallbackPath string
	IsMoney      bool

	// extraParams are provider-specific authorization-request additions, e.g.
	// TrueLayer's issuer filter.
	extraParams url.Values
}

// Catalog returns every supported provider keyed by type. The four card
// issuers all ride the shared TrueLayer app registration.
func Catalog() map[string]Provider {
	truelayer := func(typ, name, icon, issuerFilter string) Provider {
		return Provider{
			Type:         typ,
			DisplayName:  name,
			IconName:     icon,
			AuthURL:      "https://auth.truelayer.com",
			TokenURL:     "https://auth.truelayer.com/connect/token",
			SecretPrefix: prefixTrueLayer,
			CallbackPath: "/auth/callback/truelayer",
			extraParams: url.Values{
				"providers": {issuerFilter},
				"scope":     {truelayerScopes},
			},
		}
	}

	return map[string]Provider{
		models.ProviderMonzo: {
			Type:         models.ProviderMonzo,
			DisplayName:  "Monzo",
			IconName:     "monzo.svg",
			AuthURL:      "https://auth.monzo.com",
			TokenURL:     "https://api.monzo.com/oauth2/token",
			SecretPrefix: prefixMonzo,
			CallbackPath: "/auth/callback/monzo",
			IsMoney:      true,
			extraParams:  url.Values{"response_mode": {"form_post"}},
		},
		models.ProviderAmex:        truelayer(models.ProviderAmex, "American Express", "amex.svg", "uk-ob-amex"),
		models.ProviderBarclaycard: truelayer(models.ProviderBarclaycard, "Barclaycard", "barclaycard.svg", "uk-ob-barclaycard"),
		models.ProviderHalifax:     truelayer(models.ProviderHalifax, "Halifax", "halifax.svg", "uk-ob-halifax"),
		models.ProviderNatWest:     truelayer(models.ProviderNatWest, "NatWest", "natwest.svg", "uk-ob-natwest"),
	}
}

// Lookup resolves a provider type, or fails with the types it knows.
func Lookup(typ string) (Provider, error) {
	p, ok := Catalog()[typ]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider type %q", typ)
	}
	return p, nil
}

// Info returns the catalog as portal-facing metadata, money provider first.
func Info() []dto.ProviderInfo {
	catalog := Catalog()
	infos := make([]dto.ProviderInfo, 0, len(catalog))
	for _, typ := range []string{
		models.ProviderMonzo,
		models.ProviderAmex,
		models.ProviderBarclaycard,
		models.ProviderHalifax,
		models.ProviderNatWest,
	} {
		p := catalog[typ]
		infos = append(infos, dto.ProviderInfo{
			Type:        p.Type,
			DisplayName: p.DisplayName,
			IconName:    p.IconName,
			IsMoney:     p.IsMoney,
		})
	}
	return infos
}

// AuthorizeURL builds the authorization redirect for this provider. The state
// carries the provider type so the shared TrueLayer callback can tell issuers
// apart.
func (p Provider) AuthorizeURL(clientID, baseURL string, now time.Time) string {
	params := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"redirect_uri":  {baseURL + p.CallbackPath},
		"state":         {p.Type + "-" + strconv.FormatInt(now.Unix(), 10)},
	}
	for key, vals := range p.extraParams {
		for _, v := range vals {
			params.Add(key, v)
		}
	}
	return p.AuthURL + "?" + params.Encode()
}

// ProviderFromState recovers the provider type encoded in an OAuth state value.
func ProviderFromState(state string) (Provider, error) {
	for typ, p := range Catalog() {
		if len(state) > len(typ) && state[:len(typ)] == typ && state[len(typ)] == '-' {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("state %q does not name a known provider", state)
}
