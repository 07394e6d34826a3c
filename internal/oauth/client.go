package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
)

// credentialSource yields the OAuth app registration for a provider family.
type credentialSource interface {
	ClientCredentials(ctx context.Context, prefix string) (clientID, clientSecret string, err error)
}

// Client performs authorization-code exchange and refresh-token grants for
// any provider in the catalog.
type Client struct {
	httpClient *http.Client
	creds      credentialSource
	baseURL    string

	// tokenURLOverride lets tests aim token requests at a stub.
	tokenURLOverride string
}

func NewClient(creds credentialSource, baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		creds:      creds,
		baseURL:    baseURL,
	}
}

// AuthorizeURL builds the redirect that starts the provider's OAuth flow.
func (c *Client) AuthorizeURL(ctx context.Context, p Provider, now time.Time) (string, error) {
	clientID, _, err := c.creds.ClientCredentials(ctx, p.SecretPrefix)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(clientID, c.baseURL, now), nil
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, p Provider, code string) (dto.TokenResponse, error) {
	clientID, clientSecret, err := c.creds.ClientCredentials(ctx, p.SecretPrefix)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.baseURL + p.CallbackPath},
	}
	return c.tokenRequest(ctx, p, form)
}

// Refresh trades a refresh token for a fresh token pair. A rejection here is
// permanent: the user revoked access or the consent expired.
func (c *Client) Refresh(ctx context.Context, p Provider, refreshToken string) (dto.TokenResponse, error) {
	clientID, clientSecret, err := c.creds.ClientCredentials(ctx, p.SecretPrefix)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.tokenRequest(ctx, p, form)
}

// RefreshByType is Refresh with the provider resolved from a link type.
func (c *Client) RefreshByType(ctx context.Context, linkType, refreshToken string) (dto.TokenResponse, error) {
	p, err := Lookup(linkType)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	return c.Refresh(ctx, p, refreshToken)
}

func (c *Client) tokenRequest(ctx context.Context, p Provider, form url.Values) (dto.TokenResponse, error) {
	var tokens dto.TokenResponse

	tokenURL := p.TokenURL
	if c.tokenURLOverride != "" {
		tokenURL = c.tokenURLOverride
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokens, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokens, errs.NewUnavailableError(p.Type, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return tokens, errs.NewUnavailableError(p.Type, fmt.Sprintf("token endpoint unavailable (%d)", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return tokens, errs.NewAuthError(p.Type, fmt.Sprintf("token grant rejected (%d)", resp.StatusCode), true)
	}

	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return tokens, errs.NewAuthError(p.Type, "no access token in token response", true)
	}
	if tokens.AccessToken == "" {
		return tokens, errs.NewAuthError(p.Type, "no access token in token response", true)
	}
	return tokens, nil
}
