package services

import (
	"context"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/internal/oauth"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

type oauthClient interface {
	AuthorizeURL(ctx context.Context, p oauth.Provider, now time.Time) (string, error)
	Exchange(ctx context.Context, p oauth.Provider, code string) (dto.TokenResponse, error)
}

type authLinkStore interface {
	GetMoneyLink(ctx context.Context) (*models.MoneyLink, error)
	GetCreditLink(ctx context.Context, linkType string) (*models.CreditLink, error)
	SaveMoneyLink(ctx context.Context, link *models.MoneyLink) error
	SaveCreditLink(ctx context.Context, link *models.CreditLink) error
}

type oauthAppStore interface {
	SetClientCredentials(ctx context.Context, prefix, clientID, clientSecret string) error
}

type authService struct {
	oauth   oauthClient
	links   authLinkStore
	secrets oauthAppStore

	clockNow func() time.Time
}

func NewAuthService(oauthClient oauthClient, links authLinkStore, secrets oauthAppStore) *authService {
	return &authService{
		oauth:    oauthClient,
		links:    links,
		secrets:  secrets,
		clockNow: time.Now,
	}
}

// Providers lists the connectable providers for the portal's link page.
func (s *authService) Providers() []dto.ProviderInfo {
	return oauth.Info()
}

// BeginAuth returns the authorization redirect for a provider type.
func (s *authService) BeginAuth(ctx context.Context, linkType string) (string, error) {
	p, err := oauth.Lookup(linkType)
	if err != nil {
		return "", errs.NewValidationError(err.Error())
	}
	return s.oauth.AuthorizeURL(ctx, p, s.clockNow())
}

// CompleteAuth finishes an OAuth callback: the state names the provider, the
// code is traded for tokens, and the link is saved. Reconnecting an existing
// credit link keeps its pot assignment and sync state so a re-auth does not
// reset reconciliation.
func (s *authService) CompleteAuth(ctx context.Context, state, code string) (string, error) {
	if code == "" {
		return "", errs.NewValidationError("missing authorization code")
	}
	p, err := oauth.ProviderFromState(state)
	if err != nil {
		return "", errs.NewValidationError(err.Error())
	}

	tokens, err := s.oauth.Exchange(ctx, p, code)
	if err != nil {
		return "", err
	}

	now := s.clockNow()
	cred := models.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenExpiry:  now.Unix() + tokens.ExpiresIn,
	}

	if p.IsMoney {
		link := &models.MoneyLink{
			Type:       p.Type,
			Credential: cred,
			Selection:  models.SelectPersonal,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if existing, err := s.links.GetMoneyLink(ctx); err == nil {
			link.Selection = existing.Selection
			link.CreatedAt = existing.CreatedAt
		} else if !errs.IsNotFound(err) {
			return "", err
		}
		if err := s.links.SaveMoneyLink(ctx, link); err != nil {
			return "", err
		}
		logger.FromContext(ctx).Info("money link connected", "type", p.Type)
		return p.Type, nil
	}

	link := &models.CreditLink{
		Type:       p.Type,
		Credential: cred,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := s.links.GetCreditLink(ctx, p.Type); err == nil {
		link.PotID = existing.PotID
		link.PrevBalance = existing.PrevBalance
		link.Cooldown = existing.Cooldown
		link.CreatedAt = existing.CreatedAt
	} else if !errs.IsNotFound(err) {
		return "", err
	}
	if err := s.links.SaveCreditLink(ctx, link); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info("credit link connected", "type", p.Type)
	return p.Type, nil
}

// SetProviderCredentials stores an OAuth app registration (client ID and
// secret) for a provider's secret group.
func (s *authService) SetProviderCredentials(ctx context.Context, linkType, clientID, clientSecret string) error {
	if clientID == "" || clientSecret == "" {
		return errs.NewValidationError("client id and secret are required")
	}
	p, err := oauth.Lookup(linkType)
	if err != nil {
		return errs.NewValidationError(err.Error())
	}
	return s.secrets.SetClientCredentials(ctx, p.SecretPrefix, clientID, clientSecret)
}
