package services

import (
	"context"
	"fmt"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

// ensureMoneyLink loads the funding account link, refreshes its token when it
// is close to expiry, and verifies the connection. Any failure here stops the
// cycle: nothing can move without the funding account.
func (s *syncService) ensureMoneyLink(ctx context.Context) (*models.MoneyLink, error) {
	link, err := s.links.GetMoneyLink(ctx)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NewNotConfiguredError("no funding account connected")
		}
		return nil, err
	}

	cred, refreshed, err := s.freshCredential(ctx, link.Type, link.Credential)
	if err != nil {
		if errs.IsPermanentAuth(err) {
			if delErr := s.links.Delete(ctx, link.Type); delErr != nil {
				return nil, delErr
			}
			logger.FromContext(ctx).Warn("funding account access revoked, link removed", "type", link.Type)
		}
		return nil, err
	}
	if refreshed {
		link.Credential = cred
		if err := s.links.SaveMoneyLink(ctx, link); err != nil {
			return nil, err
		}
	}

	if err := s.money.Ping(ctx, link.Credential.AccessToken); err != nil {
		if errs.IsPermanentAuth(err) {
			if delErr := s.links.Delete(ctx, link.Type); delErr != nil {
				return nil, delErr
			}
			logger.FromContext(ctx).Warn("funding account access revoked, link removed", "type", link.Type)
		}
		return nil, err
	}

	return link, nil
}

// ensureCreditLinks refreshes and verifies every credit link. Permanently
// broken links are removed and the user is told through their feed; links
// that merely failed transiently are left in place but excluded from this
// cycle.
func (s *syncService) ensureCreditLinks(ctx context.Context, money *models.MoneyLink) ([]*models.CreditLink, int, error) {
	log := logger.FromContext(ctx)

	links, err := s.links.GetCreditLinks(ctx)
	if err != nil {
		return nil, 0, err
	}

	healthy := make([]*models.CreditLink, 0, len(links))
	removed := 0
	for _, link := range links {
		cred, refreshed, err := s.freshCredential(ctx, link.Type, link.Credential)
		if err == nil {
			if refreshed {
				link.Credential = cred
				if err = s.links.SaveCreditLink(ctx, link); err != nil {
					return nil, removed, err
				}
			}
			err = s.cards(link.Type).Ping(ctx, link.Credential.AccessToken)
		}
		if err != nil {
			switch {
			case errs.IsPermanentAuth(err):
				if delErr := s.removeBrokenLink(ctx, money, link); delErr != nil {
					return nil, removed, delErr
				}
				removed++
			case errs.IsTransient(err):
				log.Warn("credit link unavailable, skipping this cycle", "type", link.Type, "error", err)
			default:
				return nil, removed, err
			}
			continue
		}
		healthy = append(healthy, link)
	}

	return healthy, removed, nil
}

func (s *syncService) removeBrokenLink(ctx context.Context, money *models.MoneyLink, link *models.CreditLink) error {
	if err := s.links.Delete(ctx, link.Type); err != nil {
		return err
	}
	logger.FromContext(ctx).Warn("credit link access revoked, link removed", "type", link.Type)

	title := fmt.Sprintf("%s Sync Disconnected", displayName(link.Type))
	body := "The connection expired. Reconnect the card in your pot sync portal to resume syncing."
	if err := s.money.SendFeedItem(ctx, money.Credential.AccessToken, money.Selection, title, body); err != nil {
		logger.FromContext(ctx).Error("failed to send disconnect notification", "type", link.Type, "error", err)
	}
	return nil
}

// freshCredential returns a usable credential, refreshing when the current
// access token is inside the expiry window. The bool reports whether the
// credential changed and needs persisting.
func (s *syncService) freshCredential(ctx context.Context, linkType string, cred models.Credential) (models.Credential, bool, error) {
	if !cred.WithinExpiryWindow(s.clockNow()) {
		return cred, false, nil
	}

	tok, err := s.auth.RefreshByType(ctx, linkType, cred.RefreshToken)
	if err != nil {
		return models.Credential{}, false, err
	}
	logger.FromContext(ctx).Info("refreshed access token", "type", linkType)

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}
	return models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  s.clockNow().Unix() + tok.ExpiresIn,
	}, true, nil
}

func displayName(linkType string) string {
	switch linkType {
	case models.ProviderAmex:
		return "American Express"
	case models.ProviderBarclaycard:
		return "Barclaycard"
	case models.ProviderHalifax:
		return "Halifax"
	case models.ProviderNatWest:
		return "NatWest"
	case models.ProviderMonzo:
		return "Monzo"
	default:
		return linkType
	}
}
