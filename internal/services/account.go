package services

import (
	"context"

	"github.com/GregMSThompson/potsync-backend/internal/dto"
	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/internal/oauth"
)

type accountLinkStore interface {
	GetMoneyLink(ctx context.Context) (*models.MoneyLink, error)
	GetCreditLinks(ctx context.Context) ([]*models.CreditLink, error)
	GetCreditLink(ctx context.Context, linkType string) (*models.CreditLink, error)
	Delete(ctx context.Context, linkType string) error
	UpdatePot(ctx context.Context, linkType, potID string) error
	UpdateSelection(ctx context.Context, selection models.AccountSelection) error
}

type accountMoneyClient interface {
	Pots(ctx context.Context, accessToken string) ([]models.Pot, error)
	AccountID(ctx context.Context, accessToken string, selection models.AccountSelection) (string, error)
}

type accountService struct {
	links accountLinkStore
	money accountMoneyClient
}

func NewAccountService(links accountLinkStore, money accountMoneyClient) *accountService {
	return &accountService{links: links, money: money}
}

// Links lists the connected money and credit links for the portal.
func (s *accountService) Links(ctx context.Context) (dto.LinksResponse, error) {
	var resp dto.LinksResponse

	money, err := s.links.GetMoneyLink(ctx)
	if err != nil && !errs.IsNotFound(err) {
		return resp, err
	}
	if money != nil {
		resp.Money = &dto.LinkInfo{
			Type:        money.Type,
			DisplayName: displayName(money.Type),
			IsMoney:     true,
			Selection:   string(money.Selection),
		}
	}

	credit, err := s.links.GetCreditLinks(ctx)
	if err != nil {
		return resp, err
	}
	resp.Credit = make([]dto.LinkInfo, 0, len(credit))
	for _, l := range credit {
		info := dto.LinkInfo{
			Type:        l.Type,
			DisplayName: displayName(l.Type),
			PotID:       l.PotID,
			PrevBalance: l.PrevBalance,
		}
		if l.Cooldown != nil {
			info.CooldownUntil = l.Cooldown.Until
		}
		resp.Credit = append(resp.Credit, info)
	}
	return resp, nil
}

// DeleteLink disconnects a provider. Sync state for the link is discarded
// with it; reconnecting starts from a zero baseline.
func (s *accountService) DeleteLink(ctx context.Context, linkType string) error {
	if _, err := oauth.Lookup(linkType); err != nil {
		return errs.NewValidationError(err.Error())
	}
	return s.links.Delete(ctx, linkType)
}

// AssignPot designates the pot a credit link reconciles against. The pot must
// exist and not be deleted.
func (s *accountService) AssignPot(ctx context.Context, linkType, potID string) error {
	if potID == "" {
		return errs.NewValidationError("pot id is required")
	}
	if _, err := s.links.GetCreditLink(ctx, linkType); err != nil {
		return err
	}

	money, err := s.links.GetMoneyLink(ctx)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.NewNotConfiguredError("no funding account connected")
		}
		return err
	}
	pots, err := s.money.Pots(ctx, money.Credential.AccessToken)
	if err != nil {
		return err
	}
	for _, pot := range pots {
		if pot.ID == potID && !pot.Deleted {
			return s.links.UpdatePot(ctx, linkType, potID)
		}
	}
	return errs.NewNotFoundError("pot " + potID + " not found")
}

// Pots lists the funding account's pots annotated with assignments and any
// active cooldown deadline.
func (s *accountService) Pots(ctx context.Context) ([]dto.PotStatus, error) {
	money, err := s.links.GetMoneyLink(ctx)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NewNotConfiguredError("no funding account connected")
		}
		return nil, err
	}

	pots, err := s.money.Pots(ctx, money.Credential.AccessToken)
	if err != nil {
		return nil, err
	}
	credit, err := s.links.GetCreditLinks(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]dto.PotStatus, 0, len(pots))
	for _, pot := range pots {
		if pot.Deleted {
			continue
		}
		status := dto.PotStatus{
			ID:       pot.ID,
			Name:     pot.Name,
			Balance:  pot.Balance,
			Currency: pot.Currency,
		}
		for _, l := range credit {
			if l.PotID != pot.ID {
				continue
			}
			status.AssignedLinks = append(status.AssignedLinks, l.Type)
			if l.Cooldown != nil && l.Cooldown.Until > status.CooldownUntil {
				status.CooldownUntil = l.Cooldown.Until
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// SetFundingSelection switches pot movements between the personal and joint
// current account, after checking the selected account actually exists.
func (s *accountService) SetFundingSelection(ctx context.Context, selection models.AccountSelection) error {
	if selection != models.SelectPersonal && selection != models.SelectJoint {
		return errs.NewValidationError("selection must be personal or joint")
	}

	money, err := s.links.GetMoneyLink(ctx)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.NewNotConfiguredError("no funding account connected")
		}
		return err
	}
	if _, err := s.money.AccountID(ctx, money.Credential.AccessToken, selection); err != nil {
		return err
	}
	return s.links.UpdateSelection(ctx, selection)
}
