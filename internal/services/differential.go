package services

import (
	"context"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
	"github.com/GregMSThompson/potsync-backend/pkg/logger"
)

// aggregate is one cycle's balance snapshot. Pot balances and account
// selections are fetched once per distinct pot even when several cards share
// it; the executor refreshes a pot's entry after moving money into or out of
// it.
type aggregate struct {
	links        []*models.CreditLink
	cardBalances map[string]int64 // link type -> live card balance
	potBalances  map[string]int64 // pot ID -> live pot balance
	selections   map[string]models.AccountSelection
	skipped      int
}

func (s *syncService) aggregate(ctx context.Context, money *models.MoneyLink, links []*models.CreditLink) (*aggregate, error) {
	log := logger.FromContext(ctx)

	agg := &aggregate{
		cardBalances: make(map[string]int64),
		potBalances:  make(map[string]int64),
		selections:   make(map[string]models.AccountSelection),
	}

	for _, link := range links {
		if link.PotID == "" {
			log.Info("link has no pot assigned, skipping", "type", link.Type)
			agg.skipped++
			continue
		}

		cardBalance, err := s.cards(link.Type).TotalBalance(ctx, link.Credential.AccessToken)
		if err != nil {
			if errs.IsTransient(err) {
				log.Warn("card balance unavailable, skipping this cycle", "type", link.Type, "error", err)
				agg.skipped++
				continue
			}
			return nil, err
		}

		if _, ok := agg.potBalances[link.PotID]; !ok {
			balance, err := s.money.PotBalance(ctx, money.Credential.AccessToken, link.PotID)
			if err != nil {
				return nil, err
			}
			selection, err := s.money.SelectionForPot(ctx, money.Credential.AccessToken, link.PotID)
			if err != nil {
				return nil, err
			}
			agg.potBalances[link.PotID] = balance
			agg.selections[link.PotID] = selection
		}

		agg.cardBalances[link.Type] = cardBalance
		agg.links = append(agg.links, link)
	}

	return agg, nil
}
