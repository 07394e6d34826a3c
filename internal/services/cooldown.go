package services

import (
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/models"
)

// ActionKind is the pot movement a reconciliation decision calls for.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDeposit
	ActionWithdraw
)

// ReconcileInput is everything the state machine looks at for one link in one
// cycle. Balances are minor currency units.
type ReconcileInput struct {
	PrevBalance int64            // last reconciled card balance
	CardBalance int64            // live card balance
	PotBalance  int64            // live pot balance
	Cooldown    *models.Cooldown // nil = settled
	Now         time.Time
	CooldownFor time.Duration // cooldown length when one is entered
	Override    bool          // deposit new spending even during cooldown
}

// Decision is the outcome: at most one pot movement, the baseline to persist,
// and the cooldown state to carry forward.
type Decision struct {
	Action ActionKind
	Amount int64

	// NewPrevBalance is the baseline to persist. When RebaseToPot is set the
	// executor overrides it with the pot balance re-read after the movement.
	NewPrevBalance int64
	RebaseToPot    bool

	// Cooldown is the state after this transition; nil means settled.
	Cooldown *models.Cooldown

	Entered bool // a cooldown began this cycle
	Cleared bool // a cooldown ended this cycle
	Reason  string
}

// Reconcile evaluates one link's transition for the cycle. Card-balance
// evidence always wins over pot-balance evidence: a card increase is acted on
// even under an active cooldown (when override is on), while a pot drop with
// no card movement is only ever deferred, never reconciled immediately.
func Reconcile(in ReconcileInput) Decision {
	if in.Cooldown.Active(in.Now) {
		return reconcilePending(in)
	}
	if in.Cooldown.Expired(in.Now) {
		return reconcileExpired(in)
	}
	return reconcileSettled(in)
}

func reconcileSettled(in ReconcileInput) Decision {
	switch {
	case in.CardBalance > in.PrevBalance:
		// New spending: top the pot up to exactly the card balance.
		amount := in.CardBalance - in.PotBalance
		if amount <= 0 {
			// pot already covers the new balance; just move the baseline
			return Decision{
				NewPrevBalance: in.CardBalance,
				Reason:         "card increased but pot already covers it",
			}
		}
		return Decision{
			Action:         ActionDeposit,
			Amount:         amount,
			NewPrevBalance: in.CardBalance,
			Reason:         "card balance increased",
		}

	case in.CardBalance < in.PrevBalance:
		// A payment hit the card: release the surplus back to the account.
		amount := in.PotBalance - in.CardBalance
		if amount <= 0 {
			return Decision{
				NewPrevBalance: in.CardBalance,
				Reason:         "card decreased but pot holds no surplus",
			}
		}
		return Decision{
			Action:         ActionWithdraw,
			Amount:         amount,
			NewPrevBalance: in.CardBalance,
			Reason:         "card balance decreased",
		}

	case in.PotBalance < in.PrevBalance:
		// Pot dropped with no card movement: ambiguous, start the clock
		// instead of topping the pot back up against a legitimate withdrawal.
		return Decision{
			NewPrevBalance: in.PrevBalance,
			Cooldown: &models.Cooldown{
				Until:       in.Now.Add(in.CooldownFor).Unix(),
				Baseline:    in.PrevBalance,
				PendingDrop: in.PrevBalance - in.PotBalance,
			},
			Entered: true,
			Reason:  "pot dropped without card movement",
		}

	default:
		return Decision{
			NewPrevBalance: in.PrevBalance,
			Reason:         "balances unchanged",
		}
	}
}

func reconcilePending(in ReconcileInput) Decision {
	if in.Override && in.CardBalance > in.PrevBalance {
		// New spending during cooldown is unambiguous; deposit the increase.
		// The cooldown itself stays queued: only expiry or balance equality
		// clears it.
		return Decision{
			Action:         ActionDeposit,
			Amount:         in.CardBalance - in.PrevBalance,
			NewPrevBalance: in.CardBalance,
			Cooldown:       in.Cooldown,
			Reason:         "override deposit of new spending during cooldown",
		}
	}

	if in.PotBalance == in.CardBalance {
		// The ambiguity resolved itself, e.g. a manual top-up matched the card.
		return Decision{
			NewPrevBalance: in.CardBalance,
			Cleared:        true,
			Reason:         "pot matches card, cooldown cleared early",
		}
	}

	return Decision{
		NewPrevBalance: in.PrevBalance,
		Cooldown:       in.Cooldown,
		Reason:         "cooldown active, waiting",
	}
}

func reconcileExpired(in ReconcileInput) Decision {
	drop := in.Cooldown.Baseline - in.PotBalance
	if drop > 0 {
		// Nothing explained the drop before the deadline: treat it as a
		// confirmed shortfall and restore the pot.
		return Decision{
			Action:      ActionDeposit,
			Amount:      drop,
			RebaseToPot: true,
			Cleared:     true,
			Reason:      "cooldown expired with residual shortfall",
		}
	}
	return Decision{
		NewPrevBalance: in.PotBalance,
		Cleared:        true,
		Reason:         "cooldown expired with no shortfall",
	}
}
