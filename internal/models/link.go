package models

import (
	"time"
)

// Provider types. There is at most one link per type; the type doubles as the
// Firestore document ID.
const (
	ProviderMonzo       = "monzo"
	ProviderAmex        = "amex"
	ProviderBarclaycard = "barclaycard"
	ProviderHalifax     = "halifax"
	ProviderNatWest     = "natwest"
)

// AccountSelection picks which of the current accounts funds pot movements.
type AccountSelection string

const (
	SelectPersonal AccountSelection = "personal"
	SelectJoint    AccountSelection = "joint"
)

// Credential holds one link's OAuth tokens. Tokens are stored encrypted; the
// values here are plaintext for the lifetime of one cycle or request.
type Credential struct {
	AccessToken  string `firestore:"accessToken" json:"-"`
	RefreshToken string `firestore:"refreshToken" json:"-"`
	TokenExpiry  int64  `firestore:"tokenExpiry" json:"tokenExpiry"` // unix seconds
}

// refreshWindow is how close to expiry a token gets before it is refreshed
// ahead of use.
const refreshWindow = 120 * time.Second

// WithinExpiryWindow reports whether the access token expires within the
// refresh window (or already has).
func (c Credential) WithinExpiryWindow(now time.Time) bool {
	return c.TokenExpiry-now.Unix() <= int64(refreshWindow/time.Second)
}

// MoneyLink is the single money-holding account used as the funding source
// for every pot movement.
type MoneyLink struct {
	Type       string           `firestore:"type" json:"type"`
	Credential Credential       `firestore:"credential" json:"credential"`
	Selection  AccountSelection `firestore:"selection" json:"selection"`
	CreatedAt  time.Time        `firestore:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time        `firestore:"updatedAt" json:"updatedAt"`
}

// CreditLink is one linked credit card reconciled against a designated pot.
type CreditLink struct {
	Type       string     `firestore:"type" json:"type"`
	Credential Credential `firestore:"credential" json:"credential"`

	// PotID is the designated pot. Empty means not yet configured: the link
	// is skipped by the engine, not treated as an error.
	PotID string `firestore:"potId" json:"potId"`

	// PrevBalance is the last card balance the engine reconciled, in minor
	// currency units. It only moves when a deposit or withdrawal is confirmed
	// or when a cooldown clears.
	PrevBalance int64 `firestore:"prevBalance" json:"prevBalance"`

	// Cooldown is nil while the link is settled. Non-nil means an ambiguous
	// pot drop is pending confirmation.
	Cooldown *Cooldown `firestore:"cooldown" json:"cooldown,omitempty"`

	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Cooldown captures a pending-confirmation period as a single value, so the
// two halves of the state (deadline and frozen baseline) cannot drift apart.
type Cooldown struct {
	// Until is the unix-second deadline after which an unresolved drop is
	// treated as a confirmed shortfall.
	Until int64 `firestore:"until" json:"until"`

	// Baseline is the card balance frozen when the cooldown began; the
	// shortfall at expiry is Baseline minus the live pot balance.
	Baseline int64 `firestore:"baseline" json:"baseline"`

	// PendingDrop records the pot drop observed at entry. Informational only.
	PendingDrop int64 `firestore:"pendingDrop" json:"pendingDrop"`
}

// Active reports whether the cooldown deadline is still in the future.
func (c *Cooldown) Active(now time.Time) bool {
	return c != nil && now.Unix() < c.Until
}

// Expired reports whether the cooldown deadline has passed.
func (c *Cooldown) Expired(now time.Time) bool {
	return c != nil && now.Unix() >= c.Until
}
