package dto

// CycleResult is the outcome of one full sync cycle, for logging and the
// manual-trigger endpoint.
type CycleResult struct {
	LinksChecked   int   `json:"linksChecked"`
	LinksRemoved   int   `json:"linksRemoved"`
	LinksSkipped   int   `json:"linksSkipped"`
	Deposits       int   `json:"deposits"`
	Withdrawals    int   `json:"withdrawals"`
	AmountMoved    int64 `json:"amountMoved"` // minor units, absolute sum
	CooldownsBegun int   `json:"cooldownsBegun"`
	CooldownsEnded int   `json:"cooldownsEnded"`
	Aborted        bool  `json:"aborted"`
	AbortReason    string `json:"abortReason,omitempty"`
}

// PotStatus is a pot as presented by the portal, annotated with the credit
// links designated to it and any active cooldown deadline.
type PotStatus struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Balance       int64    `json:"balance"`
	Currency      string   `json:"currency"`
	AssignedLinks []string `json:"assignedLinks,omitempty"`
	CooldownUntil int64    `json:"cooldownUntil,omitempty"` // unix seconds, 0 when settled
}
