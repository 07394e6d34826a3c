package dto

// LinkInfo is a connected link as presented by the portal. Tokens never leave
// the backend; only sync state and configuration are exposed.
type LinkInfo struct {
	Type          string `json:"type"`
	DisplayName   string `json:"displayName"`
	IsMoney       bool   `json:"isMoney"`
	Selection     string `json:"selection,omitempty"` // money link only
	PotID         string `json:"potId,omitempty"`
	PrevBalance   int64  `json:"prevBalance"`
	CooldownUntil int64  `json:"cooldownUntil,omitempty"` // unix seconds, 0 when settled
}

// LinksResponse groups the single money link with the connected credit links.
type LinksResponse struct {
	Money  *LinkInfo  `json:"money"`
	Credit []LinkInfo `json:"credit"`
}
