package dto

// Wire types for the Monzo API. Only the fields the adapter reads.

type MonzoAccountsResponse struct {
	Accounts []MonzoAccount `json:"accounts"`
}

type MonzoAccount struct {
	ID     string `json:"id"`
	Type   string `json:"type"` // "uk_retail" or "uk_retail_joint"
	Closed bool   `json:"closed"`
}

type MonzoBalanceResponse struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

type MonzoPotsResponse struct {
	Pots []MonzoPot `json:"pots"`
}

type MonzoPot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Balance        int64  `json:"balance"`
	Currency       string `json:"currency"`
	Deleted        bool   `json:"deleted"`
	CurrentAccount string `json:"current_account_id"`
}
