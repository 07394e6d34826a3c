package dto

// Wire types for the TrueLayer data API. Card balances arrive as major
// currency units; the adapter converts to minor units.

type TrueLayerCardsResponse struct {
	Results []TrueLayerCard `json:"results"`
}

type TrueLayerCard struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Provider    struct {
		DisplayName string `json:"display_name"`
	} `json:"provider"`
}

type TrueLayerBalanceResponse struct {
	Results []TrueLayerCardBalance `json:"results"`
}

type TrueLayerCardBalance struct {
	Current   float64 `json:"current"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
}

// TrueLayerError is the error envelope the API returns on failures; the
// adapter uses it to tell a revoked consent from a provider outage.
type TrueLayerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
