package dto

// TokenResponse is the OAuth token endpoint payload, shared by the
// authorization-code exchange and the refresh grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ProviderInfo describes one connectable provider for the portal.
type ProviderInfo struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	IconName    string `json:"iconName"`
	IsMoney     bool   `json:"isMoney"`
}
