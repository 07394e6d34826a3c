package models

// Setting is one global configuration entry, keyed by name.
type Setting struct {
	Key   string `firestore:"key" json:"key"`
	Value string `firestore:"value" json:"value"`
}

// Setting keys used by the engine.
const (
	SettingEnableSync       = "enable_sync"
	SettingSyncInterval     = "sync_interval_seconds"
	SettingCooldownHours    = "deposit_cooldown_hours"
	SettingOverrideCooldown = "override_cooldown_spending"
)

// DefaultSettings are seeded when a key has never been written.
var DefaultSettings = map[string]string{
	SettingEnableSync:       "true",
	SettingSyncInterval:     "120",
	SettingCooldownHours:    "3",
	SettingOverrideCooldown: "true",
}
