package models

// Pot is a ring-fenced sub-account of the funding account. Pots are owned by
// the money provider; this system only reads and moves their balance.
type Pot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"` // minor currency units
	Currency string `json:"currency"`
	Deleted  bool   `json:"deleted"`
}
