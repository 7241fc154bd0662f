package product

import "time"

// RefillSuggestion reminds a user to re-order a product they bought. One
// suggestion per (user, product); an existing suggestion keeps its original
// date, repeat purchases never duplicate or re-date it.
type RefillSuggestion struct {
	UserID        string
	ProductID     string
	SuggestedDate time.Time
	Active        bool
	CreatedAt     time.Time
}

// InventoryAlert is an audit record of a derived stock signal. Alerts are
// written by a subscriber reacting to sweep events; the ledger itself never
// reads them back.
type InventoryAlert struct {
	ID        string
	ProductID string
	Type      AlertType
	Message   string
	Resolved  bool
	CreatedAt time.Time
}

type AlertType string

const (
	AlertLowStock AlertType = "low_stock"
	AlertExpiry   AlertType = "expiry"
)
