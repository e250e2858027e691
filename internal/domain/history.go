package domain

import "time"

// DefaultHistoryLimit bounds the browsing history to the most recent products.
const DefaultHistoryLimit = 50

// HistoryEntry is one product in a user's recently viewed list.
type HistoryEntry struct {
	ProductID string    `json:"product_id" bson:"product_id"`
	ViewedAt  time.Time `json:"viewed_at" bson:"viewed_at"`
	ViewCount int       `json:"view_count" bson:"view_count"`
}

// RecordView returns history with productID at the front. A product already
// present keeps its count (plus one) and moves to the front; the result holds
// at most limit distinct products, dropping the oldest. A non-positive limit
// means DefaultHistoryLimit.
func RecordView(history []HistoryEntry, productID string, now time.Time, limit int) []HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	head := HistoryEntry{ProductID: productID, ViewedAt: now, ViewCount: 1}
	for _, e := range history {
		if e.ProductID == productID {
			head.ViewCount = e.ViewCount + 1
			break
		}
	}

	out := make([]HistoryEntry, 0, min(len(history)+1, limit))
	out = append(out, head)
	seen := map[string]struct{}{productID: {}}
	for _, e := range history {
		if len(out) == limit {
			break
		}
		if _, dup := seen[e.ProductID]; dup {
			continue
		}
		seen[e.ProductID] = struct{}{}
		out = append(out, e)
	}
	return out
}
