package domain

import "time"

// UserProfile is the per-user document holding recommendation signals.
type UserProfile struct {
	UserID          string         `json:"user_id" bson:"_id"`
	Interests       []Interest     `json:"interests" bson:"interests"`
	BrowsingHistory []HistoryEntry `json:"browsing_history" bson:"browsing_history"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
}
