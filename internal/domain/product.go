package domain

import "time"

// Product is the catalog projection this service reads: tags feed interest
// signals and the rating aggregate is maintained by review creation.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tags        []string  `json:"tags"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Aggregate returns the product's current rating aggregate.
func (p *Product) Aggregate() RatingAggregate {
	return RatingAggregate{Rating: p.Rating, ReviewCount: p.ReviewCount}
}
