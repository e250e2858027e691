package domain

import (
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Cart represents a shopping cart owned by either a signed-in user or an
// anonymous guest session, never both.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id,omitempty"`
	GuestID   string     `json:"guest_id,omitempty"`
	Items     []CartItem `json:"items"`
	Currency  string     `json:"currency"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// CartItem is one line of a cart. A cart holds at most one line per
// (ProductID, VariantID).
type CartItem struct {
	ProductID       string           `json:"product_id"`
	VariantID       string           `json:"variant_id,omitempty"`
	VariantSnapshot *VariantSnapshot `json:"variant_snapshot,omitempty"`
	Name            string           `json:"name"`
	SKU             string           `json:"sku,omitempty"`
	Price           int64            `json:"price"`
	Quantity        int              `json:"quantity"`
	ImageURL        string           `json:"image_url,omitempty"`
}

// VariantSnapshot freezes the variant attributes shown when the line was added.
type VariantSnapshot struct {
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CartOwner identifies whose cart an operation targets.
type CartOwner struct {
	UserID  string
	GuestID string
}

func UserOwner(userID string) CartOwner   { return CartOwner{UserID: userID} }
func GuestOwner(guestID string) CartOwner { return CartOwner{GuestID: guestID} }

// Validate requires exactly one of UserID and GuestID.
func (o CartOwner) Validate() error {
	switch {
	case o.UserID == "" && o.GuestID == "":
		return apperrors.InvalidInput("cart owner requires a user id or a guest id")
	case o.UserID != "" && o.GuestID != "":
		return apperrors.InvalidInput("cart owner must be either a user or a guest, not both")
	}
	return nil
}

func (o CartOwner) IsGuest() bool { return o.GuestID != "" }

// ID returns the owner's identifier regardless of kind.
func (o CartOwner) ID() string {
	if o.IsGuest() {
		return o.GuestID
	}
	return o.UserID
}

func (o CartOwner) String() string {
	if o.IsGuest() {
		return "guest:" + o.GuestID
	}
	return "user:" + o.UserID
}

// Owner returns the cart's owner.
func (c *Cart) Owner() CartOwner {
	return CartOwner{UserID: c.UserID, GuestID: c.GuestID}
}

// TotalAmount calculates the total price of all items in the cart (in cents).
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the line for productID/variantID, or -1.
func (c *Cart) FindItemIndex(productID, variantID string) int {
	return findLine(c.Items, productID, variantID)
}

func findLine(items []CartItem, productID, variantID string) int {
	for i := range items {
		if items[i].ProductID == productID && items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// ClampQuantity caps qty at maxPerLine. A non-positive maxPerLine means no cap.
func ClampQuantity(qty, maxPerLine int) int {
	if maxPerLine > 0 && qty > maxPerLine {
		return maxPerLine
	}
	return qty
}

// MergeLines folds guest lines into user lines and returns a new slice.
// Matching lines have their quantities summed and clamped to maxPerLine;
// other guest lines are appended in order. Neither input is modified.
func MergeLines(user, guest []CartItem, maxPerLine int) []CartItem {
	out := make([]CartItem, len(user), len(user)+len(guest))
	copy(out, user)

	for _, g := range guest {
		if g.Quantity <= 0 {
			continue
		}
		if i := findLine(out, g.ProductID, g.VariantID); i >= 0 {
			out[i].Quantity = ClampQuantity(out[i].Quantity+g.Quantity, maxPerLine)
			if out[i].VariantSnapshot == nil {
				out[i].VariantSnapshot = g.VariantSnapshot
			}
			continue
		}
		g.Quantity = ClampQuantity(g.Quantity, maxPerLine)
		out = append(out, g)
	}
	return out
}
