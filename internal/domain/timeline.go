package domain

import "time"

// TimelineTimeLayout formats step timestamps.
const TimelineTimeLayout = "02 Jan 2006 15:04"

// Step colors.
const (
	ColorActive   = "green"
	ColorInactive = "gray"
	ColorAlert    = "red"
)

// TimelineStep is one row of the order progress display.
type TimelineStep struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	Time   string `json:"time"`
	Color  string `json:"color"`
}

type timelineStep struct {
	key, label string
	activeOn   []OrderStatus
	at         func(*Order) *time.Time
	alert      bool
	// shownWhenRefunded keeps the step lit on a refunded order whose
	// milestone was recorded before the refund.
	shownWhenRefunded bool
}

var progress = []OrderStatus{
	OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
}

// Refunds are only allowed from PAID onwards, so a refunded order has always
// been placed and paid.
var (
	placedStatuses = append([]OrderStatus{OrderStatusRefunded}, progress[0:]...)
	paidStatuses   = append([]OrderStatus{OrderStatusRefunded}, progress[1:]...)
)

var timelineSteps = []timelineStep{
	{key: "pending", label: "Order placed", activeOn: placedStatuses,
		at: func(o *Order) *time.Time { return &o.CreatedAt }},
	{key: "confirmed", label: "Payment confirmed", activeOn: paidStatuses,
		at: func(o *Order) *time.Time { return o.PaidAt }},
	{key: "preparing", label: "Preparing", activeOn: progress[2:],
		at: func(o *Order) *time.Time { return o.PaidAt }},
	{key: "shipping", label: "Shipped", activeOn: progress[3:],
		at: func(o *Order) *time.Time { return o.ShippedAt }, shownWhenRefunded: true},
	{key: "delivered", label: "Delivered", activeOn: progress[4:],
		at: func(o *Order) *time.Time { return o.DeliveredAt }, shownWhenRefunded: true},
	{key: "cancelled", label: "Cancelled", activeOn: []OrderStatus{OrderStatusCancelled},
		at: func(o *Order) *time.Time { return o.CancelledAt }, alert: true},
}

// BuildTimeline projects an order onto the six fixed progress steps. A
// cancelled order lights only the cancelled step. A refunded order keeps
// pending and confirmed lit, plus shipping and delivered when those
// milestones were reached. Statuses outside ValidStatuses yield
// ErrUnknownOrderStatus.
func BuildTimeline(o *Order) ([]TimelineStep, error) {
	if !IsValidStatus(o.Status) {
		return nil, ErrUnknownOrderStatus
	}

	steps := make([]TimelineStep, 0, len(timelineSteps))
	for _, def := range timelineSteps {
		at := def.at(o)
		active := containsStatus(def.activeOn, o.Status)
		if !active && def.shownWhenRefunded && o.Status == OrderStatusRefunded {
			active = at != nil && !at.IsZero()
		}
		step := TimelineStep{
			Key:    def.key,
			Label:  def.label,
			Active: active,
			Time:   formatMilestone(at),
			Color:  ColorInactive,
		}
		if step.Active {
			step.Color = ColorActive
			if def.alert {
				step.Color = ColorAlert
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func containsStatus(set []OrderStatus, s OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func formatMilestone(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimelineTimeLayout)
}
