package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

// SchemaVersion is the envelope version written by NewEvent.
const SchemaVersion = 1

// Metadata keys copied from the request context by Stamp.
const (
	MetaUserID  = "user_id"
	MetaGuestID = "guest_id"
)

// Event is the envelope for every message the storefront publishes.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent builds an envelope around data with a fresh id and the current
// UTC time. The payload is encoded here so a bad payload fails at the call
// site rather than inside the writer.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
	}, nil
}

// Stamp copies the correlation id and the caller's user or guest id from ctx
// onto e. Values already present are kept.
func (e *Event) Stamp(ctx context.Context) *Event {
	if e.CorrelationID == "" {
		e.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}
	e.setMeta(MetaUserID, logger.UserIDFromContext(ctx))
	e.setMeta(MetaGuestID, logger.GuestIDFromContext(ctx))
	return e
}

func (e *Event) setMeta(key, value string) {
	if value == "" {
		return
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]string, 2)
	}
	if _, ok := e.Metadata[key]; !ok {
		e.Metadata[key] = value
	}
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}
