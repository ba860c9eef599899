package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultEventTTL = 24 * time.Hour
	noOrderMarker   = "-"
)

// EventLedger records webhook events that were handled to completion so
// redeliveries can be answered without touching the database.
type EventLedger struct {
	provider Provider
	source   string
	ttl      time.Duration
}

func NewEventLedger(provider Provider, source string, ttl time.Duration) *EventLedger {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventLedger{provider: provider, source: source, ttl: ttl}
}

// Seen reports whether eventID was recorded and the order identifier it
// produced, which is empty for events that created no order.
func (l *EventLedger) Seen(ctx context.Context, eventID string) (string, bool, error) {
	if l == nil || l.provider == nil || eventID == "" {
		return "", false, nil
	}

	value, err := l.provider.Get(ctx, WebhookKey(l.source, eventID))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read webhook event %s: %w", eventID, err)
	}
	if value == noOrderMarker {
		return "", true, nil
	}
	return value, true, nil
}

func (l *EventLedger) Record(ctx context.Context, eventID, orderIdentifier string) error {
	if l == nil || l.provider == nil || eventID == "" {
		return nil
	}

	value := orderIdentifier
	if value == "" {
		value = noOrderMarker
	}
	if err := l.provider.Set(ctx, WebhookKey(l.source, eventID), value, l.ttl); err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", eventID, err)
	}
	return nil
}
