package events

import (
	"context"
	"time"
)

// StreamMarket carries every marketplace event.
const StreamMarket = "events:market"

// Event types
const (
	EventListingsRefreshed   = "listings_refreshed"
	EventWalletChanged       = "wallet_changed"
	EventTxConfirmed         = "tx_confirmed"
	EventTxFailed            = "tx_failed"
	EventRedemptionConfirmed = "redemption_confirmed"
	EventRedemptionForwarded = "redemption_forwarded"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

func New(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, Payload: payload, At: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
