// Package events publishes registration facts to downstream marketing systems.
// Events never carry the raw email or phone; consumers join on EmailHash.
package events

import (
	"context"
	"time"
)

// TypeRegistrationCreated is the event type header value.
const TypeRegistrationCreated = "registration_created"

// RegistrationCreated is emitted once per stored registration.
type RegistrationCreated struct {
	RegistrationID     string    `json:"registration_id"`
	EmailHash          string    `json:"email_hash"`
	WantsNotifications bool      `json:"wants_notifications"`
	Device             string    `json:"device"`
	RequestID          string    `json:"request_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, RegistrationCreated) error { return nil }
