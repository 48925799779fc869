// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
// Notification events are fire-and-forget: publishers log failures and
// never depend on delivery succeeding.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for notification events emitted by the core.
const (
	SubjectTontineActivated = "tontines.activated"
	SubjectTontineCompleted = "tontines.completed"
	SubjectRoundCompleted   = "rounds.completed"
	SubjectPaymentsDue      = "payments.due"      // payments issued for a collecting round
	SubjectPaymentReceived  = "payments.received" // a contribution settled
	SubjectInviteAccepted   = "invites.accepted"  // a user joined via invite code
)
