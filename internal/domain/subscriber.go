package domain

// SubscriberStatus enumerates mailing-list membership states.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Subscriber is a mailing-list member. UnsubscribeToken is an opaque unique
// value embedded into the per-recipient unsubscribe link.
type Subscriber struct {
	ID               string
	Email            string
	Status           SubscriberStatus
	UnsubscribeToken string
}
