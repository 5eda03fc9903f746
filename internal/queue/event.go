// Package queue defines message payloads exchanged over the message broker
// and the durable publisher/consumer around the outbound mail queue.
package queue

// MailQueueName is the durable queue carrying outbound notification mail.
// Consumers assume at-least-once delivery.
const MailQueueName = "mail.outbound"

// Recipient roles for a mail message.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// MailMessage is published once per recipient when an order transitions.
// It carries enough information for the mail worker to send the email
// without querying the primary database.
type MailMessage struct {
	MessageID   string `json:"message_id"` // uuid, for consumer-side dedup
	OrderID     string `json:"order_id"`
	Recipient   string `json:"recipient"`
	Role        string `json:"role"` // customer | seller
	Locale      string `json:"locale"`
	Subject     string `json:"subject"`
	OrderStatus string `json:"order_status"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	QueuedAt    string `json:"queued_at"` // RFC3339
}
