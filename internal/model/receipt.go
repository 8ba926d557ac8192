package model

import (
	"time"
)

// DeliveryReceipt describes an alert accepted by a notification provider
type DeliveryReceipt struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Recipient string    `json:"recipient"`
	Channel   string    `json:"channel"` // "twilio", "webhook", "log"
	SentAt    time.Time `json:"sent_at"`
}
