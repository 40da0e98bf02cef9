package entity

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryLog is the durable record of one attempted send to one recipient
// for one campaign. At most one row exists per (CampaignID, CustomerID).
type DeliveryLog struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	CustomerID uuid.UUID `json:"customer_id"`

	Status       DeliveryStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	TryCount     int            `json:"try_count"`
	MessageID    *string        `json:"message_id,omitempty"`
	LastTriedAt  *time.Time     `json:"last_tried_at,omitempty"`
}
