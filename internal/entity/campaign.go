package entity

import (
	"time"

	"github.com/google/uuid"
)

type Campaign struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Name    string    `json:"name"`
	Message string    `json:"message"`
	Intent  *string   `json:"intent,omitempty"`
	RuleID  uuid.UUID `json:"rule_id"`

	CustomerIDs []uuid.UUID    `json:"customer_ids"`
	Status      CampaignStatus `json:"status"`

	QueuedAt            *time.Time `json:"queued_at,omitempty"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	SentAt              *time.Time `json:"sent_at,omitempty"`

	TTLMillis  int64   `json:"ttl_ms"`
	FailReason *string `json:"fail_reason,omitempty"`

	BatchSize      int `json:"batch_size"`
	TotalCount     int `json:"total_count"`
	DeliveredCount int `json:"delivered_count"`
	FailedCount    int `json:"failed_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TTLExpired reports whether the time budget measured from QueuedAt has run
// out. A campaign that was never queued has no budget to exceed.
func (c *Campaign) TTLExpired(now time.Time) bool {
	if c.QueuedAt == nil || c.TTLMillis <= 0 {
		return false
	}

	return now.Sub(*c.QueuedAt) > time.Duration(c.TTLMillis)*time.Millisecond
}

// Subject is the outbound email subject: the intent label when present,
// otherwise the campaign name.
func (c *Campaign) Subject() string {
	if c.Intent != nil && *c.Intent != "" {
		return *c.Intent
	}

	return c.Name
}
