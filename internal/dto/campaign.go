package dto

import (
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/google/uuid"
)

type CreateCampaign struct {
	UserID      uuid.UUID
	Name        string
	Message     string
	Intent      *string
	RuleID      uuid.UUID
	CustomerIDs []uuid.UUID
	TTLMillis   int64
	BatchSize   int
}

type CampaignProgress struct {
	Status              entity.CampaignStatus `json:"status"`
	QueuedAt            *time.Time            `json:"queued_at,omitempty"`
	ProcessingStartedAt *time.Time            `json:"processing_started_at,omitempty"`
	SentAt              *time.Time            `json:"sent_at,omitempty"`
	FailReason          *string               `json:"fail_reason,omitempty"`
	TotalCount          int                   `json:"total_count"`
	DeliveredCount      int                   `json:"delivered_count"`
	FailedCount         int                   `json:"failed_count"`
}
