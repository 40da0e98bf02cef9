package entity

import (
	"fmt"
	"time"

	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

// DispatchMessage asks the dispatcher to fan a queued campaign out into
// delivery batches.
type DispatchMessage struct {
	CampaignID uuid.UUID `json:"campaignId"`
}

func (m DispatchMessage) Validate() error {
	if m.CampaignID == uuid.Nil {
		return fmt.Errorf("dispatch message without campaign id: %w", errs.ErrInvalidPayload)
	}

	return nil
}

// DeliveryBatch is one contiguous slice of a campaign's audience, processed
// as a unit by the delivery worker.
type DeliveryBatch struct {
	CampaignID   uuid.UUID   `json:"campaignId"`
	CustomerIDs  []uuid.UUID `json:"customerIds"`
	BatchNumber  int         `json:"batchNumber"`
	TotalBatches int         `json:"totalBatches"`
}

func (b DeliveryBatch) Validate() error {
	switch {
	case b.CampaignID == uuid.Nil:
		return fmt.Errorf("delivery batch without campaign id: %w", errs.ErrInvalidPayload)
	case len(b.CustomerIDs) == 0:
		return fmt.Errorf("delivery batch without customers: %w", errs.ErrInvalidPayload)
	case b.BatchNumber < 1 || b.TotalBatches < b.BatchNumber:
		return fmt.Errorf("delivery batch numbered %d of %d: %w", b.BatchNumber, b.TotalBatches, errs.ErrInvalidPayload)
	}

	return nil
}

// StatusSnapshot fully describes a campaign's progress at one point in time.
// Consumers may see snapshots out of order or twice; a later snapshot simply
// replaces the view.
type StatusSnapshot struct {
	CampaignID     uuid.UUID      `json:"campaignId"`
	Status         CampaignStatus `json:"status"`
	DeliveredCount int            `json:"deliveredCount"`
	FailedCount    int            `json:"failedCount"`
	TotalCount     int            `json:"totalCount"`
	BatchNumber    int            `json:"batchNumber"`
	TotalBatches   int            `json:"totalBatches"`
	Timestamp      time.Time      `json:"timestamp"`
}

func (s StatusSnapshot) Validate() error {
	switch {
	case s.CampaignID == uuid.Nil:
		return fmt.Errorf("status snapshot without campaign id: %w", errs.ErrInvalidPayload)
	case s.Status == "":
		return fmt.Errorf("status snapshot without status: %w", errs.ErrInvalidPayload)
	}

	return nil
}
