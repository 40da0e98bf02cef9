package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/internal/infrastructure"
	"github.com/amitcrm/campaign-pipeline/internal/repo"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type UseCase struct {
	campaignRepo repo.CampaignRepo
	events       infrastructure.CampaignEvents

	logger logger.Interface
	now    func() time.Time
}

func New(campaignRepo repo.CampaignRepo, events infrastructure.CampaignEvents, l logger.Interface) *UseCase {
	return &UseCase{
		campaignRepo: campaignRepo,
		events:       events,
		logger:       l,
		now:          time.Now,
	}
}

// Dispatch fans a queued campaign out into delivery batches. Dispatch
// messages arrive at least once; the queued -> processing transition is a
// compare-and-set, so only one delivery of a given message publishes batches.
func (uc *UseCase) Dispatch(ctx context.Context, msg entity.DispatchMessage) error {
	campaign, err := uc.campaignRepo.GetByID(ctx, msg.CampaignID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("dropping dispatch for unknown campaign %s", msg.CampaignID)

			return nil
		}
		return fmt.Errorf("DispatchUseCase - Dispatch - uc.campaignRepo.GetByID: %w", err)
	}

	now := uc.now()

	// TTL fires on every redelivery, so a campaign that expired while a
	// worker was down is still failed on reprocessing.
	if campaign.TTLExpired(now) {
		err = uc.campaignRepo.MarkFailed(ctx, campaign.ID, entity.FailReasonTTLExpired)
		if err != nil {
			return fmt.Errorf("DispatchUseCase - Dispatch - uc.campaignRepo.MarkFailed: %w", err)
		}

		uc.logger.Info("campaign %s expired before dispatch (queued at %s)", campaign.ID, campaign.QueuedAt)

		return nil
	}

	won, err := uc.campaignRepo.StartProcessing(ctx, campaign.ID, now)
	if err != nil {
		return fmt.Errorf("DispatchUseCase - Dispatch - uc.campaignRepo.StartProcessing: %w", err)
	}
	if !won {
		// Already past queued (or never queued): nothing to fan out.
		return nil
	}

	batches := splitAudience(campaign.CustomerIDs, campaign.BatchSize)
	totalBatches := len(batches)

	for i, customerIDs := range batches {
		batch := entity.DeliveryBatch{
			CampaignID:   campaign.ID,
			CustomerIDs:  customerIDs,
			BatchNumber:  i + 1,
			TotalBatches: totalBatches,
		}

		err = uc.events.PublishDeliveryBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("DispatchUseCase - Dispatch - uc.events.PublishDeliveryBatch %d/%d: %w", batch.BatchNumber, totalBatches, err)
		}
	}

	uc.logger.Info("campaign %s dispatched in %d batches of up to %d customers", campaign.ID, totalBatches, campaign.BatchSize)

	return nil
}

// splitAudience slices the audience into contiguous batches, preserving the
// stored order. Every customer appears exactly once.
func splitAudience(customerIDs []uuid.UUID, batchSize int) [][]uuid.UUID {
	if batchSize <= 0 {
		batchSize = 100
	}

	batches := make([][]uuid.UUID, 0, (len(customerIDs)+batchSize-1)/batchSize)
	for start := 0; start < len(customerIDs); start += batchSize {
		end := start + batchSize
		if end > len(customerIDs) {
			end = len(customerIDs)
		}
		batches = append(batches, customerIDs[start:end])
	}

	return batches
}
