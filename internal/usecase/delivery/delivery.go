package delivery

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
	campaignRepo    repo.CampaignRepo
	customerRepo    repo.CustomerRepo
	deliveryLogRepo repo.DeliveryLogRepo
	tx              repo.Transactor
	sender          infrastructure.EmailSender
	events          infrastructure.CampaignEvents

	logger logger.Interface
	now    func() time.Time
}

func New(
	campaignRepo repo.CampaignRepo,
	customerRepo repo.CustomerRepo,
	deliveryLogRepo repo.DeliveryLogRepo,
	tx repo.Transactor,
	sender infrastructure.EmailSender,
	events infrastructure.CampaignEvents,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		campaignRepo:    campaignRepo,
		customerRepo:    customerRepo,
		deliveryLogRepo: deliveryLogRepo,
		tx:              tx,
		sender:          sender,
		events:          events,
		logger:          l,
		now:             time.Now,
	}
}

// DeliverBatch sends one batch of a campaign and records the outcome per
// customer. Batches arrive at least once; the per-recipient delivery log row
// is the duplicate guard, so a redelivered batch only fills in gaps.
func (uc *UseCase) DeliverBatch(ctx context.Context, batch entity.DeliveryBatch) error {
	campaign, err := uc.campaignRepo.GetByID(ctx, batch.CampaignID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("dropping batch %d/%d for unknown campaign %s", batch.BatchNumber, batch.TotalBatches, batch.CampaignID)

			return nil
		}
		return fmt.Errorf("DeliveryUseCase - DeliverBatch - uc.campaignRepo.GetByID: %w", err)
	}

	if batch.BatchNumber == 1 {
		_, err = uc.campaignRepo.StartSending(ctx, campaign.ID)
		if err != nil {
			return fmt.Errorf("DeliveryUseCase - DeliverBatch - uc.campaignRepo.StartSending: %w", err)
		}
	}

	for _, customerID := range batch.CustomerIDs {
		err = uc.deliverOne(ctx, campaign, customerID)
		if err != nil {
			return fmt.Errorf("DeliveryUseCase - DeliverBatch - uc.deliverOne: %w", err)
		}
	}

	// Recount and write back in one transaction, so concurrent batches of
	// the same campaign never persist counts from a torn read.
	var delivered, failed int
	var status entity.CampaignStatus

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		delivered, err = uc.deliveryLogRepo.CountByStatus(ctx, campaign.ID, entity.DeliverySent)
		if err != nil {
			return fmt.Errorf("uc.deliveryLogRepo.CountByStatus sent: %w", err)
		}

		failed, err = uc.deliveryLogRepo.CountByStatus(ctx, campaign.ID, entity.DeliveryFailed)
		if err != nil {
			return fmt.Errorf("uc.deliveryLogRepo.CountByStatus failed: %w", err)
		}

		status = campaign.Status
		if campaign.Status == entity.CampaignProcessing {
			status = entity.CampaignSending
		}

		if delivered+failed >= campaign.TotalCount {
			status = entity.CampaignSent
			if failed > 0 {
				status = entity.CampaignPartialFailed
			}

			err = uc.campaignRepo.Complete(ctx, campaign.ID, status, delivered, failed, uc.now())
			if err != nil {
				return fmt.Errorf("uc.campaignRepo.Complete: %w", err)
			}

			return nil
		}

		err = uc.campaignRepo.UpdateCounts(ctx, campaign.ID, delivered, failed)
		if err != nil {
			return fmt.Errorf("uc.campaignRepo.UpdateCounts: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("DeliveryUseCase - DeliverBatch - uc.tx.WithinTransaction: %w", err)
	}

	if status == entity.CampaignSent || status == entity.CampaignPartialFailed {
		uc.logger.Info("campaign %s finished as %s (%d sent, %d failed of %d)", campaign.ID, status, delivered, failed, campaign.TotalCount)
	}

	snapshot := entity.StatusSnapshot{
		CampaignID:     campaign.ID,
		Status:         status,
		DeliveredCount: delivered,
		FailedCount:    failed,
		TotalCount:     campaign.TotalCount,
		BatchNumber:    batch.BatchNumber,
		TotalBatches:   batch.TotalBatches,
		Timestamp:      uc.now(),
	}

	err = uc.events.PublishStatus(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("DeliveryUseCase - DeliverBatch - uc.events.PublishStatus: %w", err)
	}

	return nil
}

// deliverOne sends to a single recipient unless a delivery log row already
// exists for the pair. The send itself happens outside any transaction; a
// crash between send and insert means at most one extra email on redelivery,
// never a missing log row marked sent.
func (uc *UseCase) deliverOne(ctx context.Context, campaign *entity.Campaign, customerID uuid.UUID) error {
	customer, err := uc.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			uc.logger.Warn("campaign %s references missing customer %s, skipping", campaign.ID, customerID)

			return nil
		}
		return fmt.Errorf("uc.customerRepo.GetByID: %w", err)
	}

	done, err := uc.deliveryLogRepo.Exists(ctx, campaign.ID, customerID)
	if err != nil {
		return fmt.Errorf("uc.deliveryLogRepo.Exists: %w", err)
	}
	if done {
		return nil
	}

	log := uc.attempt(ctx, campaign, customer)

	_, err = uc.deliveryLogRepo.Create(ctx, log)
	if err != nil {
		return fmt.Errorf("uc.deliveryLogRepo.Create: %w", err)
	}

	return nil
}

func (uc *UseCase) attempt(ctx context.Context, campaign *entity.Campaign, customer *entity.Customer) *entity.DeliveryLog {
	now := uc.now()

	log := &entity.DeliveryLog{
		ID:          uuid.New(),
		CampaignID:  campaign.ID,
		CustomerID:  customer.ID,
		TryCount:    1,
		LastTriedAt: &now,
	}

	messageID, err := uc.sender.Send(ctx, customer.Email, campaign.Subject(), campaign.Message)
	if err != nil {
		uc.logger.Warn("send to %s for campaign %s failed: %s", customer.ID, campaign.ID, err)

		msg := err.Error()
		log.Status = entity.DeliveryFailed
		log.ErrorMessage = &msg

		return log
	}

	sentAt := uc.now()
	log.Status = entity.DeliverySent
	log.MessageID = &messageID
	log.SentAt = &sentAt

	return log
}
