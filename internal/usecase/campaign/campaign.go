package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/dto"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/internal/infrastructure"
	"github.com/amitcrm/campaign-pipeline/internal/repo"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type UseCase struct {
	campaignRepo    repo.CampaignRepo
	deliveryLogRepo repo.DeliveryLogRepo
	events          infrastructure.CampaignEvents
	cache           infrastructure.SnapshotCache

	defaultTTLMillis int64
	defaultBatchSize int

	logger logger.Interface
	now    func() time.Time
}

func New(
	campaignRepo repo.CampaignRepo,
	deliveryLogRepo repo.DeliveryLogRepo,
	events infrastructure.CampaignEvents,
	cache infrastructure.SnapshotCache,
	defaultTTLMillis int64,
	defaultBatchSize int,
	l logger.Interface,
) *UseCase {
	return &UseCase{
		campaignRepo:     campaignRepo,
		deliveryLogRepo:  deliveryLogRepo,
		events:           events,
		cache:            cache,
		defaultTTLMillis: defaultTTLMillis,
		defaultBatchSize: defaultBatchSize,
		logger:           l,
		now:              time.Now,
	}
}

func (uc *UseCase) Create(ctx context.Context, in dto.CreateCampaign) (*entity.Campaign, error) {
	ttl := in.TTLMillis
	if ttl <= 0 {
		ttl = uc.defaultTTLMillis
	}

	batchSize := in.BatchSize
	if batchSize <= 0 {
		batchSize = uc.defaultBatchSize
	}

	now := uc.now()

	campaign := &entity.Campaign{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Name:        in.Name,
		Message:     in.Message,
		Intent:      in.Intent,
		RuleID:      in.RuleID,
		CustomerIDs: in.CustomerIDs,
		Status:      entity.CampaignDraft,
		TTLMillis:   ttl,
		BatchSize:   batchSize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := uc.campaignRepo.Create(ctx, campaign)
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Create - uc.campaignRepo.Create: %w", err)
	}

	return campaign, nil
}

// Queue moves a draft campaign into the pipeline. Repeated calls are
// harmless: only the call that wins the draft -> queued transition publishes
// a dispatch message.
func (uc *UseCase) Queue(ctx context.Context, userID, campaignID uuid.UUID) (*entity.Campaign, error) {
	won, err := uc.campaignRepo.Queue(ctx, campaignID, userID, uc.now())
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Queue - uc.campaignRepo.Queue: %w", err)
	}

	campaign, err := uc.getOwned(ctx, userID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Queue - uc.getOwned: %w", err)
	}

	if won {
		err = uc.events.PublishDispatch(ctx, entity.DispatchMessage{CampaignID: campaignID})
		if err != nil {
			return nil, fmt.Errorf("CampaignUseCase - Queue - uc.events.PublishDispatch: %w", err)
		}

		uc.logger.Info("campaign %s queued for dispatch", campaignID)
	}

	return campaign, nil
}

// Status reports a campaign's progress, preferring the cached snapshot and
// falling back to counting delivery log rows when no snapshot exists yet.
func (uc *UseCase) Status(ctx context.Context, userID, campaignID uuid.UUID) (*dto.CampaignProgress, error) {
	campaign, err := uc.getOwned(ctx, userID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Status - uc.getOwned: %w", err)
	}

	progress := &dto.CampaignProgress{
		Status:              campaign.Status,
		QueuedAt:            campaign.QueuedAt,
		ProcessingStartedAt: campaign.ProcessingStartedAt,
		SentAt:              campaign.SentAt,
		FailReason:          campaign.FailReason,
		TotalCount:          campaign.TotalCount,
		DeliveredCount:      campaign.DeliveredCount,
		FailedCount:         campaign.FailedCount,
	}

	snapshot, err := uc.cache.GetSnapshot(ctx, campaignID)
	if err == nil {
		progress.Status = snapshot.Status
		progress.DeliveredCount = snapshot.DeliveredCount
		progress.FailedCount = snapshot.FailedCount
		progress.TotalCount = snapshot.TotalCount

		return progress, nil
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		uc.logger.Warn("snapshot lookup for campaign %s failed, counting from logs: %s", campaignID, err)
	}

	delivered, err := uc.deliveryLogRepo.CountByStatus(ctx, campaignID, entity.DeliverySent)
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Status - uc.deliveryLogRepo.CountByStatus sent: %w", err)
	}

	failed, err := uc.deliveryLogRepo.CountByStatus(ctx, campaignID, entity.DeliveryFailed)
	if err != nil {
		return nil, fmt.Errorf("CampaignUseCase - Status - uc.deliveryLogRepo.CountByStatus failed: %w", err)
	}

	progress.DeliveredCount = delivered
	progress.FailedCount = failed

	return progress, nil
}

// getOwned loads a campaign and hides it from everyone but its owner.
func (uc *UseCase) getOwned(ctx context.Context, userID, campaignID uuid.UUID) (*entity.Campaign, error) {
	campaign, err := uc.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("uc.campaignRepo.GetByID: %w", err)
	}

	if campaign.UserID != userID {
		return nil, errs.ErrRecordNotFound
	}

	return campaign, nil
}
