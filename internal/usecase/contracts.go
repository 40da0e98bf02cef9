package usecase

import (
	"context"

	"github.com/amitcrm/campaign-pipeline/internal/dto"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	// DispatchUseCase turns one queued campaign into ordered delivery
	// batches. Safe to invoke again for the same campaign.
	DispatchUseCase interface {
		Dispatch(ctx context.Context, msg entity.DispatchMessage) error
	}

	// DeliveryUseCase processes one delivery batch end to end. Safe to
	// invoke again for the same batch.
	DeliveryUseCase interface {
		DeliverBatch(ctx context.Context, batch entity.DeliveryBatch) error
	}

	// ProgressUseCase records status snapshots for observers.
	ProgressUseCase interface {
		Record(ctx context.Context, snapshot entity.StatusSnapshot) error
	}

	CampaignUseCase interface {
		Create(ctx context.Context, in dto.CreateCampaign) (*entity.Campaign, error)
		Queue(ctx context.Context, userID, campaignID uuid.UUID) (*entity.Campaign, error)
		Status(ctx context.Context, userID, campaignID uuid.UUID) (*dto.CampaignProgress, error)
	}
)
