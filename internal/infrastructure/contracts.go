package infrastructure

import (
	"context"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	// CampaignEvents publishes the pipeline's three message kinds. Every
	// message is keyed by campaign id so one campaign stays on one partition.
	CampaignEvents interface {
		PublishDispatch(ctx context.Context, msg entity.DispatchMessage) error
		PublishDeliveryBatch(ctx context.Context, batch entity.DeliveryBatch) error
		PublishStatus(ctx context.Context, snapshot entity.StatusSnapshot) error
		Close() error
	}

	EmailSender interface {
		Send(ctx context.Context, to, subject, body string) (messageID string, err error)
	}

	// SnapshotCache holds the latest status snapshot per campaign for
	// dashboard reads. Get returns errs.ErrRecordNotFound when no snapshot
	// has been recorded yet.
	SnapshotCache interface {
		SetSnapshot(ctx context.Context, snapshot entity.StatusSnapshot) error
		GetSnapshot(ctx context.Context, campaignID uuid.UUID) (*entity.StatusSnapshot, error)
	}
)
