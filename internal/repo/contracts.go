package repo

import (
	"context"
	"time"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	CampaignRepo interface {
		Create(ctx context.Context, campaign *entity.Campaign) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Campaign, error)

		// Queue transitions draft -> queued for the owner, stamping QueuedAt
		// and freezing TotalCount to the audience size. Returns false when the
		// campaign is not in draft (or not owned), which makes the queue
		// action idempotent.
		Queue(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)

		// StartProcessing transitions queued -> processing atomically; only
		// one caller wins, so redelivered dispatch messages cannot fan a
		// campaign out twice.
		StartProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

		// StartSending transitions processing -> sending on the first batch.
		StartSending(ctx context.Context, id uuid.UUID) (bool, error)

		// MarkFailed terminally fails a campaign still in draft or queued.
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

		// UpdateCounts refreshes the progress counters of a campaign that is
		// still in flight; terminal campaigns are left untouched, so a stale
		// recount can never roll back the final numbers.
		UpdateCounts(ctx context.Context, id uuid.UUID, delivered, failed int) error

		// Complete writes a terminal status together with the final counts.
		// SentAt is set at most once.
		Complete(ctx context.Context, id uuid.UUID, status entity.CampaignStatus, delivered, failed int, at time.Time) error
	}

	CustomerRepo interface {
		GetByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
	}

	DeliveryLogRepo interface {
		Exists(ctx context.Context, campaignID, customerID uuid.UUID) (bool, error)

		// Create inserts the row unless one already exists for the
		// (campaignID, customerID) pair; the unique constraint makes this the
		// pipeline's duplicate-send guard under concurrent writers.
		Create(ctx context.Context, log *entity.DeliveryLog) (bool, error)

		CountByStatus(ctx context.Context, campaignID uuid.UUID, status entity.DeliveryStatus) (int, error)
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
