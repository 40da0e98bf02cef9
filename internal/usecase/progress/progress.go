package progress

import (
	"context"
	"fmt"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/internal/infrastructure"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
)

// UseCase records status snapshots as they stream in. Snapshots are
// self-contained, so the cache just keeps whatever arrived last per campaign.
type UseCase struct {
	cache  infrastructure.SnapshotCache
	logger logger.Interface
}

func New(cache infrastructure.SnapshotCache, l logger.Interface) *UseCase {
	return &UseCase{
		cache:  cache,
		logger: l,
	}
}

func (uc *UseCase) Record(ctx context.Context, snapshot entity.StatusSnapshot) error {
	err := uc.cache.SetSnapshot(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("ProgressUseCase - Record - uc.cache.SetSnapshot: %w", err)
	}

	uc.logger.Info("campaign %s is %s: %d sent, %d failed of %d (batch %d/%d)",
		snapshot.CampaignID, snapshot.Status,
		snapshot.DeliveredCount, snapshot.FailedCount, snapshot.TotalCount,
		snapshot.BatchNumber, snapshot.TotalBatches)

	return nil
}
