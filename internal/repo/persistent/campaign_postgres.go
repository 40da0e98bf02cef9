package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/postgres"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	campaignsTable = "campaigns"

	// Columns
	campaignIDColumn           = "id"
	campaignUserIDColumn       = "user_id"
	campaignNameColumn         = "name"
	campaignMessageColumn      = "message"
	campaignIntentColumn       = "intent"
	campaignRuleIDColumn       = "rule_id"
	campaignCustomerIDsColumn  = "customer_ids"
	campaignStatusColumn       = "status"
	campaignQueuedAtColumn     = "queued_at"
	campaignProcStartedColumn  = "processing_started_at"
	campaignSentAtColumn       = "sent_at"
	campaignTTLMsColumn        = "ttl_ms"
	campaignFailReasonColumn   = "fail_reason"
	campaignBatchSizeColumn    = "batch_size"
	campaignTotalCountColumn   = "total_count"
	campaignDeliveredColumn    = "delivered_count"
	campaignFailedColumn       = "failed_count"
	campaignCreatedAtColumn    = "created_at"
	campaignUpdatedAtColumn    = "updated_at"
)

type CampaignRepo struct {
	*postgres.Postgres
}

func NewCampaignRepo(pg *postgres.Postgres) *CampaignRepo {
	return &CampaignRepo{pg}
}

func (r *CampaignRepo) Create(ctx context.Context, campaign *entity.Campaign) error {
	sql, args, err := r.Builder.
		Insert(campaignsTable).
		Columns(
			campaignIDColumn,
			campaignUserIDColumn,
			campaignNameColumn,
			campaignMessageColumn,
			campaignIntentColumn,
			campaignRuleIDColumn,
			campaignCustomerIDsColumn,
			campaignStatusColumn,
			campaignTTLMsColumn,
			campaignBatchSizeColumn,
			campaignCreatedAtColumn,
			campaignUpdatedAtColumn,
		).
		Values(
			campaign.ID,
			campaign.UserID,
			campaign.Name,
			campaign.Message,
			campaign.Intent,
			campaign.RuleID,
			campaign.CustomerIDs,
			campaign.Status,
			campaign.TTLMillis,
			campaign.BatchSize,
			campaign.CreatedAt,
			campaign.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("CampaignRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CampaignRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Campaign, error) {
	sql, args, err := r.Builder.
		Select(
			campaignIDColumn,
			campaignUserIDColumn,
			campaignNameColumn,
			campaignMessageColumn,
			campaignIntentColumn,
			campaignRuleIDColumn,
			campaignCustomerIDsColumn,
			campaignStatusColumn,
			campaignQueuedAtColumn,
			campaignProcStartedColumn,
			campaignSentAtColumn,
			campaignTTLMsColumn,
			campaignFailReasonColumn,
			campaignBatchSizeColumn,
			campaignTotalCountColumn,
			campaignDeliveredColumn,
			campaignFailedColumn,
			campaignCreatedAtColumn,
			campaignUpdatedAtColumn,
		).
		From(campaignsTable).
		Where(squirrel.Eq{campaignIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CampaignRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var campaign entity.Campaign
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&campaign.ID,
		&campaign.UserID,
		&campaign.Name,
		&campaign.Message,
		&campaign.Intent,
		&campaign.RuleID,
		&campaign.CustomerIDs,
		&campaign.Status,
		&campaign.QueuedAt,
		&campaign.ProcessingStartedAt,
		&campaign.SentAt,
		&campaign.TTLMillis,
		&campaign.FailReason,
		&campaign.BatchSize,
		&campaign.TotalCount,
		&campaign.DeliveredCount,
		&campaign.FailedCount,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("CampaignRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("CampaignRepo - GetByID - executor.QueryRow: %w", err)
	}

	return &campaign, nil
}

func (r *CampaignRepo) Queue(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignStatusColumn, entity.CampaignQueued).
		Set(campaignQueuedAtColumn, at).
		Set(campaignTotalCountColumn, squirrel.Expr("cardinality("+campaignCustomerIDsColumn+")")).
		Set(campaignUpdatedAtColumn, at).
		Where(squirrel.Eq{
			campaignIDColumn:     id,
			campaignUserIDColumn: userID,
			campaignStatusColumn: entity.CampaignDraft,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - Queue - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - Queue - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *CampaignRepo) StartProcessing(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignStatusColumn, entity.CampaignProcessing).
		Set(campaignProcStartedColumn, at).
		Set(campaignUpdatedAtColumn, at).
		Where(squirrel.Eq{
			campaignIDColumn:     id,
			campaignStatusColumn: entity.CampaignQueued,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - StartProcessing - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - StartProcessing - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *CampaignRepo) StartSending(ctx context.Context, id uuid.UUID) (bool, error) {
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignStatusColumn, entity.CampaignSending).
		Set(campaignUpdatedAtColumn, time.Now()).
		Where(squirrel.Eq{
			campaignIDColumn:     id,
			campaignStatusColumn: entity.CampaignProcessing,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - StartSending - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("CampaignRepo - StartSending - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *CampaignRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	// failed is only reachable from draft/queued; campaigns already being
	// delivered keep going.
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignStatusColumn, entity.CampaignFailed).
		Set(campaignFailReasonColumn, reason).
		Set(campaignUpdatedAtColumn, time.Now()).
		Where(squirrel.And{
			squirrel.Eq{campaignIDColumn: id},
			squirrel.Eq{campaignStatusColumn: []entity.CampaignStatus{entity.CampaignDraft, entity.CampaignQueued}},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CampaignRepo - MarkFailed - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CampaignRepo - MarkFailed - executor.Exec: %w", err)
	}

	return nil
}

func (r *CampaignRepo) UpdateCounts(ctx context.Context, id uuid.UUID, delivered, failed int) error {
	// Only in-flight campaigns accept progress writes. A worker holding a
	// stale count can land here after another worker already completed the
	// campaign; without the guard it would roll the final counts back.
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignDeliveredColumn, delivered).
		Set(campaignFailedColumn, failed).
		Set(campaignUpdatedAtColumn, time.Now()).
		Where(squirrel.And{
			squirrel.Eq{campaignIDColumn: id},
			squirrel.NotEq{campaignStatusColumn: []entity.CampaignStatus{
				entity.CampaignSent, entity.CampaignPartialFailed, entity.CampaignFailed,
			}},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CampaignRepo - UpdateCounts - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CampaignRepo - UpdateCounts - executor.Exec: %w", err)
	}

	return nil
}

func (r *CampaignRepo) Complete(ctx context.Context, id uuid.UUID, status entity.CampaignStatus, delivered, failed int, at time.Time) error {
	sql, args, err := r.Builder.
		Update(campaignsTable).
		Set(campaignStatusColumn, status).
		Set(campaignDeliveredColumn, delivered).
		Set(campaignFailedColumn, failed).
		Set(campaignSentAtColumn, squirrel.Expr("COALESCE("+campaignSentAtColumn+", ?)", at)).
		Set(campaignUpdatedAtColumn, at).
		Where(squirrel.Eq{campaignIDColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CampaignRepo - Complete - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CampaignRepo - Complete - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("CampaignRepo - Complete: %w", errs.ErrRecordNotFound)
	}

	return nil
}
