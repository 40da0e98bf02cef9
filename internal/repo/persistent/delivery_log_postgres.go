package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	deliveryLogsTable = "delivery_logs"

	// Columns
	logIDColumn           = "id"
	logCampaignIDColumn   = "campaign_id"
	logCustomerIDColumn   = "customer_id"
	logStatusColumn       = "status"
	logErrorMessageColumn = "error_message"
	logSentAtColumn       = "sent_at"
	logTryCountColumn     = "try_count"
	logMessageIDColumn    = "message_id"
	logLastTriedAtColumn  = "last_tried_at"
)

type DeliveryLogRepo struct {
	*postgres.Postgres
}

func NewDeliveryLogRepo(pg *postgres.Postgres) *DeliveryLogRepo {
	return &DeliveryLogRepo{pg}
}

func (r *DeliveryLogRepo) Exists(ctx context.Context, campaignID, customerID uuid.UUID) (bool, error) {
	sql, args, err := r.Builder.
		Select("1").
		From(deliveryLogsTable).
		Where(squirrel.Eq{
			logCampaignIDColumn: campaignID,
			logCustomerIDColumn: customerID,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("DeliveryLogRepo - Exists - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var one int
	err = executor.QueryRow(ctx, sql, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("DeliveryLogRepo - Exists - executor.QueryRow: %w", err)
	}

	return true, nil
}

func (r *DeliveryLogRepo) Create(ctx context.Context, log *entity.DeliveryLog) (bool, error) {
	// The unique (campaign_id, customer_id) constraint backs the
	// insert-or-ignore; a lost race is reported, not an error.
	sql, args, err := r.Builder.
		Insert(deliveryLogsTable).
		Columns(
			logIDColumn,
			logCampaignIDColumn,
			logCustomerIDColumn,
			logStatusColumn,
			logErrorMessageColumn,
			logSentAtColumn,
			logTryCountColumn,
			logMessageIDColumn,
			logLastTriedAtColumn,
		).
		Values(
			log.ID,
			log.CampaignID,
			log.CustomerID,
			log.Status,
			log.ErrorMessage,
			log.SentAt,
			log.TryCount,
			log.MessageID,
			log.LastTriedAt,
		).
		Suffix("ON CONFLICT (" + logCampaignIDColumn + ", " + logCustomerIDColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("DeliveryLogRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("DeliveryLogRepo - Create - executor.Exec: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *DeliveryLogRepo) CountByStatus(ctx context.Context, campaignID uuid.UUID, status entity.DeliveryStatus) (int, error) {
	sql, args, err := r.Builder.
		Select("COUNT(*)").
		From(deliveryLogsTable).
		Where(squirrel.Eq{
			logCampaignIDColumn: campaignID,
			logStatusColumn:     status,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("DeliveryLogRepo - CountByStatus - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var count int
	err = executor.QueryRow(ctx, sql, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("DeliveryLogRepo - CountByStatus - executor.QueryRow: %w", err)
	}

	return count, nil
}
