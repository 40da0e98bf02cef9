package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/postgres"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	customersTable = "customers"

	// Columns
	customerIDColumn        = "id"
	customerUserIDColumn    = "user_id"
	customerNameColumn      = "name"
	customerEmailColumn     = "email"
	customerPhoneColumn     = "phone"
	customerLocationColumn  = "location"
	customerCreatedAtColumn = "created_at"
	customerUpdatedAtColumn = "updated_at"
)

type CustomerRepo struct {
	*postgres.Postgres
}

func NewCustomerRepo(pg *postgres.Postgres) *CustomerRepo {
	return &CustomerRepo{pg}
}

func (r *CustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	sql, args, err := r.Builder.
		Select(
			customerIDColumn,
			customerUserIDColumn,
			customerNameColumn,
			customerEmailColumn,
			customerPhoneColumn,
			customerLocationColumn,
			customerCreatedAtColumn,
			customerUpdatedAtColumn,
		).
		From(customersTable).
		Where(squirrel.Eq{customerIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CustomerRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var customer entity.Customer
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&customer.ID,
		&customer.UserID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.Location,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("CustomerRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("CustomerRepo - GetByID - executor.QueryRow: %w", err)
	}

	return &customer, nil
}
