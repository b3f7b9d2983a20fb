package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

// DirectoryRepo reads customers, staff and services. The rows are written by
// the services that own them.
type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) GetCustomer(ctx context.Context, customerID uuid.UUID) (domain.Customer, error) {
	var out domain.Customer
	if err := r.getByID(ctx, &out, customerID); err != nil {
		return domain.Customer{}, err
	}
	return out, nil
}

func (r *DirectoryRepo) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.Staff, error) {
	var out domain.Staff
	if err := r.getByID(ctx, &out, staffID); err != nil {
		return domain.Staff{}, err
	}
	return out, nil
}

func (r *DirectoryRepo) GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	var out domain.Service
	if err := r.getByID(ctx, &out, serviceID); err != nil {
		return domain.Service{}, err
	}
	return out, nil
}

func (r *DirectoryRepo) getByID(ctx context.Context, model any, id uuid.UUID) error {
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
