package repository

import (
	"context"
	"errors"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAdminNotFound = errors.New("admin not found")

type AdminRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Admin, error)
	FindByEmail(ctx context.Context, email string) (*domain.Admin, error)
	Upsert(ctx context.Context, admin *domain.Admin) error
}

type GormAdminRepository struct{ db *gorm.DB }

func NewAdminRepository(db *gorm.DB) AdminRepository { return &GormAdminRepository{db: db} }

func (r *GormAdminRepository) FindByID(ctx context.Context, id string) (*domain.Admin, error) {
	return r.findOne(ctx, "find_by_id", "id = ?", id)
}

func (r *GormAdminRepository) FindByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.findOne(ctx, "find_by_email", "email = ?", email)
}

func (r *GormAdminRepository) findOne(ctx context.Context, op, where string, arg any) (*domain.Admin, error) {
	var a domain.Admin
	err := r.db.WithContext(ctx).Where(where, arg).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "admin", op, "not_found")
			return nil, ErrAdminNotFound
		}
		observability.RecordRepositoryOperation(ctx, "admin", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "admin", op, "success")
	return &a, nil
}

// Upsert inserts the admin or, when the email already exists, replaces its password hash.
func (r *GormAdminRepository) Upsert(ctx context.Context, admin *domain.Admin) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
	}).Create(admin).Error
	if err == nil {
		err = r.db.WithContext(ctx).Where("email = ?", admin.Email).First(admin).Error
	}
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "admin", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "admin", "upsert", "success")
	return nil
}
