package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteExpiredByAdmin(ctx context.Context, adminID string, now time.Time) (int64, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_by_token_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_by_token_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_by_token_hash", "success")
	return &s, nil
}

func (r *GormSessionRepository) DeleteByID(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Session{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_by_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_by_id", "success")
	return nil
}

// DeleteByTokenHash removes the session if present and reports whether a row was deleted.
func (r *GormSessionRepository) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_by_token_hash", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "delete_by_token_hash", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_by_token_hash", "success")
	return true, nil
}

func (r *GormSessionRepository) DeleteExpiredByAdmin(ctx context.Context, adminID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("admin_id = ? AND expires_at <= ?", adminID, now).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "delete_expired_by_admin", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "delete_expired_by_admin", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
