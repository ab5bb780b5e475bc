package repository

import (
	"context"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Upsert(ctx context.Context, s *domain.Settings) (*domain.Settings, error)
	SetPresidentSignature(ctx context.Context, path string) (*string, error)
}

type GormSettingsRepository struct{ db *gorm.DB }

func NewSettingsRepository(db *gorm.DB) SettingsRepository { return &GormSettingsRepository{db: db} }

// Get returns the settings row, creating it with empty adjuster numbers on first access.
func (r *GormSettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	s, err := getOrCreateSettings(r.db.WithContext(ctx))
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "settings", "get", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "settings", "get", "success")
	return s, nil
}

func getOrCreateSettings(db *gorm.DB) (*domain.Settings, error) {
	s := domain.Settings{ID: domain.SettingsID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
		return nil, err
	}
	if err := db.First(&s, domain.SettingsID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes the adjuster numbers. The president signature path is left untouched.
func (r *GormSettingsRepository) Upsert(ctx context.Context, s *domain.Settings) (*domain.Settings, error) {
	var out *domain.Settings
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOrCreateSettings(tx); err != nil {
			return err
		}
		err := tx.Model(&domain.Settings{}).Where("id = ?", domain.SettingsID).Updates(map[string]any{
			"adjuster_colima":     s.AdjusterColima,
			"adjuster_tecoman":    s.AdjusterTecoman,
			"adjuster_manzanillo": s.AdjusterManzanillo,
		}).Error
		if err != nil {
			return err
		}
		out, err = getOrCreateSettings(tx)
		return err
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "settings", "upsert", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "settings", "upsert", "success")
	return out, nil
}

// SetPresidentSignature records path and returns the path it replaced, if any.
func (r *GormSettingsRepository) SetPresidentSignature(ctx context.Context, path string) (*string, error) {
	var previous *string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := getOrCreateSettings(tx)
		if err != nil {
			return err
		}
		previous = current.PresidentSignaturePath
		return tx.Model(&domain.Settings{}).Where("id = ?", domain.SettingsID).
			Update("president_signature_path", path).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "settings", "set_president_signature", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "settings", "set_president_signature", "success")
	return previous, nil
}
