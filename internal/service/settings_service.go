package service

import (
	"context"
	"fmt"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/storage"
)

// presidentEntityID names president signature files in storage.
const presidentEntityID = "president"

type SettingsService struct {
	settings  repository.SettingsRepository
	files     storage.FileStore
	maxUpload int64
}

func NewSettingsService(settings repository.SettingsRepository, files storage.FileStore, maxUpload int64) *SettingsService {
	return &SettingsService{settings: settings, files: files, maxUpload: maxUpload}
}

func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	out, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("get settings: %w", err))
	}
	return out, nil
}

func (s *SettingsService) Update(ctx context.Context, req SettingsRequest) (*domain.Settings, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, err := s.settings.Upsert(ctx, &domain.Settings{
		AdjusterColima:     trimmed(req.AdjusterColima),
		AdjusterTecoman:    trimmed(req.AdjusterTecoman),
		AdjusterManzanillo: trimmed(req.AdjusterManzanillo),
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("upsert settings: %w", err))
	}
	return out, nil
}

func trimmed(s string) string {
	if v := trimOptional(&s); v != nil {
		return *v
	}
	return ""
}

func (s *SettingsService) SetPresidentSignature(ctx context.Context, upload storage.Upload) (string, error) {
	file, err := storage.ValidateUpload(upload, s.maxUpload)
	if err != nil {
		observability.RecordUpload(ctx, string(storage.KindPresidentSignature), "rejected")
		return "", err
	}
	p, err := storeAndSwap(ctx, s.files, storage.KindPresidentSignature, presidentEntityID, file, func(p string) (*string, error) {
		return s.settings.SetPresidentSignature(ctx, p)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return "", err
		}
		return "", apperr.Internal(err)
	}
	return p, nil
}

func (s *SettingsService) OpenPresidentSignature(ctx context.Context) (*StoredFile, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return openStored(ctx, s.files, settings.PresidentSignaturePath, "president signature not found")
}
