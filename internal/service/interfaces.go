package service

import (
	"context"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/storage"
)

type SessionServiceInterface interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Validate(ctx context.Context, token string) (*AdminIdentity, error)
	Logout(ctx context.Context, token string) error
}

type MemberServiceInterface interface {
	Create(ctx context.Context, req CreateMemberRequest) (*domain.Member, error)
	Get(ctx context.Context, id string) (*domain.Member, error)
	Update(ctx context.Context, id string, req UpdateMemberRequest) (*domain.Member, error)
	Search(ctx context.Context, query string) ([]domain.Member, error)
	RenewVigency(ctx context.Context, id string, req RenewVigencyRequest) (*domain.VigencyEvent, error)
	VigencyHistory(ctx context.Context, id string, page repository.PageRequest) (repository.PageResult[domain.VigencyEvent], error)
	AttachPhoto(ctx context.Context, id string, upload storage.Upload) (string, error)
	AttachSignature(ctx context.Context, id string, upload storage.Upload) (string, error)
	OpenPhoto(ctx context.Context, id string) (*StoredFile, error)
	OpenSignature(ctx context.Context, id string) (*StoredFile, error)
}

type SettingsServiceInterface interface {
	Get(ctx context.Context) (*domain.Settings, error)
	Update(ctx context.Context, req SettingsRequest) (*domain.Settings, error)
	SetPresidentSignature(ctx context.Context, upload storage.Upload) (string, error)
	OpenPresidentSignature(ctx context.Context) (*StoredFile, error)
}

type CardServiceInterface interface {
	Card(ctx context.Context, id string) (*CardData, error)
}

type ValidationServiceInterface interface {
	Validate(ctx context.Context, id string) (*PublicCredential, error)
}
