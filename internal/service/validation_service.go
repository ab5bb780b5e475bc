package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/vigency"
)

// PublicCredential is everything the public validation page may see.
type PublicCredential struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	SecondLastName *string `json:"secondLastName"`
	Vigencia       *string `json:"vigencia"`
	Valid          bool    `json:"valid"`
}

type ValidationService struct {
	members    repository.MemberRepository
	unknown    UnknownCredentialCache
	unknownTTL time.Duration
	now        func() time.Time
}

func NewValidationService(members repository.MemberRepository, unknown UnknownCredentialCache, unknownTTL time.Duration) *ValidationService {
	if unknown == nil {
		unknown = NewNoopUnknownCredentialCache()
	}
	return &ValidationService{members: members, unknown: unknown, unknownTTL: unknownTTL, now: time.Now}
}

func (s *ValidationService) WithClock(now func() time.Time) *ValidationService {
	s.now = now
	return s
}

func (s *ValidationService) Validate(ctx context.Context, id string) (*PublicCredential, error) {
	if hit, err := s.unknown.IsUnknown(ctx, id); err != nil {
		slog.WarnContext(ctx, "unknown credential cache read failed", "error", err.Error())
	} else if hit {
		observability.RecordCredentialValidation(ctx, "not_found_cached")
		return nil, apperr.NotFound("member not found")
	}
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		err = memberError(err)
		if apperr.KindOf(err) == apperr.KindNotFound {
			observability.RecordCredentialValidation(ctx, "not_found")
			if cacheErr := s.unknown.MarkUnknown(ctx, id, s.unknownTTL); cacheErr != nil {
				slog.WarnContext(ctx, "unknown credential cache write failed", "error", cacheErr.Error())
			}
		} else {
			observability.RecordCredentialValidation(ctx, "error")
		}
		return nil, err
	}
	out := &PublicCredential{
		ID:             m.ID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		SecondLastName: m.SecondLastName,
		Vigencia:       m.Vigencia,
	}
	if m.Vigencia != nil {
		out.Valid = vigency.IsValid(*m.Vigencia, s.now())
	}
	if out.Valid {
		observability.RecordCredentialValidation(ctx, "valid")
	} else {
		observability.RecordCredentialValidation(ctx, "expired")
	}
	return out, nil
}
