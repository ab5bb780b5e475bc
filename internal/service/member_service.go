package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/storage"
)

type MemberService struct {
	members   repository.MemberRepository
	files     storage.FileStore
	maxUpload int64
	now       func() time.Time
}

func NewMemberService(members repository.MemberRepository, files storage.FileStore, maxUpload int64) *MemberService {
	return &MemberService{members: members, files: files, maxUpload: maxUpload, now: time.Now}
}

func (s *MemberService) WithClock(now func() time.Time) *MemberService {
	s.now = now
	return s
}

func (s *MemberService) Create(ctx context.Context, req CreateMemberRequest) (*domain.Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m := req.toDomain()
	if err := s.members.Create(ctx, m); err != nil {
		return nil, memberError(err)
	}
	return m, nil
}

func (s *MemberService) Get(ctx context.Context, id string) (*domain.Member, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, memberError(err)
	}
	return m, nil
}

func (s *MemberService) Update(ctx context.Context, id string, req UpdateMemberRequest) (*domain.Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var addr *domain.Address
	if req.Address != nil {
		addr = req.Address.toDomain()
	}
	m, err := s.members.Update(ctx, id, req.fields(), addr)
	if err != nil {
		return nil, memberError(err)
	}
	return m, nil
}

func (s *MemberService) Search(ctx context.Context, query string) ([]domain.Member, error) {
	tokens, err := SearchTokens(query)
	if err != nil {
		return nil, err
	}
	members, err := s.members.Search(ctx, tokens)
	if err != nil {
		return nil, memberError(err)
	}
	return members, nil
}

// RenewVigency records a renewal event. The vigencia date itself is not changed.
func (s *MemberService) RenewVigency(ctx context.Context, id string, req RenewVigencyRequest) (*domain.VigencyEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	event := &domain.VigencyEvent{
		MemberID:  id,
		Note:      trimOptional(req.Note),
		AppliedAt: s.now().UTC(),
	}
	if err := s.members.AddVigencyEvent(ctx, event); err != nil {
		return nil, memberError(err)
	}
	return event, nil
}

func (s *MemberService) VigencyHistory(ctx context.Context, id string, page repository.PageRequest) (repository.PageResult[domain.VigencyEvent], error) {
	res, err := s.members.ListVigencyEvents(ctx, id, page)
	if err != nil {
		return repository.PageResult[domain.VigencyEvent]{}, memberError(err)
	}
	return res, nil
}

func (s *MemberService) AttachPhoto(ctx context.Context, id string, upload storage.Upload) (string, error) {
	return s.attach(ctx, storage.KindPhoto, id, upload, s.members.SetPhotoPath)
}

func (s *MemberService) AttachSignature(ctx context.Context, id string, upload storage.Upload) (string, error) {
	return s.attach(ctx, storage.KindSignature, id, upload, s.members.SetSignaturePath)
}

type pathSetter func(ctx context.Context, id, path string) (*string, error)

func (s *MemberService) attach(ctx context.Context, kind storage.Kind, id string, upload storage.Upload, set pathSetter) (string, error) {
	file, err := storage.ValidateUpload(upload, s.maxUpload)
	if err != nil {
		observability.RecordUpload(ctx, string(kind), "rejected")
		return "", err
	}
	if _, err := s.members.FindByID(ctx, id); err != nil {
		return "", memberError(err)
	}
	p, err := storeAndSwap(ctx, s.files, kind, id, file, func(p string) (*string, error) { return set(ctx, id, p) })
	if err != nil {
		return "", memberError(err)
	}
	return p, nil
}

// storeAndSwap writes file, records its path with set and removes the file it replaced.
func storeAndSwap(ctx context.Context, files storage.FileStore, kind storage.Kind, entityID string, file *storage.Validated, set func(string) (*string, error)) (string, error) {
	p, err := files.Save(ctx, kind, entityID, file)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUploadRejected {
			observability.RecordUpload(ctx, string(kind), "rejected")
			return "", err
		}
		observability.RecordUpload(ctx, string(kind), "error")
		return "", fmt.Errorf("save %s: %w", kind, err)
	}
	previous, err := set(p)
	if err != nil {
		observability.RecordUpload(ctx, string(kind), "error")
		if rmErr := files.Remove(ctx, p); rmErr != nil {
			slog.WarnContext(ctx, "orphaned upload not removed", "path", p, "error", rmErr.Error())
		}
		return "", err
	}
	if previous != nil && *previous != "" && *previous != p {
		if err := files.Remove(ctx, *previous); err != nil {
			slog.WarnContext(ctx, "previous upload not removed", "path", *previous, "error", err.Error())
		}
	}
	observability.RecordUpload(ctx, string(kind), "stored")
	return p, nil
}

type StoredFile struct {
	Body        io.ReadCloser
	ContentType string
}

func (s *MemberService) OpenPhoto(ctx context.Context, id string) (*StoredFile, error) {
	return s.open(ctx, id, func(m *domain.Member) *string { return m.PhotoPath }, "photo not found")
}

func (s *MemberService) OpenSignature(ctx context.Context, id string) (*StoredFile, error) {
	return s.open(ctx, id, func(m *domain.Member) *string { return m.SignaturePath }, "signature not found")
}

func (s *MemberService) open(ctx context.Context, id string, pick func(*domain.Member) *string, missing string) (*StoredFile, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, memberError(err)
	}
	return openStored(ctx, s.files, pick(m), missing)
}

func openStored(ctx context.Context, files storage.FileStore, p *string, missing string) (*StoredFile, error) {
	if p == nil || *p == "" {
		return nil, apperr.NotFound(missing)
	}
	body, err := files.Open(ctx, *p)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, apperr.NotFound(missing)
		}
		return nil, apperr.Internal(fmt.Errorf("open %s: %w", *p, err))
	}
	return &StoredFile{Body: body, ContentType: storage.ContentTypeFor(*p)}, nil
}

func memberError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrMemberNotFound):
		return apperr.NotFound("member not found")
	case errors.Is(err, repository.ErrFolioTaken):
		return apperr.FieldError("folio", "is already assigned to another member")
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err)
}
