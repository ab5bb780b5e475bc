package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrFolioTaken     = errors.New("folio already assigned")
)

const (
	SearchLimit       = 20
	RecentEventsLimit = 10
	folioWidth        = 4
	folioAttempts     = 3
)

var (
	nameColumns       = []string{"first_name", "last_name", "second_last_name"}
	identifierColumns = []string{"phone_mx", "license_number", "badge_number", "folio"}
)

type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	FindByID(ctx context.Context, id string) (*domain.Member, error)
	Update(ctx context.Context, id string, fields map[string]any, address *domain.Address) (*domain.Member, error)
	Search(ctx context.Context, tokens []string) ([]domain.Member, error)
	AddVigencyEvent(ctx context.Context, event *domain.VigencyEvent) error
	ListVigencyEvents(ctx context.Context, memberID string, page PageRequest) (PageResult[domain.VigencyEvent], error)
	SetPhotoPath(ctx context.Context, id, path string) (*string, error)
	SetSignaturePath(ctx context.Context, id, path string) (*string, error)
	FindByLicenseNumber(ctx context.Context, license string) ([]domain.Member, error)
	SetFolio(ctx context.Context, id, folio string) error
	FolioExists(ctx context.Context, folio string) (bool, error)
}

type GormMemberRepository struct{ db *gorm.DB }

func NewMemberRepository(db *gorm.DB) MemberRepository { return &GormMemberRepository{db: db} }

// Create inserts the member and its address in one transaction. A nil folio is replaced by the next
// sequential zero-padded number.
func (r *GormMemberRepository) Create(ctx context.Context, m *domain.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	autoFolio := m.Folio == nil
	var err error
	for attempt := 0; attempt < folioAttempts; attempt++ {
		if autoFolio {
			m.Folio = nil
		}
		if m.Address != nil {
			m.Address.ID = 0
		}
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if autoFolio {
				next, err := nextFolio(tx)
				if err != nil {
					return err
				}
				m.Folio = &next
			}
			if m.Address != nil {
				m.Address.MemberID = m.ID
			}
			return tx.Create(m).Error
		})
		if !autoFolio || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "member", "create", "conflict")
			return fmt.Errorf("%w: %v", ErrFolioTaken, err)
		}
		observability.RecordRepositoryOperation(ctx, "member", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "member", "create", "success")
	return nil
}

func nextFolio(tx *gorm.DB) (string, error) {
	var last []string
	err := tx.Model(&domain.Member{}).
		Where("folio IS NOT NULL AND folio <> ''").
		Order("LENGTH(folio) DESC").Order("folio DESC").
		Limit(1).
		Pluck("folio", &last).Error
	if err != nil {
		return "", err
	}
	n := 0
	if len(last) == 1 {
		if v, err := strconv.Atoi(last[0]); err == nil {
			n = v
		}
	}
	return PadFolio(n + 1), nil
}

// PadFolio renders n zero-padded to the card's folio width.
func PadFolio(n int) string {
	return fmt.Sprintf("%0*d", folioWidth, n)
}

// FindByID loads the member with its address and its most recent vigency events.
func (r *GormMemberRepository) FindByID(ctx context.Context, id string) (*domain.Member, error) {
	var m domain.Member
	err := r.db.WithContext(ctx).
		Preload("Address").
		Preload("VigencyEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("applied_at DESC").Limit(RecentEventsLimit)
		}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "member", "find_by_id", "not_found")
			return nil, ErrMemberNotFound
		}
		observability.RecordRepositoryOperation(ctx, "member", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "member", "find_by_id", "success")
	return &m, nil
}

// Update applies column updates and, when address is non-nil, replaces the member's address.
func (r *GormMemberRepository) Update(ctx context.Context, id string, fields map[string]any, address *domain.Address) (*domain.Member, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, id); err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&domain.Member{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return err
			}
		}
		if address != nil {
			address.ID = 0
			address.MemberID = id
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "member_id"}},
				UpdateAll: true,
			}).Create(address).Error
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return tx.Model(&domain.Member{}).Where("id = ?", id).Update("updated_at", time.Now().UTC()).Error
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMemberNotFound):
			observability.RecordRepositoryOperation(ctx, "member", "update", "not_found")
		case errors.Is(err, gorm.ErrDuplicatedKey):
			observability.RecordRepositoryOperation(ctx, "member", "update", "conflict")
			return nil, fmt.Errorf("%w: %v", ErrFolioTaken, err)
		default:
			observability.RecordRepositoryOperation(ctx, "member", "update", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "member", "update", "success")
	return r.FindByID(ctx, id)
}

func ensureMember(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&domain.Member{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Search matches tokens against the member's names and identifiers. A single token may match any
// name or identifier column; with several tokens every token must match one of the name columns.
// Name comparisons ignore case. Results are newest first.
func (r *GormMemberRepository) Search(ctx context.Context, tokens []string) ([]domain.Member, error) {
	q := r.db.WithContext(ctx).Model(&domain.Member{}).Preload("Address")
	if len(tokens) == 1 {
		cond, args := tokenCondition(tokens[0], true)
		q = q.Where(cond, args...)
	} else {
		for _, tok := range tokens {
			cond, args := tokenCondition(tok, false)
			q = q.Where(cond, args...)
		}
	}
	var members []domain.Member
	err := q.Order("created_at DESC").Limit(SearchLimit).Find(&members).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "member", "search", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "member", "search", "success")
	return members, nil
}

func tokenCondition(token string, withIdentifiers bool) (string, []any) {
	escaped := escapeLike(token)
	lowered := "%" + strings.ToLower(escaped) + "%"
	raw := "%" + escaped + "%"

	parts := make([]string, 0, len(nameColumns)+len(identifierColumns))
	args := make([]any, 0, cap(parts))
	for _, col := range nameColumns {
		parts = append(parts, "LOWER("+col+") LIKE ? ESCAPE '\\'")
		args = append(args, lowered)
	}
	if withIdentifiers {
		for _, col := range identifierColumns {
			parts = append(parts, col+" LIKE ? ESCAPE '\\'")
			args = append(args, raw)
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// AddVigencyEvent appends the event and stamps the member's last renewal time in one transaction.
func (r *GormMemberRepository) AddVigencyEvent(ctx context.Context, event *domain.VigencyEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMember(tx, event.MemberID); err != nil {
			return err
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Member{}).
			Where("id = ?", event.MemberID).
			Updates(map[string]any{"last_vigency_renewal_at": event.AppliedAt, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			observability.RecordRepositoryOperation(ctx, "member", "add_vigency_event", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(ctx, "member", "add_vigency_event", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "member", "add_vigency_event", "success")
	return nil
}

func (r *GormMemberRepository) ListVigencyEvents(ctx context.Context, memberID string, page PageRequest) (PageResult[domain.VigencyEvent], error) {
	req := normalizePageRequest(page)
	result := PageResult[domain.VigencyEvent]{Page: req.Page, PageSize: req.PageSize, Items: []domain.VigencyEvent{}}

	if err := ensureMember(r.db.WithContext(ctx), memberID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			observability.RecordRepositoryOperation(ctx, "member", "list_vigency_events", "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "member", "list_vigency_events", "error")
		}
		return PageResult[domain.VigencyEvent]{}, err
	}
	base := r.db.WithContext(ctx).Model(&domain.VigencyEvent{}).Where("member_id = ?", memberID)
	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "member", "list_vigency_events", "error")
		return PageResult[domain.VigencyEvent]{}, err
	}
	offset := (req.Page - 1) * req.PageSize
	if err := base.Order("applied_at DESC").Offset(offset).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "member", "list_vigency_events", "error")
		return PageResult[domain.VigencyEvent]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(ctx, "member", "list_vigency_events", "success")
	return result, nil
}

// SetPhotoPath records the stored photo and returns the path it replaced, if any.
func (r *GormMemberRepository) SetPhotoPath(ctx context.Context, id, path string) (*string, error) {
	return r.swapPath(ctx, "set_photo_path", "photo_path", id, path)
}

func (r *GormMemberRepository) SetSignaturePath(ctx context.Context, id, path string) (*string, error) {
	return r.swapPath(ctx, "set_signature_path", "signature_path", id, path)
}

func (r *GormMemberRepository) swapPath(ctx context.Context, op, column, id, path string) (*string, error) {
	var previous *string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m domain.Member
		if err := tx.Select("id", column).Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if column == "photo_path" {
			previous = m.PhotoPath
		} else {
			previous = m.SignaturePath
		}
		return tx.Model(&domain.Member{}).Where("id = ?", id).
			Updates(map[string]any{column: path, "updated_at": time.Now().UTC()}).Error
	})
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			observability.RecordRepositoryOperation(ctx, "member", op, "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "member", op, "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "member", op, "success")
	return previous, nil
}

func (r *GormMemberRepository) FindByLicenseNumber(ctx context.Context, license string) ([]domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).Where("license_number = ?", license).Order("created_at ASC").Find(&members).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "member", "find_by_license_number", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "member", "find_by_license_number", "success")
	return members, nil
}

func (r *GormMemberRepository) SetFolio(ctx context.Context, id, folio string) error {
	res := r.db.WithContext(ctx).Model(&domain.Member{}).Where("id = ?", id).
		Updates(map[string]any{"folio": folio, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "member", "set_folio", "conflict")
			return fmt.Errorf("%w: %v", ErrFolioTaken, res.Error)
		}
		observability.RecordRepositoryOperation(ctx, "member", "set_folio", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "member", "set_folio", "not_found")
		return ErrMemberNotFound
	}
	observability.RecordRepositoryOperation(ctx, "member", "set_folio", "success")
	return nil
}

func (r *GormMemberRepository) FolioExists(ctx context.Context, folio string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Member{}).Where("folio = ?", folio).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "member", "folio_exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "member", "folio_exists", "success")
	return count > 0, nil
}
