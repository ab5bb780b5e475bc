package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/repository"
)

type inMemorySessionRepo struct {
	mu      sync.Mutex
	byHash  map[string]*domain.Session
	findErr error
}

func newInMemorySessionRepo() *inMemorySessionRepo {
	return &inMemorySessionRepo{byHash: map[string]*domain.Session{}}
}

func (r *inMemorySessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.byHash[cp.TokenHash] = &cp
	return nil
}

func (r *inMemorySessionRepo) FindByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, s := range r.byHash {
		if s.ID == id {
			delete(r.byHash, h)
		}
	}
	return nil
}

func (r *inMemorySessionRepo) DeleteByTokenHash(_ context.Context, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byHash[hash]
	delete(r.byHash, hash)
	return ok, nil
}

func (r *inMemorySessionRepo) DeleteExpiredByAdmin(_ context.Context, adminID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, s := range r.byHash {
		if s.AdminID == adminID && s.Expired(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, s := range r.byHash {
		if s.Expired(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

type inMemoryAdminRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Admin
}

func newInMemoryAdminRepo(admins ...*domain.Admin) *inMemoryAdminRepo {
	r := &inMemoryAdminRepo{byEmail: map[string]*domain.Admin{}}
	for _, a := range admins {
		r.byEmail[a.Email] = a
	}
	return r
}

func (r *inMemoryAdminRepo) FindByID(_ context.Context, id string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byEmail {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrAdminNotFound
}

func (r *inMemoryAdminRepo) FindByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAdminRepo) Upsert(_ context.Context, a *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byEmail[a.Email] = &cp
	return nil
}

// inMemoryMemberRepo covers the lookups the services need. Search and paging are exercised
// against sqlite in the repository package.
type inMemoryMemberRepo struct {
	mu      sync.Mutex
	members map[string]*domain.Member
	events  []domain.VigencyEvent
	finds   int
}

func newInMemoryMemberRepo(members ...*domain.Member) *inMemoryMemberRepo {
	r := &inMemoryMemberRepo{members: map[string]*domain.Member{}}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *inMemoryMemberRepo) Create(_ context.Context, m *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = "generated-" + m.FirstName
	}
	if m.Folio == nil {
		f := repository.PadFolio(len(r.members) + 1)
		m.Folio = &f
	}
	for _, other := range r.members {
		if other.Folio != nil && *other.Folio == *m.Folio {
			return repository.ErrFolioTaken
		}
	}
	cp := *m
	r.members[m.ID] = &cp
	return nil
}

func (r *inMemoryMemberRepo) FindByID(_ context.Context, id string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	m, ok := r.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryMemberRepo) Update(ctx context.Context, id string, fields map[string]any, address *domain.Address) (*domain.Member, error) {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok {
		r.mu.Unlock()
		return nil, repository.ErrMemberNotFound
	}
	for k, v := range fields {
		switch k {
		case "first_name":
			m.FirstName = v.(string)
		case "vigencia":
			if v == nil {
				m.Vigencia = nil
			} else {
				s := v.(string)
				m.Vigencia = &s
			}
		case "phone_mx":
			m.PhoneMX = v.(string)
		}
	}
	if address != nil {
		m.Address = address
	}
	r.mu.Unlock()
	return r.FindByID(ctx, id)
}

func (r *inMemoryMemberRepo) Search(_ context.Context, tokens []string) ([]domain.Member, error) {
	return nil, nil
}

func (r *inMemoryMemberRepo) AddVigencyEvent(_ context.Context, ev *domain.VigencyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[ev.MemberID]
	if !ok {
		return repository.ErrMemberNotFound
	}
	at := ev.AppliedAt
	m.LastVigencyRenewalAt = &at
	r.events = append(r.events, *ev)
	return nil
}

func (r *inMemoryMemberRepo) ListVigencyEvents(_ context.Context, memberID string, page repository.PageRequest) (repository.PageResult[domain.VigencyEvent], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[memberID]; !ok {
		return repository.PageResult[domain.VigencyEvent]{}, repository.ErrMemberNotFound
	}
	var items []domain.VigencyEvent
	for _, e := range r.events {
		if e.MemberID == memberID {
			items = append(items, e)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AppliedAt.After(items[j].AppliedAt) })
	return repository.PageResult[domain.VigencyEvent]{Items: items, Page: 1, PageSize: len(items), Total: int64(len(items)), TotalPages: 1}, nil
}

func (r *inMemoryMemberRepo) SetPhotoPath(_ context.Context, id, path string) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	prev := m.PhotoPath
	m.PhotoPath = &path
	return prev, nil
}

func (r *inMemoryMemberRepo) SetSignaturePath(_ context.Context, id, path string) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	prev := m.SignaturePath
	m.SignaturePath = &path
	return prev, nil
}

func (r *inMemoryMemberRepo) FindByLicenseNumber(_ context.Context, license string) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Member
	for _, m := range r.members {
		if m.LicenseNumber == license {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *inMemoryMemberRepo) SetFolio(_ context.Context, id, folio string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return repository.ErrMemberNotFound
	}
	m.Folio = &folio
	return nil
}

func (r *inMemoryMemberRepo) FolioExists(_ context.Context, folio string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.Folio != nil && *m.Folio == folio {
			return true, nil
		}
	}
	return false, nil
}

type inMemorySettingsRepo struct {
	mu       sync.Mutex
	settings domain.Settings
}

func (r *inMemorySettingsRepo) Get(context.Context) (*domain.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := r.settings
	cp.ID = domain.SettingsID
	return &cp, nil
}

func (r *inMemorySettingsRepo) Upsert(ctx context.Context, s *domain.Settings) (*domain.Settings, error) {
	r.mu.Lock()
	r.settings.AdjusterColima = s.AdjusterColima
	r.settings.AdjusterTecoman = s.AdjusterTecoman
	r.settings.AdjusterManzanillo = s.AdjusterManzanillo
	r.mu.Unlock()
	return r.Get(ctx)
}

func (r *inMemorySettingsRepo) SetPresidentSignature(_ context.Context, path string) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.settings.PresidentSignaturePath
	r.settings.PresidentSignaturePath = &path
	return prev, nil
}

func strPtr(v string) *string { return &v }
