package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/observability"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/security"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "INVALID_CREDENTIALS", "invalid email or password")
	ErrUnauthenticated    = apperr.New(apperr.KindUnauthenticated, "UNAUTHORIZED", "authentication required")
	ErrSessionExpired     = apperr.New(apperr.KindUnauthenticated, "UNAUTHORIZED", "session expired")
)

type AdminIdentity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResult struct {
	Admin     AdminIdentity
	Token     string
	ExpiresAt time.Time
}

// SessionService owns the admin session lifecycle: login, per-request validation and logout.
type SessionService struct {
	admins   repository.AdminRepository
	sessions repository.SessionRepository
	hasher   *security.TokenHasher
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(admins repository.AdminRepository, sessions repository.SessionRepository, hasher *security.TokenHasher, ttl time.Duration) *SessionService {
	return &SessionService{admins: admins, sessions: sessions, hasher: hasher, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		observability.RecordAuthLogin(ctx, "invalid_request")
		return nil, err
	}
	admin, err := s.admins.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			security.BurnPasswordCheck(req.Password)
			observability.RecordAuthLogin(ctx, "invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthLogin(ctx, "error")
		return nil, apperr.Internal(fmt.Errorf("find admin: %w", err))
	}
	ok, err := security.VerifyPassword(admin.PasswordHash, req.Password)
	if err != nil {
		slog.ErrorContext(ctx, "stored password hash unusable", "admin_id", admin.ID, "error", err.Error())
	}
	if !ok {
		observability.RecordAuthLogin(ctx, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if n, err := s.sessions.DeleteExpiredByAdmin(ctx, admin.ID, now); err != nil {
		slog.WarnContext(ctx, "expired session cleanup failed", "admin_id", admin.ID, "error", err.Error())
	} else if n > 0 {
		slog.DebugContext(ctx, "expired sessions removed", "admin_id", admin.ID, "count", n)
	}

	token, err := security.GenerateSessionToken()
	if err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, apperr.Internal(fmt.Errorf("generate session token: %w", err))
	}
	session := &domain.Session{
		ID:        uuid.NewString(),
		TokenHash: s.hasher.Hash(token),
		AdminID:   admin.ID,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, apperr.Internal(fmt.Errorf("create session: %w", err))
	}
	observability.RecordAuthLogin(ctx, "success")
	return &LoginResult{Admin: identityOf(admin), Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Validate resolves a raw session token to its admin. An expired session is deleted before
// ErrSessionExpired is returned.
func (s *SessionService) Validate(ctx context.Context, token string) (*AdminIdentity, error) {
	if token == "" {
		observability.RecordSessionValidation(ctx, "missing", "request")
		return nil, ErrUnauthenticated
	}
	session, err := s.sessions.FindByTokenHash(ctx, s.hasher.Hash(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionValidation(ctx, "unknown", "request")
			return nil, ErrUnauthenticated
		}
		observability.RecordSessionValidation(ctx, "error", "request")
		return nil, apperr.Internal(fmt.Errorf("find session: %w", err))
	}
	if session.Expired(s.now()) {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			observability.RecordSessionValidation(ctx, "error", "request")
			return nil, apperr.Internal(fmt.Errorf("delete expired session: %w", err))
		}
		observability.RecordSessionValidation(ctx, "expired", "request")
		return nil, ErrSessionExpired
	}
	admin, err := s.admins.FindByID(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			observability.RecordSessionValidation(ctx, "orphaned", "request")
			return nil, ErrUnauthenticated
		}
		observability.RecordSessionValidation(ctx, "error", "request")
		return nil, apperr.Internal(fmt.Errorf("find admin: %w", err))
	}
	observability.RecordSessionValidation(ctx, "valid", "request")
	id := identityOf(admin)
	return &id, nil
}

// Logout deletes the session for token. Unknown or empty tokens succeed.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		observability.RecordAuthLogout(ctx, "no_session")
		return nil
	}
	deleted, err := s.sessions.DeleteByTokenHash(ctx, s.hasher.Hash(token))
	if err != nil {
		observability.RecordAuthLogout(ctx, "error")
		return apperr.Internal(fmt.Errorf("delete session: %w", err))
	}
	if deleted {
		observability.RecordAuthLogout(ctx, "success")
	} else {
		observability.RecordAuthLogout(ctx, "no_session")
	}
	return nil
}

func identityOf(a *domain.Admin) AdminIdentity {
	return AdminIdentity{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}
