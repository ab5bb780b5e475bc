// Package seed provisions the initial admin account and default card settings.
package seed

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/security"
)

// Default adjuster phone numbers printed on new cards until an admin edits them.
var DefaultSettings = domain.Settings{
	AdjusterColima:     "12345",
	AdjusterTecoman:    "67890",
	AdjusterManzanillo: "54321",
}

type Options struct {
	AdminEmail    string
	AdminPassword string
}

// Run creates the admin when its email is not registered and fills the settings row with defaults
// when no adjuster has been configured. Existing data is never overwritten.
func Run(ctx context.Context, admins repository.AdminRepository, settings repository.SettingsRepository, opts Options) ([]string, error) {
	email := strings.TrimSpace(opts.AdminEmail)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("invalid admin email %q", opts.AdminEmail)
	}
	if opts.AdminPassword == "" {
		return nil, errors.New("SEED_ADMIN_PASSWORD is required")
	}

	var details []string
	existing, err := admins.FindByEmail(ctx, email)
	switch {
	case err == nil:
		details = append(details, "admin "+existing.Email+" already exists")
	case errors.Is(err, repository.ErrAdminNotFound):
		hash, err := security.HashPassword(opts.AdminPassword)
		if err != nil {
			return details, err
		}
		admin := &domain.Admin{ID: uuid.NewString(), Email: email, PasswordHash: hash}
		if err := admins.Upsert(ctx, admin); err != nil {
			return details, fmt.Errorf("create admin: %w", err)
		}
		details = append(details, "admin "+admin.Email+" created")
	default:
		return details, fmt.Errorf("find admin: %w", err)
	}

	current, err := settings.Get(ctx)
	if err != nil {
		return details, fmt.Errorf("load settings: %w", err)
	}
	if current.AdjusterColima != "" || current.AdjusterTecoman != "" || current.AdjusterManzanillo != "" {
		return append(details, "settings already configured"), nil
	}
	defaults := DefaultSettings
	if _, err := settings.Upsert(ctx, &defaults); err != nil {
		return details, fmt.Errorf("write default settings: %w", err)
	}
	return append(details, "default settings created"), nil
}
