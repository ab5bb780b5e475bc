package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/repository"
	"github.com/ctm-colima/credential-service/internal/vigency"
)

// CardData holds the printable fields of both sides of a credential.
type CardData struct {
	MemberID      string `json:"memberId"`
	FullName      string `json:"fullName"`
	DOB           string `json:"dob"`
	Age           *int   `json:"age"`
	Vigencia      string `json:"vigencia"`
	Valid         bool   `json:"valid"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"licenseNumber"`
	BadgeNumber   string `json:"badgeNumber"`
	Folio         string `json:"folio"`
	Address       string `json:"address"`

	PhotoURL              string `json:"photoUrl,omitempty"`
	SignatureURL          string `json:"signatureUrl,omitempty"`
	PresidentSignatureURL string `json:"presidentSignatureUrl,omitempty"`
	ValidationURL         string `json:"validationUrl"`

	Adjusters Adjusters `json:"adjusters"`
}

type Adjusters struct {
	Colima     string `json:"colima"`
	Tecoman    string `json:"tecoman"`
	Manzanillo string `json:"manzanillo"`
}

type CardService struct {
	members       repository.MemberRepository
	settings      repository.SettingsRepository
	publicBaseURL string
	now           func() time.Time
}

func NewCardService(members repository.MemberRepository, settings repository.SettingsRepository, publicBaseURL string) *CardService {
	return &CardService{members: members, settings: settings, publicBaseURL: strings.TrimRight(publicBaseURL, "/"), now: time.Now}
}

func (s *CardService) WithClock(now func() time.Time) *CardService {
	s.now = now
	return s
}

func (s *CardService) Card(ctx context.Context, id string) (*CardData, error) {
	m, err := s.members.FindByID(ctx, id)
	if err != nil {
		return nil, memberError(err)
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, memberError(fmt.Errorf("get settings: %w", err))
	}
	now := s.now()

	card := &CardData{
		MemberID:      m.ID,
		FullName:      FormatMemberName(m.FirstName, m.LastName, m.SecondLastName),
		DOB:           formatDMY(m.DOB),
		Phone:         FormatPhone(m.PhoneMX),
		LicenseNumber: m.LicenseNumber,
		BadgeNumber:   m.BadgeNumber,
		Address:       FormatAddress(m.Address),
		ValidationURL: s.publicBaseURL + "/validation/" + m.ID,
		Adjusters: Adjusters{
			Colima:     settings.AdjusterColima,
			Tecoman:    settings.AdjusterTecoman,
			Manzanillo: settings.AdjusterManzanillo,
		},
	}
	if age, err := vigency.Age(m.DOB, now); err == nil {
		card.Age = &age
	} else {
		slog.WarnContext(ctx, "member dob unreadable", "member_id", m.ID, "error", err.Error())
	}
	if m.Vigencia != nil {
		card.Vigencia = formatDMY(*m.Vigencia)
		card.Valid = vigency.IsValid(*m.Vigencia, now)
	}
	if m.Folio != nil {
		card.Folio = *m.Folio
	}
	if m.PhotoPath != nil {
		card.PhotoURL = "/api/v1/users/" + m.ID + "/photo"
	}
	if m.SignaturePath != nil {
		card.SignatureURL = "/api/v1/users/" + m.ID + "/signature"
	}
	if settings.PresidentSignaturePath != nil {
		card.PresidentSignatureURL = "/api/v1/settings/president-signature"
	}
	return card, nil
}

// FormatMemberName renders "First LAST SECOND" with surnames uppercased.
func FormatMemberName(first, last string, secondLast *string) string {
	parts := []string{first, strings.ToUpper(last)}
	if secondLast != nil && *secondLast != "" {
		parts = append(parts, strings.ToUpper(*secondLast))
	}
	return strings.Join(parts, " ")
}

// FormatPhone renders a 10 digit number as XXX-XXX-XXXX. Other input is returned unchanged.
func FormatPhone(phone string) string {
	if len(phone) != 10 || !allDigits(phone) {
		return phone
	}
	return phone[:3] + "-" + phone[3:6] + "-" + phone[6:]
}

func FormatAddress(a *domain.Address) string {
	if a == nil {
		return ""
	}
	street := a.Street
	if a.ExteriorNo != nil {
		street += " " + *a.ExteriorNo
	}
	if a.InteriorNo != nil {
		street += " Int. " + *a.InteriorNo
	}
	parts := []string{street, a.Neighborhood, a.City, a.State, "C.P. " + a.PostalCode}
	return strings.Join(parts, ", ")
}

func formatDMY(raw string) string {
	d, err := vigency.ParseDate(raw)
	if err != nil {
		return ""
	}
	return d.FormatDMY()
}
