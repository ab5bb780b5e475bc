package service

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/domain"
	"github.com/ctm-colima/credential-service/internal/vigency"
)

const (
	maxNameLen       = 120
	maxIdentifierLen = 64
	maxNoteLen       = 500
	maxAdjusterLen   = 32
)

type fieldErrors map[string]string

func (f fieldErrors) add(field, problem string) {
	if _, exists := f[field]; !exists {
		f[field] = problem
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation("invalid request", map[string]string(f))
}

func (f fieldErrors) required(field, value string, max int) {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		f.add(field, "is required")
	case utf8.RuneCountInString(v) > max:
		f.add(field, "is too long")
	}
}

func (f fieldErrors) date(field, value string) {
	if _, err := vigency.Normalize(value); err != nil {
		f.add(field, "must be a valid YYYY-MM-DD date")
	}
}

func (f fieldErrors) digits(field, value string, n int) {
	if len(value) != n || !allDigits(value) {
		f.add(field, "must be exactly "+strconv.Itoa(n)+" digits")
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	f := fieldErrors{}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		f.add("email", "is required")
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		f.add("email", "must be a valid email address")
	}
	if r.Password == "" {
		f.add("password", "is required")
	}
	return f.err()
}

type AddressInput struct {
	Street       string  `json:"street"`
	ExteriorNo   *string `json:"exteriorNo,omitempty"`
	InteriorNo   *string `json:"interiorNo,omitempty"`
	Neighborhood string  `json:"neighborhood"`
	City         string  `json:"city"`
	Municipality string  `json:"municipality"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postalCode"`
	References   *string `json:"references,omitempty"`
}

func (a *AddressInput) validate(f fieldErrors) {
	f.required("address.street", a.Street, 200)
	f.required("address.neighborhood", a.Neighborhood, maxNameLen)
	f.required("address.city", a.City, maxNameLen)
	f.required("address.municipality", a.Municipality, maxNameLen)
	f.required("address.state", a.State, maxNameLen)
	f.digits("address.postalCode", strings.TrimSpace(a.PostalCode), 5)
}

func (a *AddressInput) toDomain() *domain.Address {
	return &domain.Address{
		Street:       strings.TrimSpace(a.Street),
		ExteriorNo:   trimOptional(a.ExteriorNo),
		InteriorNo:   trimOptional(a.InteriorNo),
		Neighborhood: strings.TrimSpace(a.Neighborhood),
		City:         strings.TrimSpace(a.City),
		Municipality: strings.TrimSpace(a.Municipality),
		State:        strings.TrimSpace(a.State),
		PostalCode:   strings.TrimSpace(a.PostalCode),
		References:   trimOptional(a.References),
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type CreateMemberRequest struct {
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	SecondLastName *string       `json:"secondLastName,omitempty"`
	DOB            string        `json:"dob"`
	Vigencia       *string       `json:"vigencia,omitempty"`
	PhoneMX        string        `json:"phoneMx"`
	LicenseNumber  string        `json:"licenseNumber"`
	BadgeNumber    string        `json:"badgeNumber"`
	Folio          *string       `json:"folio,omitempty"`
	Address        *AddressInput `json:"address"`
}

func (r *CreateMemberRequest) Validate() error {
	f := fieldErrors{}
	f.required("firstName", r.FirstName, maxNameLen)
	f.required("lastName", r.LastName, maxNameLen)
	if r.SecondLastName != nil && utf8.RuneCountInString(strings.TrimSpace(*r.SecondLastName)) > maxNameLen {
		f.add("secondLastName", "is too long")
	}
	f.date("dob", r.DOB)
	if r.Vigencia != nil && strings.TrimSpace(*r.Vigencia) != "" {
		f.date("vigencia", *r.Vigencia)
	}
	f.digits("phoneMx", strings.TrimSpace(r.PhoneMX), 10)
	f.required("licenseNumber", r.LicenseNumber, maxIdentifierLen)
	f.required("badgeNumber", r.BadgeNumber, maxIdentifierLen)
	if r.Folio != nil && strings.TrimSpace(*r.Folio) != "" && !validFolio(strings.TrimSpace(*r.Folio)) {
		f.add("folio", "must be numeric")
	}
	if r.Address == nil {
		f.add("address", "is required")
	} else {
		r.Address.validate(f)
	}
	return f.err()
}

func validFolio(s string) bool {
	return allDigits(s) && len(s) <= 16
}

func (r *CreateMemberRequest) toDomain() *domain.Member {
	dob, _ := vigency.Normalize(r.DOB)
	m := &domain.Member{
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		SecondLastName: trimOptional(r.SecondLastName),
		DOB:            dob,
		PhoneMX:        strings.TrimSpace(r.PhoneMX),
		LicenseNumber:  strings.TrimSpace(r.LicenseNumber),
		BadgeNumber:    strings.TrimSpace(r.BadgeNumber),
		Folio:          trimOptional(r.Folio),
		Address:        r.Address.toDomain(),
	}
	if r.Vigencia != nil {
		if v, err := vigency.Normalize(*r.Vigencia); err == nil {
			m.Vigencia = &v
		}
	}
	return m
}

// UpdateMemberRequest is a partial update. Nil fields are left unchanged; an empty string clears
// an optional field. A present address replaces the stored one.
type UpdateMemberRequest struct {
	FirstName      *string       `json:"firstName,omitempty"`
	LastName       *string       `json:"lastName,omitempty"`
	SecondLastName *string       `json:"secondLastName,omitempty"`
	DOB            *string       `json:"dob,omitempty"`
	Vigencia       *string       `json:"vigencia,omitempty"`
	PhoneMX        *string       `json:"phoneMx,omitempty"`
	LicenseNumber  *string       `json:"licenseNumber,omitempty"`
	BadgeNumber    *string       `json:"badgeNumber,omitempty"`
	Folio          *string       `json:"folio,omitempty"`
	Address        *AddressInput `json:"address,omitempty"`
}

func (r *UpdateMemberRequest) Validate() error {
	f := fieldErrors{}
	if r.FirstName != nil {
		f.required("firstName", *r.FirstName, maxNameLen)
	}
	if r.LastName != nil {
		f.required("lastName", *r.LastName, maxNameLen)
	}
	if r.SecondLastName != nil && utf8.RuneCountInString(strings.TrimSpace(*r.SecondLastName)) > maxNameLen {
		f.add("secondLastName", "is too long")
	}
	if r.DOB != nil {
		f.date("dob", *r.DOB)
	}
	if r.Vigencia != nil && strings.TrimSpace(*r.Vigencia) != "" {
		f.date("vigencia", *r.Vigencia)
	}
	if r.PhoneMX != nil {
		f.digits("phoneMx", strings.TrimSpace(*r.PhoneMX), 10)
	}
	if r.LicenseNumber != nil {
		f.required("licenseNumber", *r.LicenseNumber, maxIdentifierLen)
	}
	if r.BadgeNumber != nil {
		f.required("badgeNumber", *r.BadgeNumber, maxIdentifierLen)
	}
	if r.Folio != nil && strings.TrimSpace(*r.Folio) != "" && !validFolio(strings.TrimSpace(*r.Folio)) {
		f.add("folio", "must be numeric")
	}
	if r.Address != nil {
		r.Address.validate(f)
	}
	if len(f) == 0 && len(r.fields()) == 0 && r.Address == nil {
		return apperr.Validation("no fields to update", nil)
	}
	return f.err()
}

// fields maps the present fields to their column updates. Call after Validate.
func (r *UpdateMemberRequest) fields() map[string]any {
	out := map[string]any{}
	setTrimmed := func(col string, v *string) {
		if v != nil {
			out[col] = strings.TrimSpace(*v)
		}
	}
	setNullable := func(col string, v *string) {
		if v == nil {
			return
		}
		if t := trimOptional(v); t != nil {
			out[col] = *t
		} else {
			out[col] = nil
		}
	}
	setTrimmed("first_name", r.FirstName)
	setTrimmed("last_name", r.LastName)
	setNullable("second_last_name", r.SecondLastName)
	if r.DOB != nil {
		if v, err := vigency.Normalize(*r.DOB); err == nil {
			out["dob"] = v
		}
	}
	if r.Vigencia != nil {
		if v, err := vigency.Normalize(*r.Vigencia); err == nil {
			out["vigencia"] = v
		} else if strings.TrimSpace(*r.Vigencia) == "" {
			out["vigencia"] = nil
		}
	}
	setTrimmed("phone_mx", r.PhoneMX)
	setTrimmed("license_number", r.LicenseNumber)
	setTrimmed("badge_number", r.BadgeNumber)
	setNullable("folio", r.Folio)
	return out
}

type RenewVigencyRequest struct {
	Note *string `json:"note,omitempty"`
}

func (r *RenewVigencyRequest) Validate() error {
	if r.Note != nil && utf8.RuneCountInString(*r.Note) > maxNoteLen {
		return apperr.FieldError("note", "must be at most 500 characters")
	}
	return nil
}

type SettingsRequest struct {
	AdjusterColima     string `json:"adjusterColima"`
	AdjusterTecoman    string `json:"adjusterTecoman"`
	AdjusterManzanillo string `json:"adjusterManzanillo"`
}

func (r *SettingsRequest) Validate() error {
	f := fieldErrors{}
	f.required("adjusterColima", r.AdjusterColima, maxAdjusterLen)
	f.required("adjusterTecoman", r.AdjusterTecoman, maxAdjusterLen)
	f.required("adjusterManzanillo", r.AdjusterManzanillo, maxAdjusterLen)
	return f.err()
}

// SearchTokens splits a free-text query on whitespace. An empty result is a validation error.
func SearchTokens(query string) ([]string, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, apperr.FieldError("query", "is required")
	}
	return tokens, nil
}
