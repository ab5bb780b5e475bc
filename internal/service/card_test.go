package service

import (
	"context"
	"testing"
	"time"

	"github.com/ctm-colima/credential-service/internal/apperr"
	"github.com/ctm-colima/credential-service/internal/domain"
)

func TestFormatMemberName(t *testing.T) {
	tests := []struct {
		first, last string
		second      *string
		want        string
	}{
		{"Juan", "Pérez", strPtr("gómez"), "Juan PÉREZ GÓMEZ"},
		{"Ana", "López", nil, "Ana LÓPEZ"},
		{"Ana", "López", strPtr(""), "Ana LÓPEZ"},
	}
	for _, tc := range tests {
		if got := FormatMemberName(tc.first, tc.last, tc.second); got != tc.want {
			t.Errorf("FormatMemberName(%q,%q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	tests := map[string]string{
		"3121234567": "312-123-4567",
		"312123456":  "312123456",
		"31212345ab": "31212345ab",
		"":           "",
	}
	for in, want := range tests {
		if got := FormatPhone(in); got != want {
			t.Errorf("FormatPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatAddress(t *testing.T) {
	a := &domain.Address{
		Street: "Av. Rey Colimán", ExteriorNo: strPtr("120"), InteriorNo: strPtr("B"),
		Neighborhood: "Centro", City: "Colima", State: "Colima", PostalCode: "28000",
	}
	want := "Av. Rey Colimán 120 Int. B, Centro, Colima, Colima, C.P. 28000"
	if got := FormatAddress(a); got != want {
		t.Fatalf("FormatAddress = %q, want %q", got, want)
	}
	if FormatAddress(nil) != "" {
		t.Fatal("nil address should render empty")
	}
}

func TestCardServiceBuildsCard(t *testing.T) {
	m := sampleMember()
	m.SecondLastName = strPtr("Gómez")
	m.PhotoPath = strPtr("photos/m-1-a.png")
	m.Address = &domain.Address{Street: "Calle 1", Neighborhood: "Centro", City: "Colima", State: "Colima", PostalCode: "28000"}
	settings := &inMemorySettingsRepo{settings: domain.Settings{AdjusterColima: "12345", AdjusterTecoman: "67890", AdjusterManzanillo: "54321"}}
	now := time.Date(2025, 5, 9, 9, 0, 0, 0, time.UTC)
	svc := NewCardService(newInMemoryMemberRepo(m), settings, "https://ctm.example/").WithClock(func() time.Time { return now })

	card, err := svc.Card(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if card.FullName != "Juan PÉREZ GÓMEZ" {
		t.Errorf("full name %q", card.FullName)
	}
	if card.DOB != "10/05/1980" || card.Vigencia != "31/12/2025" {
		t.Errorf("dates %q %q", card.DOB, card.Vigencia)
	}
	if card.Age == nil || *card.Age != 44 {
		t.Errorf("age %v, want 44 the day before the birthday", card.Age)
	}
	if !card.Valid {
		t.Error("card should be valid")
	}
	if card.Phone != "312-123-4567" || card.Folio != "0001" {
		t.Errorf("phone %q folio %q", card.Phone, card.Folio)
	}
	if card.ValidationURL != "https://ctm.example/validation/m-1" {
		t.Errorf("validation url %q", card.ValidationURL)
	}
	if card.PhotoURL == "" || card.SignatureURL != "" || card.PresidentSignatureURL != "" {
		t.Errorf("image urls %q %q %q", card.PhotoURL, card.SignatureURL, card.PresidentSignatureURL)
	}
	if card.Adjusters != (Adjusters{Colima: "12345", Tecoman: "67890", Manzanillo: "54321"}) {
		t.Errorf("adjusters %+v", card.Adjusters)
	}
}

func TestCardServiceUnknownMember(t *testing.T) {
	svc := NewCardService(newInMemoryMemberRepo(), &inMemorySettingsRepo{}, "http://localhost")
	if _, err := svc.Card(context.Background(), "nope"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
