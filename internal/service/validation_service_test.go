package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ctm-colima/credential-service/internal/apperr"
)

func TestValidationServiceVigencyBoundary(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		valid bool
	}{
		{name: "day before", now: time.Date(2025, 12, 30, 23, 59, 0, 0, time.UTC), valid: true},
		{name: "on the day", now: time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), valid: true},
		{name: "next day", now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), valid: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newInMemoryMemberRepo(sampleMember())
			svc := NewValidationService(repo, nil, time.Minute).WithClock(func() time.Time { return tc.now })
			got, err := svc.Validate(context.Background(), "m-1")
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if got.Valid != tc.valid {
				t.Fatalf("valid = %v, want %v", got.Valid, tc.valid)
			}
		})
	}
}

func TestValidationServiceWithoutVigenciaIsInvalid(t *testing.T) {
	m := sampleMember()
	m.Vigencia = nil
	svc := NewValidationService(newInMemoryMemberRepo(m), nil, time.Minute)
	got, err := svc.Validate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Valid || got.Vigencia != nil {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestValidationServiceExposesOnlyPublicFields(t *testing.T) {
	svc := NewValidationService(newInMemoryMemberRepo(sampleMember()), nil, time.Minute)
	got, err := svc.Validate(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	raw, _ := json.Marshal(got)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	want := map[string]bool{"id": true, "firstName": true, "lastName": true, "secondLastName": true, "vigencia": true, "valid": true}
	for k := range fields {
		if !want[k] {
			t.Fatalf("public payload leaks %q: %s", k, raw)
		}
	}
}

func TestValidationServiceCachesUnknownIDs(t *testing.T) {
	repo := newInMemoryMemberRepo()
	cache := NewInMemoryUnknownCredentialCache(16)
	svc := NewValidationService(repo, cache, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Validate(ctx, "ghost"); apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("attempt %d: expected not found, got %v", i, err)
		}
	}
	if repo.finds != 1 {
		t.Fatalf("expected a single store lookup, got %d", repo.finds)
	}
}

func TestValidationServiceNewMemberNotShadowedByCachedUnknownID(t *testing.T) {
	repo := newInMemoryMemberRepo()
	cache := NewInMemoryUnknownCredentialCache(16)
	svc := NewValidationService(repo, cache, time.Minute)
	files, _ := newTestFileStore(t)
	members := NewMemberService(repo, files, testMaxUpload)
	ctx := context.Background()

	if _, err := svc.Validate(ctx, "ghost"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	// an id in the create payload is not a field the request accepts
	req := validCreateRequest()
	raw, _ := json.Marshal(req)
	var withID map[string]any
	_ = json.Unmarshal(raw, &withID)
	withID["id"] = "ghost"
	raw, _ = json.Marshal(withID)
	var decoded CreateMemberRequest
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	created, err := members.Create(ctx, decoded)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "ghost" {
		t.Fatal("create must not take the member id from the request")
	}
	if _, err := svc.Validate(ctx, created.ID); err != nil {
		t.Fatalf("new member should validate: %v", err)
	}
}
