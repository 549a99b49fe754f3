package service

import (
	"testing"
	"time"

	"tokolaris/backend/internal/domain"
)

func TestDiffFieldsReportsChangedFieldsOnly(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := domain.Customer{
		ID: "c1", Code: "C00001", Name: "Budi Santoso", Phone: "0812-1111-0001",
		MemberTier: "gold", CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	after := before
	after.Name = "Budi S."
	after.MemberTier = "platinum"

	changes := DiffFields(before, after)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}

	// Output is sorted by field name.
	if changes[0].Field != "member_tier" || changes[1].Field != "name" {
		t.Fatalf("unexpected field order: %+v", changes)
	}
	if changes[1].Before != "Budi Santoso" || changes[1].After != "Budi S." {
		t.Fatalf("unexpected name change values: %+v", changes[1])
	}
}

func TestDiffFieldsNoChanges(t *testing.T) {
	customer := domain.Customer{ID: "c1", Code: "C00001", Name: "Budi Santoso"}
	if changes := DiffFields(customer, customer); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestDiffFieldsNestedValuesReplacedWholesale(t *testing.T) {
	type inner struct {
		City string `json:"city"`
		Zip  string `json:"zip"`
	}
	type outer struct {
		Name    string `json:"name"`
		Address inner  `json:"address"`
	}

	before := outer{Name: "a", Address: inner{City: "Jakarta", Zip: "10110"}}
	after := outer{Name: "a", Address: inner{City: "Bandung", Zip: "10110"}}

	changes := DiffFields(before, after)
	if len(changes) != 1 || changes[0].Field != "address" {
		t.Fatalf("expected one address change, got %+v", changes)
	}
	beforeMap, ok := changes[0].Before.(map[string]any)
	if !ok || beforeMap["city"] != "Jakarta" {
		t.Fatalf("expected full before value for nested field, got %+v", changes[0].Before)
	}
}

func TestEncodeFieldChanges(t *testing.T) {
	if got := encodeFieldChanges(nil); got != "no_changes" {
		t.Fatalf("expected no_changes, got %s", got)
	}
	encoded := encodeFieldChanges([]domain.FieldChange{{Field: "name", Before: "a", After: "b"}})
	if encoded == "" || encoded == "diff_unavailable" {
		t.Fatalf("unexpected encoding %q", encoded)
	}
}
