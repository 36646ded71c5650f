package ingestion

import (
	"strings"
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Construction & Engineering", CategoryConstruction},
		{"CONSTRUCTION &amp; ENGINEERING", CategoryConstruction},
		{"  construction   &  engineering ", CategoryConstruction},
		{"Information Technology", CategoryICT},
		{"Oil and Gas", CategoryOilGas},
		{"Fisheries", "Fisheries"},
		{"", ""},
		{strings.Repeat("x", 80), strings.Repeat("x", maxCategoryLength)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeCategory(tt.raw); got != tt.want {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeCategory_Deterministic(t *testing.T) {
	variants := []string{"Construction & Engineering", "construction & engineering", "CONSTRUCTION & ENGINEERING"}
	for i := 0; i < 10; i++ {
		for _, v := range variants {
			if got := NormalizeCategory(v); got != CategoryConstruction {
				t.Fatalf("run %d: NormalizeCategory(%q) = %q", i, v, got)
			}
		}
	}
}

func TestNormalizeCategories(t *testing.T) {
	got := normalizeCategories([]string{"10/03/2026", "N/A", "n/a", "Works", "Construction", "ICT", "Health", "Supplies"})
	want := []string{CategoryConstruction, CategoryICT, CategoryHealthcare}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Construction of a 2km road", CategoryConstruction},
		{"ICT infrastructure upgrade", CategoryICT},
		{"Accounting software", CategoryICT},
		{"Consulting services for audit", CategoryConsultancy},
		{"Medical Equipment", CategoryHealthcare},
		{"Supply of office chairs", CategorySupplies},
		{"Cleaning service", CategoryServices},
		{"Dredging", CategoryGeneral},
		{"District headquarters", CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := InferCategory(tt.text); got != tt.want {
				t.Errorf("InferCategory(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
