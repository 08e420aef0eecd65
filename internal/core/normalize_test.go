package core

import (
	"testing"
	"time"
)

// ============================================================================
// Phone Tests
// ============================================================================

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "TBD"},
		{"9123456", "09123456"},
		{"09123456", "09123456"},
		{"TBD", "TBD"},
		{"", ""},
		{"+628123", "0+628123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Date Tests
// ============================================================================

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"iso", "1990-05-17", "1990-05-17"},
		{"iso with time", "1990-05-17 10:30:00", "1990-05-17"},
		{"us four digit", "05/17/1990", "1990-05-17"},
		{"slashes year first", "1990/05/17", "1990-05-17"},
		{"compact", "19900517", "1990-05-17"},
		{"month name", "May 17, 1990", "1990-05-17"},
		{"two digit recent", "03/04/30", "2030-03-04"},
		{"two digit past pivot", "03/04/50", "1950-03-04"},
		{"empty", "", ""},
		{"garbage", "not a date", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeDate(tt.in, now); got != tt.want {
				t.Errorf("normalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Name Stripping Tests
// ============================================================================

func TestCompileStripPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		in      string
		want    string
	}{
		{"delimited with flag", "/[^a-z ]/i", "Jo-hn O'Neil", "John ONeil"},
		{"delimited without flag", "/[^a-z]/", "AbC", "b"},
		{"hash delimiter", "#[0-9]+#", "R2D2", "RD"},
		{"plain expression", "[.,]", "St. John, Jr", "St John Jr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompileStripPattern(tt.pattern)
			if err != nil {
				t.Fatalf("CompileStripPattern(%q) error: %v", tt.pattern, err)
			}
			if got := re.ReplaceAllString(tt.in, ""); got != tt.want {
				t.Errorf("strip %q with %q = %q, want %q", tt.in, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestCompileStripPattern_Invalid(t *testing.T) {
	if _, err := CompileStripPattern("/[a-/"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestNewNormalizer_EmptyPatternKeepsNames(t *testing.T) {
	n, err := NewNormalizer("")
	if err != nil {
		t.Fatalf("NewNormalizer error: %v", err)
	}
	if got := n.StripName("O'Neil"); got != "O'Neil" {
		t.Errorf("StripName = %q, want unchanged", got)
	}
}

// ============================================================================
// Row Tests
// ============================================================================

func TestNormalizer_Normalize(t *testing.T) {
	n, err := NewNormalizer("/[^a-z ]/i")
	if err != nil {
		t.Fatalf("NewNormalizer error: %v", err)
	}

	got := n.Normalize(OutletRecord{
		CustomerCode: "C1",
		FirstName:    "Bu-di",
		LastName:     "San.toso",
		Telephone:    "8123",
		DOB:          "1990/05/17",
	})

	if got.FirstName != "Budi" || got.LastName != "Santoso" {
		t.Errorf("names = %q %q, want Budi Santoso", got.FirstName, got.LastName)
	}
	if got.Telephone != "08123" {
		t.Errorf("Telephone = %q, want 08123", got.Telephone)
	}
	if got.DOB != "1990-05-17" {
		t.Errorf("DOB = %q, want 1990-05-17", got.DOB)
	}
	if got.B2BCustomer != "0" {
		t.Errorf("B2BCustomer = %q, want default 0", got.B2BCustomer)
	}
}

func TestNormalizer_KeepsB2BFlag(t *testing.T) {
	n, _ := NewNormalizer("")
	for _, in := range []FeedValue{"1", "0"} {
		if got := n.Normalize(OutletRecord{B2BCustomer: in}).B2BCustomer; got != in {
			t.Errorf("B2BCustomer %q normalized to %q", in, got)
		}
	}
	if got := n.Normalize(OutletRecord{B2BCustomer: "null"}).B2BCustomer; got != "0" {
		t.Errorf("null B2BCustomer normalized to %q, want 0", got)
	}
}
