package provider

import (
	"errors"
	"testing"

	"github.com/chasqui-io/chasqui/internal/domain"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"local ten digits", "0991234567", "5930991234567"},
		{"local nine digits", "991234567", "593991234567"},
		{"already prefixed", "5930991234567", "5930991234567"},
		{"formatted input", "+593 099-123-4567", "5930991234567"},
		{"short number untouched", "12345", "12345"},
		{"long international untouched", "14155552671000", "14155552671000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatPhoneNumber(tc.in, DefaultCountryCode)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("FormatPhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatPhoneNumberEmpty(t *testing.T) {
	for _, in := range []string{"", "++--", "abc"} {
		if _, err := FormatPhoneNumber(in, DefaultCountryCode); !errors.Is(err, domain.ErrInvalidNumber) {
			t.Errorf("FormatPhoneNumber(%q): expected ErrInvalidNumber, got %v", in, err)
		}
	}
}

func TestAddressHelpers(t *testing.T) {
	if !IsLinkID("abcdef@lid") {
		t.Error("IsLinkID should accept @lid addresses")
	}
	if IsLinkID("593991234567@s.whatsapp.net") {
		t.Error("IsLinkID should reject canonical addresses")
	}
	if !IsGroup("12036304@g.us") {
		t.Error("IsGroup should accept @g.us addresses")
	}
	if !IsCanonical("593991234567@s.whatsapp.net") || !IsCanonical("593991234567@c.us") {
		t.Error("IsCanonical should accept both canonical suffixes")
	}

	if got := LocalPart("593991234567:12@s.whatsapp.net"); got != "593991234567" {
		t.Errorf("LocalPart with device tag = %q", got)
	}
	if got := LocalPart("opaque@lid"); got != "opaque" {
		t.Errorf("LocalPart(@lid) = %q", got)
	}
	if got := LocalPart("bare"); got != "bare" {
		t.Errorf("LocalPart(bare) = %q", got)
	}
}
