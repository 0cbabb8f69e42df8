package provider

import (
	"strings"

	"github.com/chasqui-io/chasqui/internal/domain"
)

// DefaultCountryCode is prefixed onto bare national numbers.
const DefaultCountryCode = "593"

const (
	// CanonicalSuffix marks a resolved individual contact address.
	CanonicalSuffix = "@s.whatsapp.net"
	// LegacySuffix is the older individual-contact address form.
	LegacySuffix = "@c.us"
	// LinkSuffix marks an internal linking identifier that must be
	// resolved before use.
	LinkSuffix = "@lid"
	// GroupSuffix marks a group chat address.
	GroupSuffix = "@g.us"
)

// FormatPhoneNumber normalizes raw user input into a bare dialable number:
// strips every non-digit and prefixes the country code when the remaining
// digit count looks like a bare national number (9 or 10 digits).
// Already-prefixed input passes through unchanged.
func FormatPhoneNumber(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	formatted := b.String()
	if formatted == "" {
		return "", domain.ErrInvalidNumber
	}
	if (len(formatted) == 10 || len(formatted) == 9) && !strings.HasPrefix(formatted, countryCode) {
		formatted = countryCode + formatted
	}
	return formatted, nil
}

// FormatChatID turns a bare number into a canonical chat address, leaving
// input that already carries an address suffix untouched.
func FormatChatID(number string) string {
	number = strings.ReplaceAll(number, LegacySuffix, "")
	number = strings.ReplaceAll(number, CanonicalSuffix, "")
	if strings.Contains(number, "@") {
		return number
	}
	return number + CanonicalSuffix
}

// IsLinkID reports whether the address is a linking identifier.
func IsLinkID(address string) bool {
	return strings.HasSuffix(address, LinkSuffix)
}

// IsGroup reports whether the address is a group chat.
func IsGroup(address string) bool {
	return strings.HasSuffix(address, GroupSuffix)
}

// IsCanonical reports whether the address is already a resolved individual
// contact address.
func IsCanonical(address string) bool {
	return strings.HasSuffix(address, CanonicalSuffix) || strings.HasSuffix(address, LegacySuffix)
}

// LocalPart strips the address suffix and any device tag after ':', giving
// a best-effort bare number.
func LocalPart(address string) string {
	if at := strings.IndexByte(address, '@'); at >= 0 {
		address = address[:at]
	}
	if colon := strings.IndexByte(address, ':'); colon >= 0 {
		address = address[:colon]
	}
	return address
}
