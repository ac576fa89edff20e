package matching

import (
	"strings"
)

// Business suffixes stripped from the end of normalized names so "Acme LLC"
// and "Acme" compare equal. Checked after punctuation stripping, longest
// first, repeatedly ("Acme Inc LLC" reduces to "acme").
var businessSuffixes = []string{
	" foundation",
	" nonprofit",
	" gmbh",
	" corp",
	" llc",
	" inc",
	" ltd",
	" co",
	" ug",
}

// NormalizeName lowercases, strips punctuation, collapses whitespace, and
// removes known business suffixes from the end of the string only.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")

	for {
		stripped := normalized
		for _, suffix := range businessSuffixes {
			if strings.HasSuffix(stripped, suffix) {
				stripped = strings.TrimSpace(strings.TrimSuffix(stripped, suffix))
				break
			}
		}
		if stripped == normalized {
			return normalized
		}
		normalized = stripped
	}
}

// NormalizeEmail lowercases and trims an address for case-insensitive
// comparison. It does not validate; see ParseEmail in the import path.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the lowercased domain part, or "" when the address
// has no domain.
func EmailDomain(email string) string {
	normalized := NormalizeEmail(email)
	at := strings.LastIndex(normalized, "@")
	if at < 0 || at == len(normalized)-1 {
		return ""
	}
	return normalized[at+1:]
}

// NormalizePhone reduces a phone number to bare digits, dropping a leading
// country code 1 from eleven-digit NANP numbers. Numbers too short to be
// real return "" and never participate in matching.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) < 7 {
		return ""
	}
	return d
}

// Common street-type abbreviations folded during address normalization.
var streetAbbrevs = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"road":      "rd",
	"boulevard": "blvd",
	"drive":     "dr",
	"lane":      "ln",
	"court":     "ct",
	"place":     "pl",
	"suite":     "ste",
	"apartment": "apt",
	"unit":      "apt",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// AddressKey builds the street+postal matching key. Either part missing
// yields "" so incomplete addresses never match each other.
func AddressKey(street, postalCode string) string {
	street = strings.TrimSpace(street)
	postal := normalizePostal(postalCode)
	if street == "" || postal == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range strings.ToLower(street) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		if abbr, ok := streetAbbrevs[w]; ok {
			words[i] = abbr
		}
	}

	return strings.Join(words, " ") + "|" + postal
}

// normalizePostal uppercases, removes spaces, and trims a ZIP+4 extension
// down to the five-digit base.
func normalizePostal(postal string) string {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(postal), " ", ""))
	if dash := strings.Index(p, "-"); dash > 0 {
		p = p[:dash]
	}
	return p
}
