// Package validate holds the pure input checks shared by every entity
// operation: national id check digits, email and phone formats, and the
// minority boundary.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

// CheckDigit computes the verification character for a national id body
// using the modulus-11 scheme: digits weighted 2..7 cycling from the least
// significant digit, 11 -> "0", 10 -> "K".
func CheckDigit(body string) string {
	weights := []int{2, 3, 4, 5, 6, 7}
	sum := 0
	for i := 0; i < len(body); i++ {
		digit := int(body[len(body)-1-i] - '0')
		sum += digit * weights[i%len(weights)]
	}
	switch r := 11 - (sum % 11); r {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return string(rune('0' + r))
	}
}

// ValidNationalID reports whether id carries a correct check digit. Dots and
// hyphens are ignored and the check character is case-insensitive.
func ValidNationalID(id string) bool {
	id = stripSeparators(id)
	if len(id) < 2 {
		return false
	}
	body, check := id[:len(id)-1], string(id[len(id)-1])
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return false
		}
	}
	return CheckDigit(body) == check
}

// FormatNationalID renders an id in the standard form 12.345.678-9,
// accepting input with or without separators. Inputs too short to carry a
// check digit are returned unchanged.
func FormatNationalID(id string) string {
	id = stripSeparators(id)
	if len(id) < 2 {
		return id
	}
	body, check := id[:len(id)-1], string(id[len(id)-1])
	var b strings.Builder
	for i, c := range body {
		if i > 0 && (len(body)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return b.String() + "-" + check
}

func stripSeparators(id string) string {
	id = strings.ReplaceAll(id, ".", "")
	id = strings.ReplaceAll(id, "-", "")
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidEmail reports whether email looks like localpart@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone reports whether phone is an optional leading + followed by 8-15
// digits, after stripping spaces and hyphens.
func ValidPhone(phone string) bool {
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phonePattern.MatchString(phone)
}

// Age returns whole years between birth and now, using month/day comparison
// for the boundary.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// IsMinor reports whether a person born on birth is under 18 as of now.
func IsMinor(birth, now time.Time) bool {
	return Age(birth, now) < 18
}

// TitleCase trims text and uppercases the first letter of each word, the
// normalization applied to person and specialty names at write time.
func TitleCase(text string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(text)))
}

// NormalizeText lowercases text and strips diacritical marks, so "Pediatría"
// and "pediatria" compare equal in case-insensitive lookups.
func NormalizeText(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
