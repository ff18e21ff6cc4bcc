// Package slug normalizes and validates tenant slugs: 3 to 50 characters
// drawn from lowercase ASCII letters, digits and single hyphens.
package slug

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 3
	MaxLength = 50
)

var (
	ErrTooShort     = errors.New("slug is too short")
	ErrTooLong      = errors.New("slug is too long")
	ErrInvalidChars = errors.New("slug may contain only a-z, 0-9 and single hyphens")
)

// letters NFD does not decompose
var foldReplacer = strings.NewReplacer(
	"đ", "d", "Đ", "d",
	"ø", "o", "Ø", "o",
	"ł", "l", "Ł", "l",
	"ß", "ss",
	"æ", "ae", "Æ", "ae",
)

// fold strips combining marks so "Phở" becomes "Pho".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, foldReplacer.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// Normalize lowercases s, folds diacritics, strips every character outside
// [a-z0-9-] (whitespace and underscores included), collapses runs of hyphens
// and trims them from both ends. The result is not length-checked.
func Normalize(s string) string {
	s = strings.ToLower(fold(s))

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Validate checks that s is already in normalized form and within bounds.
func Validate(s string) error {
	switch n := len(s); {
	case n < MinLength:
		return ErrTooShort
	case n > MaxLength:
		return ErrTooLong
	}
	if Normalize(s) != s {
		return ErrInvalidChars
	}
	return nil
}

// Make normalizes s and validates the result.
func Make(s string) (string, error) {
	out := Normalize(s)
	if err := Validate(out); err != nil {
		return "", err
	}
	return out, nil
}
