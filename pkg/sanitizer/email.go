package sanitizer

import (
	"regexp"
	"strings"
)

var dots = regexp.MustCompile(`\.{2,}`)

// NormalizeEmail lower-cases and trims an address and collapses repeated
// dots in the local part. Input that is not a single-@ address is only
// trimmed and lower-cased.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}
	local = strings.Trim(dots.ReplaceAllString(local, "."), ".")
	return local + "@" + domain
}

// MaskEmail keeps the first character of the local part and the domain,
// for log lines.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	r := []rune(local)
	return string(r[0]) + strings.Repeat("*", len(r)-1) + "@" + domain
}
