package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FallbackSlugPrefix prefixes generated slugs for names that slugify to nothing.
const FallbackSlugPrefix = "catalog-"

// Slugify lower-cases name, trims it, joins whitespace-separated words with a single
// hyphen and drops every byte outside [a-z0-9-]. Non-ASCII letters are dropped, not
// transliterated: "Café Noir" becomes "caf-noir".
func Slugify(name string) string {
	lowered := cases.Lower(language.Und).String(name)
	joined := strings.Join(strings.Fields(lowered), "-")

	var b strings.Builder
	b.Grow(len(joined))
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidSlug reports whether slug is already in slugified form and contains at least one
// letter or digit.
func ValidSlug(slug string) bool {
	return Slugify(slug) == slug && strings.ContainsAny(slug, "abcdefghijklmnopqrstuvwxyz0123456789")
}

// FallbackSlug builds a slug for a name with no usable characters. suffix is lower-cased
// and slugified so any random token can be passed in.
func FallbackSlug(suffix string) string {
	return FallbackSlugPrefix + Slugify(suffix)
}
