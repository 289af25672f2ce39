package casts

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives the URL slug of a cast name: accents folded to ASCII,
// lowercased, runs of anything else collapsed to one hyphen, hyphens trimmed.
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// MaxNameLength bounds a cast name and its slug, in characters.
const MaxNameLength = 128

func checkName(name, slug string) error {
	if name == "" || slug == "" || utf8.RuneCountInString(name) > MaxNameLength || len(slug) > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}
