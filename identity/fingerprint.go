package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gradwatch/models"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// Fingerprint derives the stable content identity for a normalized
// listing. Two scrapes of the same posting collide to the same value;
// any field change yields a different one. Never positional.
func Fingerprint(l *models.Listing) string {
	return fingerprint(l, l.DatePosted.Format("2006-01-02"))
}

// FingerprintDateless is the identity for sources that publish no
// posting date. Their DatePosted is synthesized at scrape time, so
// hashing it would mint a fresh identity every day; the date stays a
// stored attribute only.
func FingerprintDateless(l *models.Listing) string {
	return fingerprint(l, "")
}

func fingerprint(l *models.Listing, dateKey string) string {
	input := strings.Join([]string{
		NormalizeField(l.Company),
		NormalizeField(l.Role),
		NormalizeField(l.Location),
		dateKey,
		NormalizeField(l.ApplicationLink),
	}, "|")
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeField lower-cases, folds diacritics, and collapses runs of
// whitespace so cosmetic re-renderings of the source hash identically.
func NormalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = foldDiacritics(s)
	return multiSpaceRegex.ReplaceAllString(s, " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
