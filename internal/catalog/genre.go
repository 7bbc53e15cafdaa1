package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// Genres is the canonical genre list offered by the storefront.
var Genres = []string{
	"Rock", "Pop", "Hip-Hop", "Jazz", "Electronic", "Metal",
	"Country", "Classical", "R&B", "Folk", "Reggae", "Soundtrack",
}

var genreAliases = map[string]string{
	"rock":             "Rock",
	"rock & roll":      "Rock",
	"pop":              "Pop",
	"hip hop":          "Hip-Hop",
	"hip-hop":          "Hip-Hop",
	"rap":              "Hip-Hop",
	"jazz":             "Jazz",
	"electronic":       "Electronic",
	"electronic music": "Electronic",
	"dance":            "Electronic",
	"metal":            "Metal",
	"heavy metal":      "Metal",
	"country":          "Country",
	"classical":        "Classical",
	"r&b":              "R&B",
	"rhythm & blues":   "R&B",
	"soul":             "R&B",
	"folk":             "Folk",
	"reggae":           "Reggae",
	"soundtrack":       "Soundtrack",
	"stage & screen":   "Soundtrack",
}

// foldKey builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func foldKey(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// CanonicalGenre maps one Discogs genre or style to the storefront genre,
// or "" when there is no match.
func CanonicalGenre(raw string) string {
	return genreAliases[foldKey(raw)]
}

// BestFitGenre returns the first canonical genre among raw, in order.
func BestFitGenre(raw ...string) string {
	for _, g := range raw {
		if c := CanonicalGenre(g); c != "" {
			return c
		}
	}
	return ""
}

// IsGenre reports whether g is one of Genres, ignoring case.
func IsGenre(g string) bool {
	for _, c := range Genres {
		if foldKey(c) == foldKey(g) {
			return true
		}
	}
	return false
}
