package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ligatures = strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬀ", "ff",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬆ", "st",
		"œ", "oe",
		"æ", "ae",
	)
	hyphenBreakRE   = regexp.MustCompile(`([\p{L}\p{N}])-(?:\r?\n)([\p{Ll}])`)
	inlineSpaceRE   = regexp.MustCompile("[ \t\f\v\u00A0]+")
	paragraphGapRE  = regexp.MustCompile(`\n\s*\n`)
	singleNewlineRE = regexp.MustCompile(`\s*\n\s*`)
)

// NormalizeTitle erzeugt den Vergleichsschlüssel für den Titel-Fallback der Deduplizierung:
// Kleinbuchstaben, Diakritika entfernt, Satzzeichen gestrichen, Whitespace zusammengefasst.
func NormalizeTitle(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, ligatures.Replace(title))
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CleanAbstract bereitet einen Abstract für das Chunking auf.
// Absätze (Leerzeile) bleiben erhalten, einfache Zeilenumbrüche werden zu Leerzeichen.
func CleanAbstract(s string) string {
	s = norm.NFC.String(ligatures.Replace(s))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = hyphenBreakRE.ReplaceAllString(s, "$1$2")

	paragraphs := paragraphGapRE.Split(s, -1)
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		p = singleNewlineRE.ReplaceAllString(p, " ")
		p = strings.TrimSpace(inlineSpaceRE.ReplaceAllString(p, " "))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
