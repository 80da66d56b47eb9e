package models

import (
	"regexp"
	"strings"
)

var arxivVersion = regexp.MustCompile(`v\d+$`)

// NormalizeDOI entfernt URL-Präfixe und vereinheitlicht die Schreibweise.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.TrimSpace(s)
}

// NormalizePMID extrahiert nur die Ziffern.
func NormalizePMID(s string) string {
	var out strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// NormalizePMCID liefert die PMC-ID immer mit "PMC"-Präfix.
func NormalizePMCID(s string) string {
	digits := NormalizePMID(s)
	if digits == "" {
		return ""
	}
	return "PMC" + digits
}

// NormalizeArxivID entfernt "arXiv:"-Präfix und Versionssuffix.
func NormalizeArxivID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "arxiv:") {
		s = s[6:]
	}
	return arxivVersion.ReplaceAllString(strings.ToLower(s), "")
}
