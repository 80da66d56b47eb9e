package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"claim-dossier/models"
)

var citationRE = regexp.MustCompile(`\[(\d+)\]`)

// Reference ist eine nummerierte Quelle der Synthese. Number entspricht der Position der Evidence Card (ab 1).
type Reference struct {
	Number  int      `json:"number"`
	PaperID uint     `json:"paper_id"`
	DOI     string   `json:"doi,omitempty"`
	PMID    string   `json:"pmid,omitempty"`
	Title   string   `json:"title"`
	Year    int      `json:"year,omitempty"`
	Journal string   `json:"journal,omitempty"`
	Authors []string `json:"authors,omitempty"`
}

// ReferencesFor nummeriert die Evidence Cards so, wie sie im Syntheseprompt erscheinen.
func ReferencesFor(cards []models.EvidenceCard, papers map[uint]models.Paper) []Reference {
	refs := make([]Reference, 0, len(cards))
	for i, card := range cards {
		ref := Reference{Number: i + 1, PaperID: card.PaperID, Title: card.Title, Year: card.Year}
		if p, ok := papers[card.PaperID]; ok {
			ref.DOI = p.DOI
			ref.PMID = p.PMID
			ref.Journal = p.Journal
			ref.Authors = p.Authors
		}
		refs = append(refs, ref)
	}
	return refs
}

// ParseCitationOrder liefert die eindeutigen [n]-Verweise in Reihenfolge des ersten Auftretens.
func ParseCitationOrder(text string) []int {
	seen := map[int]bool{}
	var order []int
	for _, m := range citationRE.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		order = append(order, n)
	}
	return order
}

// BuildBibliography ordnet die Referenzen nach erster Zitierung im Text; nie zitierte folgen in Nummernfolge.
// Verweise ohne passende Quelle werden als Warnung gemeldet.
func BuildBibliography(text string, refs []Reference) (ordered []Reference, warnings []string) {
	if len(refs) == 0 {
		return nil, nil
	}
	byNum := make(map[int]Reference, len(refs))
	for _, r := range refs {
		byNum[r.Number] = r
	}

	seen := map[int]bool{}
	for _, n := range ParseCitationOrder(text) {
		r, ok := byNum[n]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("citation [%d] has no matching source", n))
			continue
		}
		seen[n] = true
		ordered = append(ordered, r)
	}
	for _, r := range refs {
		if !seen[r.Number] {
			ordered = append(ordered, r)
		}
	}
	return ordered, warnings
}

// FormatReference rendert eine kompakte Literaturangabe; mehr als sechs Autoren werden mit "et al." gekürzt.
func FormatReference(r Reference) string {
	authors := r.Authors
	suffix := ""
	if len(authors) > 6 {
		authors, suffix = authors[:6], " et al."
	}
	names := strings.Join(authors, ", ") + suffix
	if names == "" {
		names = "Unknown Authors"
	}
	year := "n.d."
	if r.Year > 0 {
		year = strconv.Itoa(r.Year)
	}
	title := r.Title
	if title == "" {
		title = "Untitled"
	}

	var tail []string
	if r.DOI != "" {
		tail = append(tail, "doi:"+r.DOI)
	}
	if r.PMID != "" {
		tail = append(tail, "pmid:"+r.PMID)
	}
	ids := ""
	if len(tail) > 0 {
		ids = " " + strings.Join(tail, " ")
	}

	if r.Journal != "" {
		return fmt.Sprintf("%s (%s). %s. %s.%s", names, year, title, r.Journal, ids)
	}
	return fmt.Sprintf("%s (%s). %s.%s", names, year, title, ids)
}
