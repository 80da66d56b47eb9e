package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"claim-dossier/models"
)

func TestDeduplicateMergesOnSharedDOI(t *testing.T) {
	in := []models.UnifiedPaper{
		{Title: "Vitamin D and colds", DOI: "10.1/abc", PMID: "111", Sources: []models.SourceName{models.SourcePubMed}},
		{Title: "Vitamin D and colds.", DOI: "10.1/ABC", Abstract: "An RCT.", Year: 2020, Sources: []models.SourceName{models.SourceEuropePMC}},
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(out))
	}
	want := models.UnifiedPaper{
		Title:    "Vitamin D and colds",
		DOI:      "10.1/abc",
		PMID:     "111",
		Abstract: "An RCT.",
		Year:     2020,
		Sources:  []models.SourceName{models.SourcePubMed, models.SourceEuropePMC},
	}
	if diff := cmp.Diff(want, out[0]); diff != "" {
		t.Fatalf("merged paper mismatch (-want +got):\n%s", diff)
	}
}

func TestDeduplicateFirstSeenWins(t *testing.T) {
	in := []models.UnifiedPaper{
		{Title: "First title", PMID: "42", Journal: "Lancet"},
		{Title: "Second title", PMID: "42", Journal: "BMJ", Year: 2019},
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(out))
	}
	if out[0].Title != "First title" || out[0].Journal != "Lancet" {
		t.Fatalf("populated fields were overwritten: %+v", out[0])
	}
	if out[0].Year != 2019 {
		t.Fatalf("empty year not filled: %d", out[0].Year)
	}
}

func TestDeduplicateRegistersAliases(t *testing.T) {
	// b bringt die PMID zu a mit, c kennt nur diese PMID
	in := []models.UnifiedPaper{
		{Title: "A", DOI: "10.1/a"},
		{Title: "A", DOI: "10.1/a", PMID: "7"},
		{Title: "Different title", PMID: "7", ArxivID: "2101.00001"},
		{Title: "Yet another", ArxivID: "2101.00001"},
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected aliases to collapse into 1 paper, got %d: %+v", len(out), out)
	}
	if out[0].ArxivID != "2101.00001" || out[0].PMID != "7" {
		t.Fatalf("identifiers lost: %+v", out[0])
	}
}

func TestDeduplicateRegistersConflictingAliases(t *testing.T) {
	// der zweite Treffer trifft über die PMID, seine DOI und sein Titel kollidieren mit dem Eintrag
	in := []models.UnifiedPaper{
		{Title: "Alpha", PMID: "1", DOI: "10.1/a"},
		{Title: "Beta", PMID: "1", DOI: "10.1/b"},
		{Title: "Gamma", DOI: "10.1/b"},
		{Title: "Beta"},
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 paper, got %d: %+v", len(out), out)
	}
	want := models.UnifiedPaper{Title: "Alpha", PMID: "1", DOI: "10.1/a"}
	if diff := cmp.Diff(want, out[0]); diff != "" {
		t.Fatalf("canonical paper changed (-want +got):\n%s", diff)
	}
}

func TestDeduplicateTitleFallback(t *testing.T) {
	in := []models.UnifiedPaper{
		{Title: "Effects of Café Consumption: A Review"},
		{Title: "effects of cafe consumption  a review", S2ID: "s2-1"},
		{Title: "Unrelated paper"},
	}
	out := Deduplicate(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(out))
	}
	if out[0].S2ID != "s2-1" {
		t.Fatalf("title match did not merge s2 id: %+v", out[0])
	}
	if out[1].Title != "Unrelated paper" {
		t.Fatalf("output order not first-seen: %+v", out)
	}
}

func TestDeduplicateCollapsesBridgedEntries(t *testing.T) {
	// zwei getrennte Einträge, die ein dritter Treffer über DOI bzw. PMID verbindet
	in := []models.UnifiedPaper{
		{Title: "One", DOI: "10.1/x"},
		{Title: "Two", PMID: "99"},
		{Title: "Bridge", DOI: "10.1/x", PMID: "99"},
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 paper, got %d: %+v", len(out), out)
	}
	if out[0].Title != "One" || out[0].DOI != "10.1/x" || out[0].PMID != "99" {
		t.Fatalf("unexpected merge result: %+v", out[0])
	}
}

func TestDeduplicateProperties(t *testing.T) {
	in := []models.UnifiedPaper{
		{Title: "P1", DOI: "10.1/1", Abstract: "abs 1"},
		{Title: "P2", PMID: "2"},
		{Title: "P1 copy", DOI: "10.1/1", PMID: "1", Journal: "J1"},
		{Title: "P3", ArxivID: "2201.1"},
		{Title: "P2 copy", PMID: "2", DOI: "10.1/2", Authors: []string{"Doe J"}},
		{Title: "P4", DOI: "10.1/4", ArxivID: "2201.1"},
	}
	out := Deduplicate(in)
	if len(out) > len(in) {
		t.Fatalf("output larger than input: %d > %d", len(out), len(in))
	}

	seen := map[string]bool{}
	for _, p := range out {
		for _, key := range []string{"doi:" + p.DOI, "pmid:" + p.PMID, "arxiv:" + p.ArxivID} {
			if key[len(key)-1] == ':' {
				continue
			}
			if seen[key] {
				t.Fatalf("identifier %s shared by two output papers", key)
			}
			seen[key] = true
		}
	}

	// jeder gesetzte Wert findet sich im Ergebnis wieder, sofern er nicht mit einem früheren kollidiert
	find := func(pred func(models.UnifiedPaper) bool) bool {
		for _, p := range out {
			if pred(p) {
				return true
			}
		}
		return false
	}
	if !find(func(p models.UnifiedPaper) bool { return p.DOI == "10.1/1" && p.PMID == "1" && p.Journal == "J1" && p.Abstract == "abs 1" }) {
		t.Fatalf("fields of P1 copies not merged: %+v", out)
	}
	if !find(func(p models.UnifiedPaper) bool { return p.PMID == "2" && p.DOI == "10.1/2" && len(p.Authors) == 1 }) {
		t.Fatalf("fields of P2 copies not merged: %+v", out)
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if out := Deduplicate(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}
