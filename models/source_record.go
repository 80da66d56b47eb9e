package models

import "strings"

// SourceName identifiziert einen Literatur-Provider.
type SourceName string

const (
	SourcePubMed          SourceName = "pubmed"
	SourceEuropePMC       SourceName = "europepmc"
	SourceSemanticScholar SourceName = "semanticscholar"
)

// SourceRecord ist ein quellenspezifischer Treffer (tagged variant).
// Genau eines der Payload-Felder ist passend zu Source gesetzt.
type SourceRecord struct {
	Source          SourceName
	PubMed          *PubMedRecord
	EuropePMC       *EuropePMCRecord
	SemanticScholar *SemanticScholarRecord
}

// PubMedRecord enthält die Felder, die PubMed EFetch liefert.
type PubMedRecord struct {
	PMID     string
	PMCID    string
	DOI      string
	Title    string
	Abstract string
	Authors  []string
	Journal  string
	Year     int
}

// EuropePMCRecord enthält die Felder eines Europe-PMC-Suchtreffers.
type EuropePMCRecord struct {
	ID          string
	PMID        string
	PMCID       string
	DOI         string
	Title       string
	Abstract    string
	Authors     []string
	Journal     string
	Year        int
	FullTextURL string
}

// SemanticScholarRecord enthält die Felder eines Semantic-Scholar-Treffers.
type SemanticScholarRecord struct {
	PaperID    string
	DOI        string
	PMID       string
	PMCID      string
	ArxivID    string
	Title      string
	Abstract   string
	Authors    []string
	Venue      string
	Year       int
	OpenPDFURL string
}

// Unified konvertiert den Treffer in das kanonische Format.
// ok ist false, wenn kein Payload zum Tag passt.
func (r SourceRecord) Unified() (u UnifiedPaper, ok bool) {
	switch r.Source {
	case SourcePubMed:
		if r.PubMed == nil {
			return u, false
		}
		u = r.PubMed.toUnified()
	case SourceEuropePMC:
		if r.EuropePMC == nil {
			return u, false
		}
		u = r.EuropePMC.toUnified()
	case SourceSemanticScholar:
		if r.SemanticScholar == nil {
			return u, false
		}
		u = r.SemanticScholar.toUnified()
	default:
		return u, false
	}
	u.Sources = []SourceName{r.Source}
	return u, true
}

func (r *PubMedRecord) toUnified() UnifiedPaper {
	return UnifiedPaper{
		Title:    clean(r.Title),
		Abstract: strings.TrimSpace(r.Abstract),
		DOI:      NormalizeDOI(r.DOI),
		PMID:     NormalizePMID(r.PMID),
		PMCID:    NormalizePMCID(r.PMCID),
		Authors:  r.Authors,
		Journal:  clean(r.Journal),
		Year:     r.Year,
	}
}

func (r *EuropePMCRecord) toUnified() UnifiedPaper {
	return UnifiedPaper{
		Title:       clean(r.Title),
		Abstract:    strings.TrimSpace(r.Abstract),
		DOI:         NormalizeDOI(r.DOI),
		PMID:        NormalizePMID(r.PMID),
		PMCID:       NormalizePMCID(r.PMCID),
		Authors:     r.Authors,
		Journal:     clean(r.Journal),
		Year:        r.Year,
		FullTextURL: r.FullTextURL,
	}
}

func (r *SemanticScholarRecord) toUnified() UnifiedPaper {
	return UnifiedPaper{
		Title:       clean(r.Title),
		Abstract:    strings.TrimSpace(r.Abstract),
		DOI:         NormalizeDOI(r.DOI),
		PMID:        NormalizePMID(r.PMID),
		PMCID:       NormalizePMCID(r.PMCID),
		ArxivID:     NormalizeArxivID(r.ArxivID),
		S2ID:        strings.TrimSpace(r.PaperID),
		Authors:     r.Authors,
		Journal:     clean(r.Venue),
		Year:        r.Year,
		FullTextURL: r.OpenPDFURL,
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
