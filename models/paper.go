package models

import (
	"time"

	"github.com/lib/pq"
)

// Paper repräsentiert eine kanonische, deduplizierte Studie in der Datenbank.
// Leere Strings gelten als "unbekannt"; spätere Läufe dürfen sie füllen, aber nie überschreiben.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Identifier (partielle Unique-Indizes, leere Werte sind erlaubt)
	DOI     string `json:"doi,omitempty" gorm:"column:doi;index:idx_papers_doi,unique,where:doi <> ''"`
	PMID    string `json:"pmid,omitempty" gorm:"column:pmid;index:idx_papers_pmid,unique,where:pmid <> ''"`
	PMCID   string `json:"pmc_id,omitempty" gorm:"column:pmc_id;index:idx_papers_pmc_id,unique,where:pmc_id <> ''"`
	ArxivID string `json:"arxiv_id,omitempty" gorm:"column:arxiv_id;index:idx_papers_arxiv_id,unique,where:arxiv_id <> ''"`
	S2ID    string `json:"s2_id,omitempty" gorm:"column:s2_id;index:idx_papers_s2_id,unique,where:s2_id <> ''"`

	Title       string         `json:"title"`
	Abstract    string         `json:"abstract,omitempty" gorm:"type:text"`
	Authors     pq.StringArray `json:"authors,omitempty" gorm:"type:text[]"`
	Journal     string         `json:"journal,omitempty"`
	Year        int            `json:"year,omitempty"`
	FullTextURL string         `json:"full_text_url,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}

// UnifiedPaper ist das quellenunabhängige Zwischenformat, auf dem Deduplizierung und Persistenz arbeiten.
type UnifiedPaper struct {
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	PMID        string   `json:"pmid,omitempty"`
	PMCID       string   `json:"pmc_id,omitempty"`
	ArxivID     string   `json:"arxiv_id,omitempty"`
	S2ID        string   `json:"s2_id,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	Year        int      `json:"year,omitempty"`
	FullTextURL string   `json:"full_text_url,omitempty"`

	// Sources listet die Provider, die dieses Paper geliefert haben.
	Sources []SourceName `json:"sources,omitempty"`
}

// ToPaper wandelt ein UnifiedPaper in eine neue Datenbankzeile um.
func (u UnifiedPaper) ToPaper() *Paper {
	return &Paper{
		DOI:         u.DOI,
		PMID:        u.PMID,
		PMCID:       u.PMCID,
		ArxivID:     u.ArxivID,
		S2ID:        u.S2ID,
		Title:       u.Title,
		Abstract:    u.Abstract,
		Authors:     pq.StringArray(u.Authors),
		Journal:     u.Journal,
		Year:        u.Year,
		FullTextURL: u.FullTextURL,
	}
}

// FillMissing übernimmt Felder aus other nur dort, wo p noch leer ist.
// Liefert die Spaltennamen, die dabei gesetzt wurden.
func (p *Paper) FillMissing(other *Paper) []string {
	var changed []string
	fill := func(dst *string, src, column string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = append(changed, column)
		}
	}
	fill(&p.DOI, other.DOI, "doi")
	fill(&p.PMID, other.PMID, "pmid")
	fill(&p.PMCID, other.PMCID, "pmc_id")
	fill(&p.ArxivID, other.ArxivID, "arxiv_id")
	fill(&p.S2ID, other.S2ID, "s2_id")
	fill(&p.Title, other.Title, "title")
	fill(&p.Abstract, other.Abstract, "abstract")
	fill(&p.Journal, other.Journal, "journal")
	fill(&p.FullTextURL, other.FullTextURL, "full_text_url")
	if len(p.Authors) == 0 && len(other.Authors) > 0 {
		p.Authors = other.Authors
		changed = append(changed, "authors")
	}
	if p.Year == 0 && other.Year != 0 {
		p.Year = other.Year
		changed = append(changed, "year")
	}
	return changed
}
