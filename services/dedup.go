package services

import (
	"claim-dossier/models"
)

// identityKeys liefert die Index-Schlüssel eines Papers in Prüfreihenfolge:
// DOI, PMID, arXiv, Semantic-Scholar-ID, PMC-ID, normalisierter Titel.
func identityKeys(p *models.UnifiedPaper) []string {
	keys := make([]string, 0, 6)
	add := func(prefix, value string) {
		if value != "" {
			keys = append(keys, prefix+value)
		}
	}
	add("doi:", models.NormalizeDOI(p.DOI))
	add("pmid:", models.NormalizePMID(p.PMID))
	add("arxiv:", models.NormalizeArxivID(p.ArxivID))
	add("s2:", p.S2ID)
	add("pmc:", models.NormalizePMCID(p.PMCID))
	add("title:", NormalizeTitle(p.Title))
	return keys
}

// deduper hält den Identifier-Index über die kanonischen Einträge eines Laufs.
type deduper struct {
	papers []*models.UnifiedPaper // nil = in einen früheren Eintrag aufgegangen
	index  map[string]int
}

// Deduplicate führt quellenspezifische Treffer zu kanonischen Papers zusammen.
// Der erste Treffer in Prüfreihenfolge bestimmt die Identität; beim Mergen werden nur leere
// Felder gefüllt (zuerst gesehen gewinnt) und neue Identifier als Aliase registriert.
// Das Ergebnis behält die Reihenfolge des ersten Auftretens.
func Deduplicate(records []models.UnifiedPaper) []models.UnifiedPaper {
	d := &deduper{index: make(map[string]int, len(records)*3)}
	for i := range records {
		d.add(records[i])
	}

	out := make([]models.UnifiedPaper, 0, len(d.papers))
	for _, p := range d.papers {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (d *deduper) add(rec models.UnifiedPaper) {
	// Schlüssel des Treffers selbst, auch wenn seine Felder beim Mergen nicht übernommen werden
	recKeys := identityKeys(&rec)
	target := -1
	for _, key := range recKeys {
		if pos, ok := d.index[key]; ok {
			target = pos
			break
		}
	}

	if target < 0 {
		canonical := clonePaper(rec)
		d.papers = append(d.papers, &canonical)
		target = len(d.papers) - 1
	} else {
		mergePaper(d.papers[target], &rec)
	}
	d.register(target, recKeys)
}

// register trägt die Schlüssel des Eintrags und die Aliase aus extra in den Index ein. Zeigt ein
// Schlüssel bereits auf einen anderen Eintrag, werden beide verschmolzen (der früher gesehene
// bleibt bestehen), damit nie zwei Ergebnisse einen Identifier teilen.
func (d *deduper) register(target int, extra []string) {
	for {
		merged := false
		keys := append(identityKeys(d.papers[target]), extra...)
		for _, key := range keys {
			pos, ok := d.index[key]
			if !ok {
				d.index[key] = target
				continue
			}
			if pos == target {
				continue
			}

			keep, drop := pos, target
			if target < pos {
				keep, drop = target, pos
			}
			mergePaper(d.papers[keep], d.papers[drop])
			d.papers[drop] = nil
			for k, p := range d.index {
				if p == drop {
					d.index[k] = keep
				}
			}
			target = keep
			merged = true
			break
		}
		if !merged {
			return
		}
	}
}

func clonePaper(p models.UnifiedPaper) models.UnifiedPaper {
	p.Authors = append([]string(nil), p.Authors...)
	p.Sources = append([]models.SourceName(nil), p.Sources...)
	return p
}

// mergePaper füllt leere Felder von dst aus src; belegte Felder bleiben unverändert.
func mergePaper(dst, src *models.UnifiedPaper) {
	fill := func(d *string, s string) {
		if *d == "" && s != "" {
			*d = s
		}
	}
	fill(&dst.Title, src.Title)
	fill(&dst.Abstract, src.Abstract)
	fill(&dst.DOI, src.DOI)
	fill(&dst.PMID, src.PMID)
	fill(&dst.PMCID, src.PMCID)
	fill(&dst.ArxivID, src.ArxivID)
	fill(&dst.S2ID, src.S2ID)
	fill(&dst.Journal, src.Journal)
	fill(&dst.FullTextURL, src.FullTextURL)
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = append([]string(nil), src.Authors...)
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}

	for _, s := range src.Sources {
		seen := false
		for _, have := range dst.Sources {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			dst.Sources = append(dst.Sources, s)
		}
	}
}
