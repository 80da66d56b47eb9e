package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"claim-dossier/llm"
	"claim-dossier/models"
)

type fakeProvider struct {
	name    models.SourceName
	records []models.SourceRecord
	err     error
	panics  bool
	block   bool

	mu      sync.Mutex
	queries []string
}

func (p *fakeProvider) Name() models.SourceName { return p.name }

func (p *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SourceRecord, error) {
	p.mu.Lock()
	p.queries = append(p.queries, query)
	p.mu.Unlock()
	if p.panics {
		panic("boom")
	}
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	if maxResults > 0 && len(p.records) > maxResults {
		return p.records[:maxResults], nil
	}
	return p.records, nil
}

func pubmedRecord(pmid, doi, title, abstract string, year int) models.SourceRecord {
	return models.SourceRecord{Source: models.SourcePubMed, PubMed: &models.PubMedRecord{
		PMID: pmid, DOI: doi, Title: title, Abstract: abstract, Year: year, Authors: []string{"Doe J"},
	}}
}

func s2Record(id, doi, title, abstract string) models.SourceRecord {
	return models.SourceRecord{Source: models.SourceSemanticScholar, SemanticScholar: &models.SemanticScholarRecord{
		PaperID: id, DOI: doi, Title: title, Abstract: abstract,
	}}
}

// fakeCompleter beantwortet Anfragen anhand des Schema-Namens.
type fakeCompleter struct {
	mu    sync.Mutex
	calls map[string]int
	// respond liefert die Rohantwort; nil bedeutet Standardantworten.
	respond func(req llm.JSONRequest) (string, error)
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, req llm.JSONRequest) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[req.SchemaName]++
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	switch req.SchemaName {
	case "evidence_card":
		return supportingCardJSON, nil
	case "verdict":
		return supportedVerdictJSON, nil
	}
	return "{}", nil
}

func (f *fakeCompleter) count(schema string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[schema]
}

const supportingCardJSON = `{"stance":"SUPPORTS","confidence":0.8,"summary":"Fewer colds in the treatment arm.","study_type":"RCT",
"sample_size":320,"population":"adults","duration":"12 weeks","effect_size":"RR 0.8",
"key_findings":["Lower incidence"],"limitations":["Single centre"],"relevance_score":0.9}`

const supportedVerdictJSON = `{"outcome":"SUPPORTED","confidence":0.7,"effect_direction":"beneficial",
"short_summary":"Evidence supports the claim.","detailed_summary":"The trial [1] found fewer colds.",
"strength_of_evidence":"moderate","key_factors":["RCT evidence"],"caveats":["Few studies"],
"what_would_change":["A large null trial"],"recommended_action":"Treat as likely true."}`

// fakeEmbedder bildet Texte deterministisch auf einen Bag-of-Words-Vektor ab.
type fakeEmbedder struct {
	dim int
	err error

	mu    sync.Mutex
	calls int
	texts int
}

func (e *fakeEmbedder) Dimension() int { return e.dim }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, e.dim)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,:;!?()")))
			v[h.Sum32()%uint32(e.dim)]++
		}
		v[0] += 0.01
		out[i] = v
	}
	return out, nil
}
