package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"claim-dossier/config"
	"claim-dossier/models"
)

const searchFields = "paperId,externalIds,title,abstract,venue,year,authors,openAccessPdf,journal"

// Die Graph API erlaubt höchstens 100 Treffer pro Seite.
const maxPageSize = 100

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das Provider-Interface für Semantic Scholar.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
}

// NewFetcher erstellt einen neuen Semantic Scholar Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpClient}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() models.SourceName {
	return models.SourceSemanticScholar
}

// Search führt die Suche auf Semantic Scholar aus.
func (f *Fetcher) Search(ctx context.Context, term string, maxResults int) ([]models.SourceRecord, error) {
	log := f.Logger.With(zap.String("term", term))
	if maxResults > maxPageSize {
		maxResults = maxPageSize
	}

	params := url.Values{}
	params.Set("query", term)
	params.Set("limit", strconv.Itoa(maxResults))
	params.Set("fields", searchFields)
	searchURL := fmt.Sprintf("%s/paper/search?%s", f.Config.SemanticScholarBaseURL, params.Encode())
	log.Debug("Rufe Semantic Scholar API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	if f.Config.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", f.Config.SemanticScholarAPIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, err
	}

	records := make([]models.SourceRecord, 0, len(searchResponse.Data))
	for i := range searchResponse.Data {
		records = append(records, models.SourceRecord{
			Source:          models.SourceSemanticScholar,
			SemanticScholar: mapPaperToRecord(&searchResponse.Data[i]),
		})
	}
	log.Info("Suche auf Semantic Scholar abgeschlossen", zap.Int("found_papers", len(records)))
	return records, nil
}

// mapPaperToRecord konvertiert einen Graph-API-Treffer in den quellenspezifischen Treffer.
func mapPaperToRecord(p *Paper) *models.SemanticScholarRecord {
	rec := &models.SemanticScholarRecord{
		PaperID:  p.PaperID,
		DOI:      externalID(p.ExternalIDs, "DOI"),
		PMID:     externalID(p.ExternalIDs, "PubMed"),
		PMCID:    externalID(p.ExternalIDs, "PubMedCentral"),
		ArxivID:  externalID(p.ExternalIDs, "ArXiv"),
		Title:    p.Title,
		Abstract: p.Abstract,
		Venue:    p.Venue,
		Year:     p.Year,
	}
	if name := p.Journal["name"]; name != "" {
		rec.Venue = name
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			rec.Authors = append(rec.Authors, a.Name)
		}
	}
	if p.OpenAccess != nil {
		rec.OpenPDFURL = p.OpenAccess.URL
	}
	return rec
}

// externalID liest einen Identifier aus externalIds; CorpusId kommt als Zahl, der Rest als String.
func externalID(ids map[string]any, key string) string {
	switch v := ids[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}
