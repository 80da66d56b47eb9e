package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"claim-dossier/config"
	"claim-dossier/models"
)

var (
	httpClient = &http.Client{Timeout: 60 * time.Second}
	htmlTags   = regexp.MustCompile(`<[^>]+>`)
)

// Fetcher implementiert das Provider-Interface für Europe PMC.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
}

// NewFetcher erstellt einen neuen Europe PMC Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpClient}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() models.SourceName {
	return models.SourceEuropePMC
}

// Search führt die Suche auf Europe PMC aus.
func (f *Fetcher) Search(ctx context.Context, term string, maxResults int) ([]models.SourceRecord, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte Suche auf Europe PMC.")

	params := url.Values{}
	params.Set("query", term)
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", strconv.Itoa(maxResults))
	searchURL := fmt.Sprintf("%s/search?%s", f.Config.EuropePMCBaseURL, params.Encode())
	log.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("europe pmc search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, err
	}

	var records []models.SourceRecord
	for i := range searchResponse.ResultList.Result {
		if len(records) >= maxResults {
			break
		}
		records = append(records, models.SourceRecord{
			Source:    models.SourceEuropePMC,
			EuropePMC: mapArticleToRecord(&searchResponse.ResultList.Result[i]),
		})
	}

	log.Info("Suche auf Europe PMC abgeschlossen", zap.Int("found_papers", len(records)))
	return records, nil
}

// mapArticleToRecord konvertiert ein Europe PMC Article-Objekt in den quellenspezifischen Treffer.
func mapArticleToRecord(article *Article) *models.EuropePMCRecord {
	rec := &models.EuropePMCRecord{
		ID:       article.ID,
		PMID:     article.PMID,
		PMCID:    article.PMCID,
		DOI:      article.DOI,
		Title:    article.Title,
		Abstract: strings.TrimSpace(htmlTags.ReplaceAllString(article.AbstractText, "")),
		Journal:  article.JournalInfo.Journal.Title,
	}
	if rec.Journal == "" {
		rec.Journal = article.JournalTitle
	}
	if y, err := strconv.Atoi(article.PubYear); err == nil {
		rec.Year = y
	}

	for _, a := range article.AuthorList.Author {
		if a.FullName != "" {
			rec.Authors = append(rec.Authors, a.FullName)
		}
	}
	if len(rec.Authors) == 0 && article.AuthorString != "" {
		for _, name := range strings.Split(strings.TrimSuffix(article.AuthorString, "."), ",") {
			if name = strings.TrimSpace(name); name != "" {
				rec.Authors = append(rec.Authors, name)
			}
		}
	}

	// Bester frei zugänglicher Link: PDF vor HTML
	var htmlLink string
	for _, u := range article.FullTextURLList.FullTextURL {
		if u.AvailabilityCode != "OA" && u.AvailabilityCode != "F" {
			continue
		}
		if u.DocumentStyle == "pdf" {
			rec.FullTextURL = u.URL
			break
		}
		if htmlLink == "" && u.DocumentStyle == "html" {
			htmlLink = u.URL
		}
	}
	if rec.FullTextURL == "" {
		rec.FullTextURL = htmlLink
	}
	return rec
}
