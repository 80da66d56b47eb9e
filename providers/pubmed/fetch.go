package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"claim-dossier/config"
	"claim-dossier/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpClient}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() models.SourceName {
	return models.SourcePubMed
}

// Search holt zuerst die PMIDs via ESearch und dann alle Metadaten in einem EFetch-Aufruf.
func (f *Fetcher) Search(ctx context.Context, term string, maxResults int) ([]models.SourceRecord, error) {
	ids, err := f.searchIDs(ctx, term, maxResults)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := f.fetchArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fehler beim PubMed EFetch: %w", err)
	}

	records := make([]models.SourceRecord, 0, len(articles))
	for i := range articles {
		records = append(records, models.SourceRecord{
			Source: models.SourcePubMed,
			PubMed: mapArticleToRecord(&articles[i]),
		})
	}
	f.Logger.Info("PubMed-Suche abgeschlossen", zap.String("term", term), zap.Int("found_papers", len(records)))
	return records, nil
}

// searchIDs führt eine ESearch-Abfrage durch und gibt eine Liste von PMIDs zurück.
func (f *Fetcher) searchIDs(ctx context.Context, term string, retmax int) ([]string, error) {
	searchURL := f.buildEsearchURL(term, retmax)
	f.Logger.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("esearch failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		return nil, err
	}
	return esearchResp.ESearchResult.IdList, nil
}

// fetchArticles holt die Metadaten für mehrere PMIDs via EFetch.
func (f *Fetcher) fetchArticles(ctx context.Context, ids []string) ([]PubmedArticle, error) {
	params := f.baseParams()
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
	f.Logger.Debug("Rufe EFetch-URL für Metadaten auf", zap.Int("ids", len(ids)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch metadata failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, err
	}
	return articleSet.PubmedArticle, nil
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, retmax int) string {
	params := f.baseParams()
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("sort", "relevance")
	return fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
}

func (f *Fetcher) baseParams() url.Values {
	params := url.Values{}
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}
	if f.Config.PubMedTool != "" {
		params.Set("tool", f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		params.Set("email", f.Config.PubMedEmail)
	}
	return params
}

// mapArticleToRecord wandelt ein XML-Article-Objekt in den PubMed-Treffer um.
func mapArticleToRecord(article *PubmedArticle) *models.PubMedRecord {
	a := article.MedlineCitation.Article
	rec := &models.PubMedRecord{
		PMID:    article.MedlineCitation.PMID,
		Title:   a.Title,
		Journal: a.Journal.Title,
		Year:    parseYear(a.Journal.PubDate.Year, a.Journal.PubDate.MedlineDate),
	}

	var sections []string
	for _, part := range a.Abstract.Text {
		text := strings.TrimSpace(part.Text)
		if text == "" {
			continue
		}
		if part.Label != "" {
			text = part.Label + ": " + text
		}
		sections = append(sections, text)
	}
	rec.Abstract = strings.Join(sections, "\n\n")

	for _, author := range a.Authors {
		switch {
		case author.LastName != "":
			rec.Authors = append(rec.Authors, strings.TrimSpace(author.Initials+" "+author.LastName))
		case author.CollectiveName != "":
			rec.Authors = append(rec.Authors, author.CollectiveName)
		}
	}

	for _, id := range a.ELocationID {
		if id.IDType == "doi" && id.ValidYN != "N" {
			rec.DOI = id.Value
			break
		}
	}
	for _, id := range article.PubmedData.ArticleIDs {
		switch id.IDType {
		case "doi":
			if rec.DOI == "" {
				rec.DOI = id.Value
			}
		case "pmc":
			rec.PMCID = id.Value
		}
	}
	return rec
}

// parseYear liest das Jahr aus PubDate; MedlineDate ("2019 Jan-Feb") dient als Fallback.
func parseYear(year, medlineDate string) int {
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		return y
	}
	if len(medlineDate) >= 4 {
		if y, err := strconv.Atoi(medlineDate[:4]); err == nil {
			return y
		}
	}
	return 0
}
