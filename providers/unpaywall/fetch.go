package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"claim-dossier/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Response repräsentiert die JSON-Antwort der Unpaywall-API.
type Response struct {
	BestOALocation *struct {
		URL       string `json:"url"`
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
}

// Fetcher kapselt die Logik für Unpaywall.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
}

// NewFetcher erstellt einen neuen Unpaywall-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpClient}
}

// Enabled meldet, ob Unpaywall konfiguriert ist (die API verlangt eine E-Mail).
func (f *Fetcher) Enabled() bool {
	return f != nil && f.Config.UnpaywallEmail != ""
}

// FullTextURL holt den besten frei zugänglichen Link anhand der DOI (PDF bevorzugt).
func (f *Fetcher) FullTextURL(ctx context.Context, doi string) (string, error) {
	if !f.Enabled() {
		return "", fmt.Errorf("unpaywall email ist nicht konfiguriert")
	}

	reqURL := fmt.Sprintf("%s/%s?email=%s", f.Config.UnpaywallBaseURL, doi, url.QueryEscape(f.Config.UnpaywallEmail))
	log := f.Logger.With(zap.String("doi", doi))
	log.Debug("Rufe Unpaywall API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unpaywall request failed with status: %d", resp.StatusCode)
	}

	var ur Response
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", err
	}
	if ur.BestOALocation == nil {
		log.Debug("Kein OA-Link in Unpaywall-Antwort gefunden.")
		return "", nil
	}
	if ur.BestOALocation.URLForPDF != "" {
		return ur.BestOALocation.URLForPDF, nil
	}
	return ur.BestOALocation.URL, nil
}
