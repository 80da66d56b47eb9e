package providers

import (
	"context"

	"claim-dossier/models"
)

// Provider ist das Interface, das jeder Such-Provider (z.B. PubMed, EuropePMC) implementieren muss.
type Provider interface {
	// Search führt eine Suche für eine Claim-Query durch und gibt höchstens maxResults quellenspezifische Treffer zurück.
	Search(ctx context.Context, query string, maxResults int) ([]models.SourceRecord, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() models.SourceName
}
