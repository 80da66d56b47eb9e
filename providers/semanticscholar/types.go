// Package semanticscholar implementiert die Suche über die Semantic Scholar Graph API.
package semanticscholar

// SearchResponse ist die Antwort von /paper/search.
type SearchResponse struct {
	Total int     `json:"total"`
	Data  []Paper `json:"data"`
}

// Paper ist ein Treffer mit den angeforderten Feldern.
type Paper struct {
	PaperID     string            `json:"paperId"`
	ExternalIDs map[string]any    `json:"externalIds"`
	Title       string            `json:"title"`
	Abstract    string            `json:"abstract"`
	Venue       string            `json:"venue"`
	Year        int               `json:"year"`
	Authors     []Author          `json:"authors"`
	OpenAccess  *OpenAccessPDF    `json:"openAccessPdf"`
	Journal     map[string]string `json:"journal"`
}

// Author ist ein Autoreneintrag.
type Author struct {
	Name string `json:"name"`
}

// OpenAccessPDF verweist auf eine frei zugängliche PDF-Version.
type OpenAccessPDF struct {
	URL string `json:"url"`
}
