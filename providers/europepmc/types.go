package europepmc

// SearchResponse ist die Top-Level-Struktur der Europe PMC API-Antwort.
type SearchResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []Article `json:"result"`
	} `json:"resultList"`
}

// Article repräsentiert einen einzelnen Artikel in der API-Antwort.
type Article struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	AuthorList   struct {
		Author []struct {
			FullName string `json:"fullName"`
		} `json:"author"`
	} `json:"authorList"`
	JournalTitle string `json:"journalTitle"`
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	PubYear         string `json:"pubYear"`
	AbstractText    string `json:"abstractText"`
	FullTextURLList struct {
		FullTextURL []FullTextURL `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
	IsOpenAccess string `json:"isOpenAccess"`
}

// FullTextURL repräsentiert einen einzelnen Volltext-Link.
type FullTextURL struct {
	Availability     string `json:"availability"`
	AvailabilityCode string `json:"availabilityCode"`
	DocumentStyle    string `json:"documentStyle"`
	Site             string `json:"site"`
	URL              string `json:"url"`
}
