// Package pubmed enthält die Logik für die Interaktion mit der PubMed E-Utilities API.
package pubmed

import (
	"encoding/xml"
)

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// PubmedArticleSet repräsentiert das gesamte XML-Dokument von efetch.
type PubmedArticleSet struct {
	XMLName       xml.Name        `xml:"PubmedArticleSet"`
	PubmedArticle []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle repräsentiert einen einzelnen Artikel in der XML-Antwort.
type PubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Text []AbstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []struct {
				LastName       string `xml:"LastName"`
				Initials       string `xml:"Initials"`
				CollectiveName string `xml:"CollectiveName"`
			} `xml:"AuthorList>Author"`
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year        string `xml:"Year"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			ELocationID []struct {
				IDType  string `xml:"EIdType,attr"`
				ValidYN string `xml:"ValidYN,attr"`
				Value   string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDs []struct {
			IDType string `xml:"IdType,attr"`
			Value  string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

// AbstractText ist ein (ggf. strukturierter) Abschnitt des Abstracts.
type AbstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}
