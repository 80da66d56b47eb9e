package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"claim-dossier/models"
	"claim-dossier/providers"
)

func TestSearchAllSettlesEveryProvider(t *testing.T) {
	ok := &fakeProvider{name: models.SourcePubMed, records: []models.SourceRecord{
		pubmedRecord("1", "", "A", "", 2020),
		pubmedRecord("2", "", "B", "", 2021),
	}}
	failing := &fakeProvider{name: models.SourceEuropePMC, err: errors.New("HTTP 503")}
	panicking := &fakeProvider{name: models.SourceSemanticScholar, panics: true}
	slow := &fakeProvider{name: "slow", block: true}
	last := &fakeProvider{name: "last", records: []models.SourceRecord{s2Record("s2", "", "C", "")}}

	svc := NewSearchService([]providers.Provider{ok, failing, panicking, slow, last}, 10, 50*time.Millisecond, zap.NewNop())
	records, outcomes := svc.SearchAll(context.Background(), "vitamin d colds")

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].PubMed.PMID != "1" || records[1].PubMed.PMID != "2" || records[2].SemanticScholar.PaperID != "s2" {
		t.Fatalf("records not in provider order: %+v", records)
	}
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	wantNames := []models.SourceName{models.SourcePubMed, models.SourceEuropePMC, models.SourceSemanticScholar, "slow", "last"}
	for i, o := range outcomes {
		if o.Source != wantNames[i] {
			t.Errorf("outcome %d source = %s, want %s", i, o.Source, wantNames[i])
		}
	}
	if outcomes[0].Err != nil || outcomes[0].Count != 2 {
		t.Errorf("pubmed outcome = %+v", outcomes[0])
	}
	if outcomes[1].Err == nil || outcomes[2].Err == nil {
		t.Errorf("expected failure outcomes for error and panic, got %+v %+v", outcomes[1], outcomes[2])
	}
	if !errors.Is(outcomes[3].Err, context.DeadlineExceeded) {
		t.Errorf("expected timeout for slow provider, got %v", outcomes[3].Err)
	}
	if outcomes[4].Err != nil || outcomes[4].Count != 1 {
		t.Errorf("last outcome = %+v", outcomes[4])
	}
}

func TestSearchAllPassesQueryAndLimit(t *testing.T) {
	p := &fakeProvider{name: models.SourcePubMed, records: []models.SourceRecord{
		pubmedRecord("1", "", "A", "", 0), pubmedRecord("2", "", "B", "", 0), pubmedRecord("3", "", "C", "", 0),
	}}
	svc := NewSearchService([]providers.Provider{p}, 2, 0, zap.NewNop())
	records, _ := svc.SearchAll(context.Background(), "omega-3 depression")
	if len(records) != 2 {
		t.Fatalf("expected limit 2 to be honoured, got %d", len(records))
	}
	if len(p.queries) != 1 || p.queries[0] != "omega-3 depression" {
		t.Fatalf("unexpected queries %v", p.queries)
	}
}

func TestSearchAllNoProviders(t *testing.T) {
	records, outcomes := NewSearchService(nil, 10, time.Second, zap.NewNop()).SearchAll(context.Background(), "x")
	if len(records) != 0 || len(outcomes) != 0 {
		t.Fatalf("expected empty results, got %d records %d outcomes", len(records), len(outcomes))
	}
}
