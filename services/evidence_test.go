package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"claim-dossier/llm"
	"claim-dossier/models"
	"claim-dossier/vectorindex"
)

func TestParseEvidenceFencedAndClamped(t *testing.T) {
	raw := "```json\n" + `{"stance":"supports","confidence":1.7,"summary":"  ok ","study_type":"randomized trial",
"sample_size":-3,"population":null,"duration":" 6 months ","effect_size":null,
"key_findings":["a"," ",""],"limitations":[],"relevance_score":-0.2}` + "\n```"
	card, err := parseEvidence(raw)
	if err != nil {
		t.Fatalf("parseEvidence: %v", err)
	}
	if card.Stance != models.StanceSupports {
		t.Errorf("stance = %s", card.Stance)
	}
	if card.Confidence != 1 || card.RelevanceScore != 0 {
		t.Errorf("scores not clamped: %v %v", card.Confidence, card.RelevanceScore)
	}
	if card.StudyType != models.StudyOther {
		t.Errorf("unknown study type should map to OTHER, got %s", card.StudyType)
	}
	if card.SampleSize != nil {
		t.Errorf("non-positive sample size should be dropped, got %d", *card.SampleSize)
	}
	if card.Summary != "ok" || card.Duration != "6 months" || card.Population != "" {
		t.Errorf("unexpected text fields: %+v", card)
	}
	if len(card.KeyFindings) != 1 || card.Limitations != nil {
		t.Errorf("unexpected lists: %v %v", card.KeyFindings, card.Limitations)
	}
}

func TestParseEvidenceStudyTypeVariants(t *testing.T) {
	cases := map[string]models.StudyType{
		"META_ANALYSIS":   models.StudyMetaAnalysis,
		"meta-analysis":   models.StudyMetaAnalysis,
		"Case Control":    models.StudyCaseControl,
		"rct":             models.StudyRCT,
		"in vitro":        models.StudyInVitro,
		"expert opinion":  models.StudyOther,
		"":                models.StudyOther,
	}
	for in, want := range cases {
		if got := parseStudyType(in); got != want {
			t.Errorf("parseStudyType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseEvidenceRejectsInvalidStance(t *testing.T) {
	if _, err := parseEvidence(`{"stance":"MAYBE","confidence":0.5}`); err == nil {
		t.Fatal("expected error for invalid stance")
	}
	if _, err := parseEvidence("no json here"); !errors.Is(err, llm.ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestExtractAttachesPaperMetadata(t *testing.T) {
	fc := &fakeCompleter{}
	ex := NewEvidenceExtractor(fc, zap.NewNop())
	claim := &models.Claim{ID: "c1", Title: "Vitamin D prevents colds", Description: "in adults"}
	cand := EvidenceCandidate{
		Paper:    models.Paper{ID: 42, Title: "Vitamin D RCT", Year: 2019, Abstract: "We randomised adults."},
		Excerpts: []models.ChunkMatch{{Content: "Fewer colds were observed.", Similarity: 0.82}},
	}
	var prompt string
	fc.respond = func(req llm.JSONRequest) (string, error) {
		prompt = req.Prompt
		return supportingCardJSON, nil
	}
	card, err := ex.Extract(context.Background(), claim, cand)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if card.PaperID != 42 || card.Title != "Vitamin D RCT" || card.Year != 2019 {
		t.Fatalf("metadata not attached: %+v", card)
	}
	if card.SampleSize == nil || *card.SampleSize != 320 || card.StudyType != models.StudyRCT {
		t.Fatalf("unexpected card: %+v", card)
	}
	for _, want := range []string{"Vitamin D prevents colds", "in adults", "We randomised adults.", "Fewer colds were observed.", "0.82"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
	if fc.count("evidence_card") != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", fc.count("evidence_card"))
	}
}

func TestExtractWrapsLLMError(t *testing.T) {
	fc := &fakeCompleter{respond: func(llm.JSONRequest) (string, error) { return "", errors.New("rate limited") }}
	_, err := NewEvidenceExtractor(fc, zap.NewNop()).Extract(context.Background(), &models.Claim{Title: "x"}, EvidenceCandidate{Paper: models.Paper{ID: 7}})
	if err == nil || !strings.Contains(err.Error(), "paper 7") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSelectCandidatesOrderingAndCap(t *testing.T) {
	papers := []models.Paper{
		{ID: 1, Title: "one", Abstract: "a"},
		{ID: 2, Title: "two", Abstract: "b"},
		{ID: 3, Title: "three"},
		{ID: 4, Title: "four", Abstract: "d"},
		{ID: 5, Title: "five", Abstract: "e"},
	}
	matches := []vectorindex.PaperMatches{
		{PaperID: 4, Best: 0.5},
		{PaperID: 2, Best: 0.9},
		{PaperID: 99, Best: 0.95}, // gehört nicht zum Lauf
	}

	got := SelectCandidates(papers, matches, 4)
	var ids []uint
	for _, c := range got {
		ids = append(ids, c.Paper.ID)
	}
	want := []uint{2, 4, 1, 5}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if got[0].Best != 0.9 || got[2].Best != 0 {
		t.Fatalf("unexpected best scores: %+v", got)
	}

	if n := len(SelectCandidates(papers, matches, 1)); n != 1 {
		t.Fatalf("cap not honoured: %d", n)
	}
	if n := len(SelectCandidates(papers, nil, 0)); n != 4 {
		t.Fatalf("papers without abstract must be skipped, got %d", n)
	}
}
