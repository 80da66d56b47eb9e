package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"claim-dossier/llm"
	"claim-dossier/models"
	"claim-dossier/vectorindex"
)

// DefaultMaxEvidencePapers begrenzt die Zahl der Extraktions-Calls pro Lauf.
const DefaultMaxEvidencePapers = 15

const evidenceSystemPrompt = `You are a careful research analyst. You assess how a single scientific paper relates to a factual claim.
Base your judgement only on the supplied abstract and excerpts. If the text does not address the claim, answer INSUFFICIENT.
Respond with JSON only.`

// EvidenceCandidate ist ein Paper mit den dazu abgerufenen relevanten Passagen.
type EvidenceCandidate struct {
	Paper    models.Paper
	Excerpts []models.ChunkMatch
	Best     float64
}

// SelectCandidates wählt bis zu limit Papers: zuerst solche mit relevanten Chunks (nach bester Ähnlichkeit),
// danach die übrigen mit Abstract in Eingabereihenfolge.
func SelectCandidates(papers []models.Paper, matches []vectorindex.PaperMatches, limit int) []EvidenceCandidate {
	if limit <= 0 {
		limit = DefaultMaxEvidencePapers
	}
	byID := make(map[uint]models.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	ranked := append([]vectorindex.PaperMatches(nil), matches...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Best > ranked[j].Best })

	out := make([]EvidenceCandidate, 0, limit)
	taken := map[uint]bool{}
	for _, m := range ranked {
		if len(out) == limit {
			return out
		}
		p, ok := byID[m.PaperID]
		if !ok || taken[p.ID] {
			continue
		}
		taken[p.ID] = true
		out = append(out, EvidenceCandidate{Paper: p, Excerpts: m.Chunks, Best: m.Best})
	}
	for _, p := range papers {
		if len(out) == limit {
			break
		}
		if taken[p.ID] || strings.TrimSpace(p.Abstract) == "" {
			continue
		}
		taken[p.ID] = true
		out = append(out, EvidenceCandidate{Paper: p})
	}
	return out
}

// EvidenceExtractor erzeugt pro Paper eine Evidence Card über einen strukturierten LLM-Call.
type EvidenceExtractor struct {
	LLM    llm.Completer
	Logger *zap.Logger
}

func NewEvidenceExtractor(completer llm.Completer, logger *zap.Logger) *EvidenceExtractor {
	return &EvidenceExtractor{LLM: completer, Logger: logger}
}

// Extract führt genau einen LLM-Call aus. Fehler gelten als ExtractionError des einzelnen Papers.
func (e *EvidenceExtractor) Extract(ctx context.Context, claim *models.Claim, c EvidenceCandidate) (*models.EvidenceCard, error) {
	raw, err := e.LLM.CompleteJSON(ctx, llm.JSONRequest{
		System:     evidenceSystemPrompt,
		Prompt:     buildEvidencePrompt(claim, c),
		SchemaName: "evidence_card",
		Schema:     evidenceSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("evidence extraction for paper %d: %w", c.Paper.ID, err)
	}
	card, err := parseEvidence(raw)
	if err != nil {
		return nil, fmt.Errorf("evidence extraction for paper %d: %w", c.Paper.ID, err)
	}
	card.PaperID = c.Paper.ID
	card.Title = c.Paper.Title
	card.Year = c.Paper.Year
	return card, nil
}

func buildEvidencePrompt(claim *models.Claim, c EvidenceCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CLAIM: %s\n", claim.Title)
	if d := strings.TrimSpace(claim.Description); d != "" {
		fmt.Fprintf(&b, "CLAIM DETAILS: %s\n", d)
	}
	b.WriteString("\nPAPER\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Paper.Title)
	if c.Paper.Year > 0 {
		fmt.Fprintf(&b, "Year: %d\n", c.Paper.Year)
	}
	if c.Paper.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", c.Paper.Journal)
	}
	if abstract := strings.TrimSpace(c.Paper.Abstract); abstract != "" {
		fmt.Fprintf(&b, "\nABSTRACT:\n%s\n", abstract)
	}
	if len(c.Excerpts) > 0 {
		b.WriteString("\nMOST RELEVANT EXCERPTS:\n")
		for i, ex := range c.Excerpts {
			fmt.Fprintf(&b, "[%d] (similarity %.2f) %s\n", i+1, ex.Similarity, strings.TrimSpace(ex.Content))
		}
	}
	b.WriteString(`
Classify the paper's stance toward the claim as SUPPORTS, CONTRADICTS, NEUTRAL or INSUFFICIENT.
Give a confidence between 0 and 1 and a relevance score between 0 and 1.
Classify the study type as one of: ` + studyTypeList() + `.
Report sample size, population, duration and effect size when stated, otherwise null.
List the key findings and the limitations as short sentences.`)
	return b.String()
}

func studyTypeList() string {
	return strings.Join(studyTypeEnum(), ", ")
}

var evidenceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"stance":          map[string]any{"type": "string", "enum": []string{"SUPPORTS", "CONTRADICTS", "NEUTRAL", "INSUFFICIENT"}},
		"confidence":      map[string]any{"type": "number"},
		"summary":         map[string]any{"type": "string"},
		"study_type":      map[string]any{"type": "string", "enum": studyTypeEnum()},
		"sample_size":     map[string]any{"type": []string{"integer", "null"}},
		"population":      map[string]any{"type": []string{"string", "null"}},
		"duration":        map[string]any{"type": []string{"string", "null"}},
		"effect_size":     map[string]any{"type": []string{"string", "null"}},
		"key_findings":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"limitations":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"relevance_score": map[string]any{"type": "number"},
	},
	"required": []string{
		"stance", "confidence", "summary", "study_type", "sample_size", "population",
		"duration", "effect_size", "key_findings", "limitations", "relevance_score",
	},
	"additionalProperties": false,
}

func studyTypeEnum() []string {
	out := make([]string, len(models.StudyTypes))
	for i, t := range models.StudyTypes {
		out[i] = string(t)
	}
	return out
}

type evidenceResponse struct {
	Stance         string   `json:"stance"`
	Confidence     float64  `json:"confidence"`
	Summary        string   `json:"summary"`
	StudyType      string   `json:"study_type"`
	SampleSize     *int     `json:"sample_size"`
	Population     *string  `json:"population"`
	Duration       *string  `json:"duration"`
	EffectSize     *string  `json:"effect_size"`
	KeyFindings    []string `json:"key_findings"`
	Limitations    []string `json:"limitations"`
	RelevanceScore float64  `json:"relevance_score"`
}

// parseEvidence dekodiert und validiert die Modellantwort.
func parseEvidence(raw string) (*models.EvidenceCard, error) {
	var resp evidenceResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	stance := models.Stance(strings.ToUpper(strings.TrimSpace(resp.Stance)))
	if !stance.Valid() {
		return nil, fmt.Errorf("invalid stance %q", resp.Stance)
	}
	card := &models.EvidenceCard{
		Stance:         stance,
		Confidence:     clamp01(resp.Confidence),
		Summary:        strings.TrimSpace(resp.Summary),
		StudyType:      parseStudyType(resp.StudyType),
		Population:     deref(resp.Population),
		Duration:       deref(resp.Duration),
		EffectSize:     deref(resp.EffectSize),
		KeyFindings:    nonEmpty(resp.KeyFindings),
		Limitations:    nonEmpty(resp.Limitations),
		RelevanceScore: clamp01(resp.RelevanceScore),
	}
	if resp.SampleSize != nil && *resp.SampleSize > 0 {
		n := *resp.SampleSize
		card.SampleSize = &n
	}
	return card, nil
}

func parseStudyType(s string) models.StudyType {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for _, t := range models.StudyTypes {
		if string(t) == s {
			return t
		}
	}
	return models.StudyOther
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
