package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"claim-dossier/llm"
	"claim-dossier/models"
)

// ErrNoEvidence bedeutet, dass ohne Evidence Cards keine Synthese stattfindet.
var ErrNoEvidence = errors.New("no evidence to synthesize")

const verdictSystemPrompt = `You are a senior evidence reviewer. You weigh the findings of several studies to judge a factual claim.
Weight study designs by quality: meta-analyses and systematic reviews above randomized controlled trials,
randomized controlled trials above cohort studies, cohort above case-control, case-control above cross-sectional,
and all of these above case reports, in-vitro and animal studies. Larger samples outweigh smaller ones.
Cite studies by their bracketed number, e.g. [2]. Respond with JSON only.`

// VerdictSynthesizer fasst alle Evidence Cards in einem LLM-Call zu einem Urteil zusammen.
type VerdictSynthesizer struct {
	LLM    llm.Completer
	Logger *zap.Logger
}

func NewVerdictSynthesizer(completer llm.Completer, logger *zap.Logger) *VerdictSynthesizer {
	return &VerdictSynthesizer{LLM: completer, Logger: logger}
}

// Synthesize liefert ErrNoEvidence ohne LLM-Call, wenn cards leer ist.
func (v *VerdictSynthesizer) Synthesize(ctx context.Context, claim *models.Claim, cards []models.EvidenceCard) (*models.Verdict, error) {
	if len(cards) == 0 {
		return nil, ErrNoEvidence
	}
	raw, err := v.LLM.CompleteJSON(ctx, llm.JSONRequest{
		System:     verdictSystemPrompt,
		Prompt:     buildVerdictPrompt(claim, cards),
		SchemaName: "verdict",
		Schema:     verdictSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("verdict synthesis: %w", err)
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, fmt.Errorf("verdict synthesis: %w", err)
	}
	return verdict, nil
}

func buildVerdictPrompt(claim *models.Claim, cards []models.EvidenceCard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CLAIM: %s\n", claim.Title)
	if d := strings.TrimSpace(claim.Description); d != "" {
		fmt.Fprintf(&b, "CLAIM DETAILS: %s\n", d)
	}
	fmt.Fprintf(&b, "\nEVIDENCE (%d studies):\n", len(cards))
	for i, c := range cards {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, c.Title)
		if c.Year > 0 {
			fmt.Fprintf(&b, " (%d)", c.Year)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Study type: %s\n", c.StudyType)
		if c.SampleSize != nil {
			fmt.Fprintf(&b, "Sample size: %d\n", *c.SampleSize)
		} else {
			b.WriteString("Sample size: not reported\n")
		}
		fmt.Fprintf(&b, "Stance: %s (confidence %.2f)\n", c.Stance, c.Confidence)
		if c.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", c.Summary)
		}
		if len(c.KeyFindings) > 0 {
			b.WriteString("Key findings:\n")
			for _, f := range c.KeyFindings {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
	}
	b.WriteString(`
Decide an overall outcome: SUPPORTED, MIXED, INSUFFICIENT or CONTRADICTED.
Give a confidence between 0 and 1, the effect direction, the strength of evidence,
a one-sentence short summary and a detailed summary citing studies as [n].
List key factors, caveats and what new evidence would change the verdict, and recommend an action.`)
	return b.String()
}

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"outcome":              map[string]any{"type": "string", "enum": []string{"SUPPORTED", "MIXED", "INSUFFICIENT", "CONTRADICTED"}},
		"confidence":           map[string]any{"type": "number"},
		"effect_direction":     map[string]any{"type": "string"},
		"short_summary":        map[string]any{"type": "string"},
		"detailed_summary":     map[string]any{"type": "string"},
		"strength_of_evidence": map[string]any{"type": "string"},
		"key_factors":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"caveats":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"what_would_change":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"recommended_action":   map[string]any{"type": "string"},
	},
	"required": []string{
		"outcome", "confidence", "effect_direction", "short_summary", "detailed_summary",
		"strength_of_evidence", "key_factors", "caveats", "what_would_change", "recommended_action",
	},
	"additionalProperties": false,
}

func parseVerdict(raw string) (*models.Verdict, error) {
	var v models.Verdict
	if err := llm.DecodeJSON(raw, &v); err != nil {
		return nil, err
	}
	v.Outcome = models.Outcome(strings.ToUpper(strings.TrimSpace(string(v.Outcome))))
	if !v.Outcome.Valid() {
		return nil, fmt.Errorf("invalid outcome %q", v.Outcome)
	}
	v.Confidence = clamp01(v.Confidence)
	v.KeyFactors = nonEmpty(v.KeyFactors)
	v.Caveats = nonEmpty(v.Caveats)
	v.WhatWouldChange = nonEmpty(v.WhatWouldChange)
	return &v, nil
}
