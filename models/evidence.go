package models

// Stance beschreibt, wie sich ein Paper zur Claim verhält.
type Stance string

const (
	StanceSupports     Stance = "SUPPORTS"
	StanceContradicts  Stance = "CONTRADICTS"
	StanceNeutral      Stance = "NEUTRAL"
	StanceInsufficient Stance = "INSUFFICIENT"
)

// Valid prüft, ob die Stance zum erlaubten Wertebereich gehört.
func (s Stance) Valid() bool {
	switch s {
	case StanceSupports, StanceContradicts, StanceNeutral, StanceInsufficient:
		return true
	}
	return false
}

// StudyType klassifiziert das Studiendesign.
type StudyType string

const (
	StudyMetaAnalysis     StudyType = "META_ANALYSIS"
	StudySystematicReview StudyType = "SYSTEMATIC_REVIEW"
	StudyRCT              StudyType = "RCT"
	StudyCohort           StudyType = "COHORT"
	StudyCaseControl      StudyType = "CASE_CONTROL"
	StudyCrossSectional   StudyType = "CROSS_SECTIONAL"
	StudyCaseReport       StudyType = "CASE_REPORT"
	StudyAnimal           StudyType = "ANIMAL"
	StudyInVitro          StudyType = "IN_VITRO"
	StudyReview           StudyType = "REVIEW"
	StudyOther            StudyType = "OTHER"
)

// StudyTypes listet alle Studientypen in absteigender Evidenzqualität.
var StudyTypes = []StudyType{
	StudyMetaAnalysis, StudySystematicReview, StudyRCT, StudyCohort, StudyCaseControl,
	StudyCrossSectional, StudyCaseReport, StudyAnimal, StudyInVitro, StudyReview, StudyOther,
}

// Outcome ist das Gesamturteil der Synthese.
type Outcome string

const (
	OutcomeSupported    Outcome = "SUPPORTED"
	OutcomeMixed        Outcome = "MIXED"
	OutcomeInsufficient Outcome = "INSUFFICIENT"
	OutcomeContradicted Outcome = "CONTRADICTED"
)

// Valid prüft, ob das Outcome zum erlaubten Wertebereich gehört.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSupported, OutcomeMixed, OutcomeInsufficient, OutcomeContradicted:
		return true
	}
	return false
}

// Sign bildet das Outcome auf das gespeicherte Vorzeichen ab.
// MIXED und INSUFFICIENT haben kein eindeutiges Vorzeichen.
func (o Outcome) Sign() *int {
	var sign int
	switch o {
	case OutcomeSupported:
		sign = 1
	case OutcomeContradicted:
		sign = -1
	default:
		return nil
	}
	return &sign
}

// EvidenceCard ist das strukturierte Extraktionsergebnis für ein Paper. Nur im Speicher.
type EvidenceCard struct {
	PaperID        uint      `json:"paper_id"`
	Title          string    `json:"title"`
	Year           int       `json:"year,omitempty"`
	Stance         Stance    `json:"stance"`
	Confidence     float64   `json:"confidence"`
	Summary        string    `json:"summary"`
	StudyType      StudyType `json:"study_type"`
	SampleSize     *int      `json:"sample_size,omitempty"`
	Population     string    `json:"population,omitempty"`
	Duration       string    `json:"duration,omitempty"`
	EffectSize     string    `json:"effect_size,omitempty"`
	KeyFindings    []string  `json:"key_findings,omitempty"`
	Limitations    []string  `json:"limitations,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Verdict ist das Ergebnis der Urteilssynthese.
type Verdict struct {
	Outcome            Outcome  `json:"outcome"`
	Confidence         float64  `json:"confidence"`
	EffectDirection    string   `json:"effect_direction"`
	ShortSummary       string   `json:"short_summary"`
	DetailedSummary    string   `json:"detailed_summary"`
	StrengthOfEvidence string   `json:"strength_of_evidence"`
	KeyFactors         []string `json:"key_factors"`
	Caveats            []string `json:"caveats"`
	WhatWouldChange    []string `json:"what_would_change"`
	RecommendedAction  string   `json:"recommended_action"`
}
