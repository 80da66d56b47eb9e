package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ExtractionVersion kennzeichnet Prompt/Schema der Evidenz-Extraktion.
const ExtractionVersion = "evidence-v1"

// ClaimPaper verknüpft eine Claim mit einem Paper und speichert die extrahierte Evidenz.
type ClaimPaper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClaimID string `json:"claim_id" gorm:"index:idx_claim_papers_claim_paper,unique;not null"`
	PaperID uint   `json:"paper_id" gorm:"index:idx_claim_papers_claim_paper,unique;not null"`

	Stance            Stance         `json:"stance,omitempty" gorm:"index"`
	AISummary         string         `json:"ai_summary,omitempty" gorm:"type:text"`
	StudyType         StudyType      `json:"study_type,omitempty"`
	SampleSize        *int           `json:"sample_size,omitempty"`
	Population        string         `json:"population,omitempty"`
	Duration          string         `json:"duration,omitempty"`
	EffectSize        string         `json:"effect_size,omitempty"`
	KeyFindings       datatypes.JSON `json:"key_findings,omitempty" gorm:"type:jsonb"`
	Limitations       datatypes.JSON `json:"limitations,omitempty" gorm:"type:jsonb"`
	ConfidenceScore   *float64       `json:"confidence_score,omitempty"`
	RelevanceScore    *float64       `json:"relevance_score,omitempty"`
	ExtractionVersion string         `json:"extraction_version,omitempty"`
	ExtractedAt       *time.Time     `json:"extracted_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (ClaimPaper) TableName() string {
	return "claim_papers"
}

// NewClaimPaperEvidence baut die Evidenz-Zeile aus einer Evidence Card.
func NewClaimPaperEvidence(claimID string, card *EvidenceCard, at time.Time) *ClaimPaper {
	confidence := card.Confidence
	relevance := card.RelevanceScore
	return &ClaimPaper{
		ClaimID:           claimID,
		PaperID:           card.PaperID,
		Stance:            card.Stance,
		AISummary:         card.Summary,
		StudyType:         card.StudyType,
		SampleSize:        card.SampleSize,
		Population:        card.Population,
		Duration:          card.Duration,
		EffectSize:        card.EffectSize,
		KeyFindings:       datatypes.JSON(mustJSON(card.KeyFindings)),
		Limitations:       datatypes.JSON(mustJSON(card.Limitations)),
		ConfidenceScore:   &confidence,
		RelevanceScore:    &relevance,
		ExtractionVersion: ExtractionVersion,
		ExtractedAt:       &at,
	}
}

// mustJSON serialisiert String-Listen; nil wird zu "[]".
func mustJSON(items []string) []byte {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return b
}
