package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Claim ist die zu prüfende Aussage. Die Tabelle gehört der Hauptanwendung,
// die Pipeline liest sie nur.
type Claim struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (Claim) TableName() string {
	return "claims"
}

// ClaimResult hält das zuletzt synthetisierte Urteil zu einer Claim.
type ClaimResult struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClaimID string `json:"claim_id" gorm:"uniqueIndex;not null"`
	JobID   string `json:"job_id" gorm:"type:uuid"`

	Outcome            Outcome `json:"outcome" gorm:"index"`
	VerdictSign        *int    `json:"verdict_sign"` // +1 gestützt, -1 widerlegt, nil = kein eindeutiges Urteil
	Confidence         float64 `json:"confidence"`
	EffectDirection    string  `json:"effect_direction,omitempty"`
	StrengthOfEvidence string  `json:"strength_of_evidence,omitempty"`
	ShortSummary       string  `json:"short_summary,omitempty" gorm:"type:text"`
	DetailedSummary    string  `json:"detailed_summary,omitempty" gorm:"type:text"`
	RecommendedAction  string  `json:"recommended_action,omitempty" gorm:"type:text"`

	KeyFactors      datatypes.JSON `json:"key_factors,omitempty" gorm:"type:jsonb"`
	Caveats         datatypes.JSON `json:"caveats,omitempty" gorm:"type:jsonb"`
	WhatWouldChange datatypes.JSON `json:"what_would_change,omitempty" gorm:"type:jsonb"`

	EvidenceCount int `json:"evidence_count"`
}

// TableName gibt explizit den Tabellennamen an.
func (ClaimResult) TableName() string {
	return "claim_results"
}

// NewClaimResult baut die persistierbare Zeile aus einem Urteil.
func NewClaimResult(claimID, jobID string, v *Verdict, evidenceCount int) *ClaimResult {
	return &ClaimResult{
		ClaimID:            claimID,
		JobID:              jobID,
		Outcome:            v.Outcome,
		VerdictSign:        v.Outcome.Sign(),
		Confidence:         v.Confidence,
		EffectDirection:    v.EffectDirection,
		StrengthOfEvidence: v.StrengthOfEvidence,
		ShortSummary:       v.ShortSummary,
		DetailedSummary:    v.DetailedSummary,
		RecommendedAction:  v.RecommendedAction,
		KeyFactors:         datatypes.JSON(mustJSON(v.KeyFactors)),
		Caveats:            datatypes.JSON(mustJSON(v.Caveats)),
		WhatWouldChange:    datatypes.JSON(mustJSON(v.WhatWouldChange)),
		EvidenceCount:      evidenceCount,
	}
}

// ErrClaimNotFound wird geliefert, wenn die Claim nicht existiert. Für einen Job ist das fatal.
var ErrClaimNotFound = errors.New("claim not found")
