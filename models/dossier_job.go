package models

import "time"

// JobStatus ist der Zustand eines Dossier-Jobs.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal meldet, ob der Zustand ein Endzustand ist.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// DossierJob ist ein Pipeline-Durchlauf für eine Claim.
type DossierJob struct {
	ID          string     `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClaimID     string     `json:"claim_id" gorm:"index;not null"`
	RequesterID string     `json:"requester_id"`
	Status      JobStatus  `json:"status" gorm:"index;not null;default:'QUEUED'"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (DossierJob) TableName() string {
	return "dossier_jobs"
}
