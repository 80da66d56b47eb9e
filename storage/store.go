// Package storage ist die Persistenzschicht: gorm/PostgreSQL für Papers, Jobs und Ergebnisse,
// S3 für archivierte Dossiers und Backups.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"claim-dossier/models"
)

var (
	// ErrTransitionRejected: der Job war nicht im erwarteten Ausgangszustand.
	ErrTransitionRejected = errors.New("job status transition rejected")
	ErrJobNotFound        = errors.New("job not found")
)

// Store kapselt alle Datenbankzugriffe der Pipeline.
// Datenbankfehler werden unverändert zurückgegeben.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// Migrate legt die relationalen Tabellen an. Die Chunk-Tabelle gehört dem Vektorindex.
func (s *Store) Migrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&models.Claim{},
		&models.Paper{},
		&models.ClaimPaper{},
		&models.DossierJob{},
		&models.ClaimResult{},
	)
}

func (s *Store) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrClaimNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// CreateJob legt einen neuen Job im Zustand QUEUED an.
func (s *Store) CreateJob(ctx context.Context, claimID, requesterID string) (*models.DossierJob, error) {
	job := &models.DossierJob{
		ID:          uuid.NewString(),
		ClaimID:     claimID,
		RequesterID: requesterID,
		Status:      models.JobQueued,
	}
	if err := s.DB.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.DossierJob, error) {
	var job models.DossierJob
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// LatestJob liefert den jüngsten Job einer Claim.
func (s *Store) LatestJob(ctx context.Context, claimID string) (*models.DossierJob, error) {
	var job models.DossierJob
	err := s.DB.WithContext(ctx).Where("claim_id = ?", claimID).Order("created_at DESC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: claim %s", ErrJobNotFound, claimID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// TransitionJob setzt den Status nur, wenn der Job aktuell im Zustand from ist.
func (s *Store) TransitionJob(ctx context.Context, jobID string, from, to models.JobStatus, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := s.DB.WithContext(ctx).Model(&models.DossierJob{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s %s -> %s", ErrTransitionRejected, jobID, from, to)
	}
	return nil
}

// UpdateJobProgress schreibt nur steigende Werte eines laufenden Jobs.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	return s.DB.WithContext(ctx).Model(&models.DossierJob{}).
		Where("id = ? AND status = ? AND progress < ?", jobID, models.JobRunning, progress).
		Update("progress", progress).Error
}

// RequeueJob setzt einen fehlgeschlagenen Job für einen neuen Versuch zurück.
func (s *Store) RequeueJob(ctx context.Context, jobID string) error {
	return s.TransitionJob(ctx, jobID, models.JobFailed, models.JobQueued, map[string]any{
		"progress":    0,
		"error":       "",
		"started_at":  nil,
		"finished_at": nil,
	})
}

// FailJob markiert einen noch aktiven Job als FAILED (z.B. nach einem Timeout).
// Liefert false, wenn der Job bereits in einem Endzustand war.
func (s *Store) FailJob(ctx context.Context, jobID, message string) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.DossierJob{}).
		Where("id = ? AND status IN ?", jobID, []models.JobStatus{models.JobQueued, models.JobRunning}).
		Updates(map[string]any{
			"status":      models.JobFailed,
			"error":       message,
			"finished_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected > 0, res.Error
}

// UpsertPaper sucht per ODER über alle Identifier (ohne Identifier: Titel) und füllt beim
// Treffer nur leere Spalten. Ohne Treffer wird eingefügt. created meldet eine neue Zeile.
func (s *Store) UpsertPaper(ctx context.Context, u models.UnifiedPaper) (*models.Paper, bool, error) {
	candidate := u.ToPaper()
	paper, created, err := s.upsertPaper(ctx, candidate)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// paralleler Insert eines anderen Jobs; erneut suchen und mergen
		paper, created, err = s.upsertPaper(ctx, u.ToPaper())
	}
	return paper, created, err
}

func (s *Store) upsertPaper(ctx context.Context, candidate *models.Paper) (*models.Paper, bool, error) {
	where, args := identityFilter(candidate)
	if where == "" {
		if err := s.DB.WithContext(ctx).Create(candidate).Error; err != nil {
			return nil, false, err
		}
		return candidate, true, nil
	}

	var matches []models.Paper
	if err := s.DB.WithContext(ctx).Where(where, args...).Order("id").Find(&matches).Error; err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		if err := s.DB.WithContext(ctx).Create(candidate).Error; err != nil {
			return nil, false, err
		}
		return candidate, true, nil
	}

	// Mehrere Zeilen für dasselbe Werk: die älteste gewinnt. Identifier, die eine andere Zeile
	// bereits hält, werden nicht übernommen (Unique-Index).
	existing := matches[0]
	for i := 1; i < len(matches); i++ {
		s.Logger.Warn("Paper mehrfach gespeichert",
			zap.Uint("paper_id", existing.ID), zap.Uint("duplicate_id", matches[i].ID))
		dropHeldIdentifiers(candidate, &matches[i])
	}

	changed := existing.FillMissing(candidate)
	if len(changed) > 0 {
		if err := s.DB.WithContext(ctx).Model(&existing).Select(changed).Updates(&existing).Error; err != nil {
			return nil, false, err
		}
		s.Logger.Debug("Paper ergänzt", zap.Uint("paper_id", existing.ID), zap.Strings("columns", changed))
	}
	return &existing, false, nil
}

// dropHeldIdentifiers leert die Identifier von candidate, die held bereits trägt.
func dropHeldIdentifiers(candidate, held *models.Paper) {
	drop := func(dst *string, value string) {
		if *dst != "" && *dst == value {
			*dst = ""
		}
	}
	drop(&candidate.DOI, held.DOI)
	drop(&candidate.PMID, held.PMID)
	drop(&candidate.PMCID, held.PMCID)
	drop(&candidate.ArxivID, held.ArxivID)
	drop(&candidate.S2ID, held.S2ID)
}

// identityFilter baut "doi = ? OR pmid = ? ..." über alle gesetzten Identifier.
func identityFilter(p *models.Paper) (string, []any) {
	var parts []string
	var args []any
	add := func(column, value string) {
		if value != "" {
			parts = append(parts, column+" = ?")
			args = append(args, value)
		}
	}
	add("doi", p.DOI)
	add("pmid", p.PMID)
	add("pmc_id", p.PMCID)
	add("arxiv_id", p.ArxivID)
	add("s2_id", p.S2ID)
	if len(parts) == 0 && strings.TrimSpace(p.Title) != "" {
		parts = append(parts, "LOWER(title) = LOWER(?)")
		args = append(args, p.Title)
	}
	return strings.Join(parts, " OR "), args
}

// LinkClaimPaper legt die Verknüpfung idempotent an.
func (s *Store) LinkClaimPaper(ctx context.Context, claimID string, paperID uint) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "claim_id"}, {Name: "paper_id"}},
			DoNothing: true,
		}).
		Create(&models.ClaimPaper{ClaimID: claimID, PaperID: paperID}).Error
}

// SaveEvidence schreibt die Extraktion auf die ClaimPaper-Zeile (Upsert auf claim_id, paper_id).
func (s *Store) SaveEvidence(ctx context.Context, cp *models.ClaimPaper) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "claim_id"}, {Name: "paper_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stance", "ai_summary", "study_type", "sample_size", "population", "duration",
				"effect_size", "key_findings", "limitations", "confidence_score", "relevance_score",
				"extraction_version", "extracted_at", "updated_at",
			}),
		}).
		Create(cp).Error
}

// UpdateClaimResult ersetzt das Urteil einer Claim.
func (s *Store) UpdateClaimResult(ctx context.Context, result *models.ClaimResult) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "claim_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"job_id", "outcome", "verdict_sign", "confidence", "effect_direction",
				"strength_of_evidence", "short_summary", "detailed_summary", "recommended_action",
				"key_factors", "caveats", "what_would_change", "evidence_count", "updated_at",
			}),
		}).
		Create(result).Error
}

// GetClaimResult liefert das gespeicherte Urteil oder nil, wenn keins existiert.
func (s *Store) GetClaimResult(ctx context.Context, claimID string) (*models.ClaimResult, error) {
	var result models.ClaimResult
	err := s.DB.WithContext(ctx).Where("claim_id = ?", claimID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
