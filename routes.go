package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"claim-dossier/models"
	"claim-dossier/services"
	"claim-dossier/storage"
)

type jobEnqueuer interface {
	Enqueue(ctx context.Context, claimID, requesterID string) (string, error)
}

type dossierReader interface {
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	LatestJob(ctx context.Context, claimID string) (*models.DossierJob, error)
	GetClaimResult(ctx context.Context, claimID string) (*models.ClaimResult, error)
}

type dossierStatus struct {
	JobID      string              `json:"job_id"`
	Status     models.JobStatus    `json:"status"`
	Progress   int                 `json:"progress"`
	Step       string              `json:"step"`
	Error      string              `json:"error,omitempty"`
	Attempts   int                 `json:"attempts"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Result     *models.ClaimResult `json:"result,omitempty"`
}

func setupDossierRoutes(router gin.IRouter, enqueuer jobEnqueuer, reader dossierReader, log *zap.Logger) {
	rg := router.Group("/claims/:id/dossier")

	// Startet einen neuen Lauf, sofern für die Claim keiner aktiv ist.
	rg.POST("", func(c *gin.Context) {
		claimID := c.Param("id")
		var body struct {
			RequesterID string `json:"requester_id"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		ctx := c.Request.Context()
		if _, err := reader.GetClaim(ctx, claimID); err != nil {
			if errors.Is(err, models.ErrClaimNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
				return
			}
			log.Error("Claim lookup failed", zap.String("claim_id", claimID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		job, err := reader.LatestJob(ctx, claimID)
		switch {
		case err == nil && !job.Status.Terminal():
			c.JSON(http.StatusConflict, gin.H{"error": "dossier job already active", "job_id": job.ID})
			return
		case err != nil && !errors.Is(err, storage.ErrJobNotFound):
			log.Error("Job lookup failed", zap.String("claim_id", claimID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		jobID, err := enqueuer.Enqueue(ctx, claimID, body.RequesterID)
		if err != nil {
			log.Error("Enqueue failed", zap.String("claim_id", claimID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
	})

	// Liefert Status und Fortschritt des jüngsten Laufs.
	rg.GET("", func(c *gin.Context) {
		claimID := c.Param("id")
		ctx := c.Request.Context()

		job, err := reader.LatestJob(ctx, claimID)
		if errors.Is(err, storage.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no dossier job for claim"})
			return
		}
		if err != nil {
			log.Error("Job lookup failed", zap.String("claim_id", claimID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		status := dossierStatus{
			JobID:      job.ID,
			Status:     job.Status,
			Progress:   job.Progress,
			Step:       services.StepLabel(job.Progress),
			Error:      job.Error,
			Attempts:   job.Attempts,
			StartedAt:  job.StartedAt,
			FinishedAt: job.FinishedAt,
		}
		if job.Status == models.JobSucceeded {
			result, err := reader.GetClaimResult(ctx, claimID)
			if err != nil {
				log.Warn("Result lookup failed", zap.String("claim_id", claimID), zap.Error(err))
			}
			status.Result = result
		}
		c.JSON(http.StatusOK, status)
	})
}
