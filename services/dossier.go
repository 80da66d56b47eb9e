package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"claim-dossier/metrics"
	"claim-dossier/models"
	"claim-dossier/vectorindex"
)

// Store ist der Persistenz-Kollaborator der Pipeline. Fehler werden unverändert durchgereicht,
// damit die Fehlermeldung eines Jobs der Originalmeldung entspricht.
type Store interface {
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	TransitionJob(ctx context.Context, jobID string, from, to models.JobStatus, fields map[string]any) error
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
	UpsertPaper(ctx context.Context, paper models.UnifiedPaper) (*models.Paper, bool, error)
	LinkClaimPaper(ctx context.Context, claimID string, paperID uint) error
	SaveEvidence(ctx context.Context, cp *models.ClaimPaper) error
	UpdateClaimResult(ctx context.Context, result *models.ClaimResult) error
}

// FullTextFinder sucht eine frei zugängliche Volltext-URL zu einer DOI ("" = keine gefunden).
type FullTextFinder interface {
	FullTextURL(ctx context.Context, doi string) (string, error)
}

// Archiver legt fertige Dossiers als JSON ab und liefert deren URL.
type Archiver interface {
	UploadJSON(ctx context.Context, key string, v any) (string, error)
}

// DossierOptions sind die Stellschrauben eines Laufs.
type DossierOptions struct {
	MaxEvidencePapers int
	ChunksPerPaper    int
	MinSimilarity     float64
	FullTextLookups   int
}

// JobRequest ist der Auftrag aus der Queue.
type JobRequest struct {
	JobID       string `json:"job_id"`
	ClaimID     string `json:"claim_id"`
	RequesterID string `json:"requester_id"`
	Attempt     int    `json:"attempt"`
}

// DossierResult fasst einen erfolgreichen Lauf zusammen.
type DossierResult struct {
	JobID              string
	ClaimID            string
	Sources            []SourceOutcome
	RecordsFound       int
	UniquePapers       int
	PapersCreated      int
	ChunksIndexed      int
	Candidates         int
	Cards              []models.EvidenceCard
	ExtractionFailures int
	Verdict            *models.Verdict
	References         []Reference
	ArchiveURL         string
}

// DossierDocument ist das archivierte Dossier.
type DossierDocument struct {
	JobID       string                `json:"job_id"`
	Claim       models.Claim          `json:"claim"`
	GeneratedAt time.Time             `json:"generated_at"`
	Verdict     *models.Verdict       `json:"verdict,omitempty"`
	Evidence    []models.EvidenceCard `json:"evidence"`
	References  []string              `json:"references"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// DossierService orchestriert einen kompletten Pipeline-Lauf für eine Claim.
type DossierService struct {
	Store     Store
	Search    *SearchService
	Chunker   *Chunker
	Embedder  *EmbeddingService
	Index     vectorindex.Index
	Extractor *EvidenceExtractor
	Verdicts  *VerdictSynthesizer
	FullText  FullTextFinder // optional
	Archive   Archiver       // optional
	Options   DossierOptions
	Logger    *zap.Logger

	now func() time.Time
}

func (s *DossierService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Run führt den Job von QUEUED über RUNNING in einen Endzustand. Jeder Fehler nach dem Start
// setzt den Job mit der unveränderten Fehlermeldung auf FAILED und wird an die Queue zurückgegeben.
// Null Papers nach der Deduplizierung ist ein erfolgreicher Lauf ohne Urteil.
func (s *DossierService) Run(ctx context.Context, req JobRequest, sink ProgressSink) (*DossierResult, error) {
	log := s.Logger.With(zap.String("job_id", req.JobID), zap.String("claim_id", req.ClaimID), zap.Int("attempt", req.Attempt))
	start := time.Now()

	err := s.Store.TransitionJob(ctx, req.JobID, models.JobQueued, models.JobRunning, map[string]any{
		"started_at":  s.clock(),
		"progress":    progressRunning,
		"error":       "",
		"finished_at": nil,
		"attempts":    req.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("job %s konnte nicht gestartet werden: %w", req.JobID, err)
	}
	log.Info("Dossier-Job gestartet")

	tracker := &progressTracker{
		current: progressRunning,
		persist: func(p int) error { return s.Store.UpdateJobProgress(ctx, req.JobID, p) },
		sink:    sink,
	}
	if sink != nil {
		sink(progressRunning)
	}

	res, err := s.run(ctx, log, req, tracker)
	if err == nil {
		err = s.Store.TransitionJob(ctx, req.JobID, models.JobRunning, models.JobSucceeded, map[string]any{
			"progress":    progressComplete,
			"finished_at": s.clock(),
		})
	}
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("Dossier-Job fehlgeschlagen", zap.Error(err))
		failErr := s.Store.TransitionJob(context.WithoutCancel(ctx), req.JobID, models.JobRunning, models.JobFailed, map[string]any{
			"error":       err.Error(),
			"finished_at": s.clock(),
		})
		if failErr != nil {
			log.Error("Job konnte nicht als FAILED markiert werden", zap.Error(failErr))
		}
		metrics.JobsTotal.WithLabelValues(string(models.JobFailed)).Inc()
		return nil, err
	}

	tracker.current = progressComplete
	if sink != nil {
		sink(progressComplete)
	}
	metrics.JobsTotal.WithLabelValues(string(models.JobSucceeded)).Inc()
	log.Info("Dossier-Job abgeschlossen",
		zap.Int("papers", res.UniquePapers),
		zap.Int("evidence_cards", len(res.Cards)),
		zap.Bool("verdict", res.Verdict != nil),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *DossierService) run(ctx context.Context, log *zap.Logger, req JobRequest, tracker *progressTracker) (*DossierResult, error) {
	res := &DossierResult{JobID: req.JobID, ClaimID: req.ClaimID}

	claim, err := s.Store.GetClaim(ctx, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if err := tracker.advance(progressClaim); err != nil {
		return nil, err
	}

	// Literatursuche
	if err := tracker.advance(progressSearching); err != nil {
		return nil, err
	}
	records, outcomes := s.Search.SearchAll(ctx, claim.Title)
	res.Sources = outcomes
	res.RecordsFound = len(records)

	unified := make([]models.UnifiedPaper, 0, len(records))
	for _, r := range records {
		if u, ok := r.Unified(); ok {
			unified = append(unified, u)
		}
	}
	papers := Deduplicate(unified)
	res.UniquePapers = len(papers)
	if err := tracker.advance(progressDeduped); err != nil {
		return nil, err
	}
	log.Info("Suche abgeschlossen", zap.Int("records", len(records)), zap.Int("unique_papers", len(papers)))
	if len(papers) == 0 {
		log.Info("Keine Papers gefunden, Job endet ohne Urteil")
		return res, nil
	}

	s.enrichFullText(ctx, log, papers)

	// Papers speichern und mit der Claim verknüpfen
	stored := make([]models.Paper, 0, len(papers))
	for _, p := range papers {
		paper, created, err := s.Store.UpsertPaper(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := s.Store.LinkClaimPaper(ctx, claim.ID, paper.ID); err != nil {
			return nil, err
		}
		if created {
			res.PapersCreated++
		}
		stored = append(stored, *paper)
	}
	metrics.PapersAdded.Add(float64(res.PapersCreated))
	if err := tracker.advance(progressStored); err != nil {
		return nil, err
	}

	// Abstracts chunken und indexieren
	if err := tracker.advance(progressIndexing); err != nil {
		return nil, err
	}
	indexed, err := s.indexAbstracts(ctx, stored)
	if err != nil {
		return nil, err
	}
	res.ChunksIndexed = indexed

	// Relevante Passagen abrufen
	if err := tracker.advance(progressRetrieval); err != nil {
		return nil, err
	}
	matches, err := s.retrieve(ctx, claim, stored)
	if err != nil {
		return nil, err
	}

	// Evidenz extrahieren, sequentiell
	if err := tracker.advance(progressExtraction); err != nil {
		return nil, err
	}
	candidates := SelectCandidates(stored, matches, s.Options.MaxEvidencePapers)
	res.Candidates = len(candidates)
	for i, c := range candidates {
		card, err := s.Extractor.Extract(ctx, claim, c)
		if err != nil {
			res.ExtractionFailures++
			metrics.ExtractionFailures.Inc()
			log.Warn("Evidenz-Extraktion fehlgeschlagen, Paper wird übersprungen", zap.Uint("paper_id", c.Paper.ID), zap.Error(err))
		} else {
			if err := s.Store.SaveEvidence(ctx, models.NewClaimPaperEvidence(claim.ID, card, s.clock())); err != nil {
				return nil, err
			}
			res.Cards = append(res.Cards, *card)
		}
		if err := tracker.advance(extractionProgress(i+1, len(candidates))); err != nil {
			return nil, err
		}
	}

	// Urteil synthetisieren
	if err := tracker.advance(progressSynthesis); err != nil {
		return nil, err
	}
	verdict, err := s.Verdicts.Synthesize(ctx, claim, res.Cards)
	switch {
	case errors.Is(err, ErrNoEvidence):
		log.Info("Keine Evidence Cards, Synthese übersprungen")
	case err != nil:
		log.Warn("Urteilssynthese fehlgeschlagen, Job endet ohne Urteil", zap.Error(err))
	default:
		res.Verdict = verdict
	}

	// Ergebnisse speichern
	if err := tracker.advance(progressSaving); err != nil {
		return nil, err
	}
	if res.Verdict != nil {
		if err := s.Store.UpdateClaimResult(ctx, models.NewClaimResult(claim.ID, req.JobID, res.Verdict, len(res.Cards))); err != nil {
			return nil, err
		}
	}
	s.archive(ctx, log, claim, res, stored)
	return res, nil
}

// enrichFullText ergänzt fehlende Volltext-URLs über Unpaywall. Fehler werden nur geloggt.
func (s *DossierService) enrichFullText(ctx context.Context, log *zap.Logger, papers []models.UnifiedPaper) {
	if s.FullText == nil {
		return
	}
	lookups := 0
	for i := range papers {
		p := &papers[i]
		if p.DOI == "" || p.FullTextURL != "" {
			continue
		}
		if s.Options.FullTextLookups > 0 && lookups >= s.Options.FullTextLookups {
			return
		}
		lookups++
		link, err := s.FullText.FullTextURL(ctx, p.DOI)
		if err != nil {
			log.Warn("Unpaywall-Abfrage fehlgeschlagen", zap.String("doi", p.DOI), zap.Error(err))
			continue
		}
		if link != "" {
			p.FullTextURL = link
		}
	}
}

// indexAbstracts chunked und embedded alle Papers, die noch keine Chunks haben (Chunks sind unveränderlich).
func (s *DossierService) indexAbstracts(ctx context.Context, papers []models.Paper) (int, error) {
	ids := make([]uint, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}
	done, err := s.Index.IndexedPaperIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	var pending []models.Chunk
	for _, p := range papers {
		if done[p.ID] {
			continue
		}
		for _, c := range s.Chunker.Split(CleanAbstract(p.Abstract)) {
			pending = append(pending, models.Chunk{
				PaperID:         p.ID,
				ChunkIndex:      c.ChunkIndex,
				Content:         c.Content,
				EstimatedTokens: c.EstimatedTokens,
			})
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if err := s.Embedder.EmbedChunks(ctx, pending); err != nil {
		return 0, err
	}
	if err := s.Index.Insert(ctx, pending); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// retrieve sucht die relevantesten Chunks je Paper für die Claim.
func (s *DossierService) retrieve(ctx context.Context, claim *models.Claim, papers []models.Paper) ([]vectorindex.PaperMatches, error) {
	ids := make([]uint, 0, len(papers))
	for _, p := range papers {
		if p.Abstract != "" {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := claim.Title
	if claim.Description != "" {
		query += "\n" + claim.Description
	}
	vectors, err := s.Embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return s.Index.SearchGrouped(ctx, vectorindex.Query{
		Embedding:     vectors[0],
		Limit:         s.Options.MaxEvidencePapers,
		MinSimilarity: s.Options.MinSimilarity,
		PaperIDs:      ids,
	}, s.Options.ChunksPerPaper)
}

// archive exportiert das Dossier, falls ein Archiv konfiguriert ist. Fehler werden nur geloggt.
func (s *DossierService) archive(ctx context.Context, log *zap.Logger, claim *models.Claim, res *DossierResult, papers []models.Paper) {
	byID := make(map[uint]models.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	text := ""
	if res.Verdict != nil {
		text = res.Verdict.DetailedSummary
	}
	refs, warnings := BuildBibliography(text, ReferencesFor(res.Cards, byID))
	res.References = refs
	for _, w := range warnings {
		log.Warn("Literaturverzeichnis unvollständig", zap.String("warning", w))
	}

	if s.Archive == nil {
		return
	}
	doc := DossierDocument{
		JobID:       res.JobID,
		Claim:       *claim,
		GeneratedAt: s.clock(),
		Verdict:     res.Verdict,
		Evidence:    res.Cards,
		Warnings:    warnings,
	}
	for _, r := range refs {
		doc.References = append(doc.References, FormatReference(r))
	}
	key := fmt.Sprintf("dossiers/%s/%s.json", claim.ID, res.JobID)
	link, err := s.Archive.UploadJSON(ctx, key, doc)
	if err != nil {
		log.Warn("Dossier-Archivierung fehlgeschlagen", zap.String("key", key), zap.Error(err))
		return
	}
	res.ArchiveURL = link
	log.Info("Dossier archiviert", zap.String("url", link))
}
