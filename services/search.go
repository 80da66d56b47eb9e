package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"claim-dossier/metrics"
	"claim-dossier/models"
	"claim-dossier/providers"
)

// SourceOutcome beschreibt das Ergebnis eines Providers in einem Fan-out.
type SourceOutcome struct {
	Source   models.SourceName
	Count    int
	Err      error
	Duration time.Duration
}

// SearchService fragt alle aktivierten Provider parallel ab (settle-all, kein fail-fast).
type SearchService struct {
	Providers  []providers.Provider
	MaxResults int
	Timeout    time.Duration
	Logger     *zap.Logger
}

func NewSearchService(ps []providers.Provider, maxResults int, timeout time.Duration, logger *zap.Logger) *SearchService {
	return &SearchService{Providers: ps, MaxResults: maxResults, Timeout: timeout, Logger: logger}
}

// SearchAll liefert die Treffer aller erfolgreichen Provider in Provider-Reihenfolge.
// Fehler, Timeouts und Panics einzelner Provider werden geloggt und im Outcome gemeldet.
func (s *SearchService) SearchAll(ctx context.Context, query string) ([]models.SourceRecord, []SourceOutcome) {
	results := make([][]models.SourceRecord, len(s.Providers))
	outcomes := make([]SourceOutcome, len(s.Providers))

	var g errgroup.Group
	for i, p := range s.Providers {
		g.Go(func() error {
			start := time.Now()
			records, err := s.searchOne(ctx, p, query)
			outcomes[i] = SourceOutcome{Source: p.Name(), Count: len(records), Err: err, Duration: time.Since(start)}
			if err != nil {
				metrics.SourceFailures.WithLabelValues(string(p.Name())).Inc()
				s.Logger.Warn("Provider-Suche fehlgeschlagen", zap.String("provider", string(p.Name())), zap.Error(err))
				return nil
			}
			results[i] = records
			s.Logger.Info("Provider hat Ergebnisse geliefert", zap.String("provider", string(p.Name())), zap.Int("count", len(records)))
			return nil
		})
	}
	_ = g.Wait()

	var all []models.SourceRecord
	for _, r := range results {
		all = append(all, r...)
	}
	return all, outcomes
}

func (s *SearchService) searchOne(ctx context.Context, p providers.Provider, query string) (records []models.SourceRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return p.Search(ctx, query, s.MaxResults)
}
