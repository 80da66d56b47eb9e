package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"claim-dossier/services"
)

// ErrJobTimedOut ist die Fehlermeldung für Jobs, die das Zeitlimit überschritten haben.
var ErrJobTimedOut = errors.New("job timed out")

// Handler verarbeitet einen Job. Ein Fehler löst die Retry-Policy aus.
type Handler func(ctx context.Context, req services.JobRequest) error

// Pool ist ein begrenzter Worker-Pool: jeder Worker bearbeitet genau einen Job gleichzeitig.
type Pool struct {
	Queue       *Queue
	Jobs        JobStore
	Handler     Handler
	Concurrency int
	JobTimeout  time.Duration
	MaxAttempts int
	Name        string
	Logger      *zap.Logger
}

// Run startet die Worker und blockiert, bis ctx beendet ist.
func (p *Pool) Run(ctx context.Context) error {
	n := p.Concurrency
	if n <= 0 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		consumer := fmt.Sprintf("%s-%d", p.Name, i)
		g.Go(func() error {
			p.work(ctx, consumer)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, consumer string) {
	log := p.Logger.With(zap.String("consumer", consumer))
	log.Info("Worker gestartet")
	for {
		if ctx.Err() != nil {
			log.Info("Worker beendet")
			return
		}
		msgs, err := p.Queue.Read(ctx, consumer, 1, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error("Lesen aus dem Stream fehlgeschlagen", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			p.process(ctx, log, msg)
		}
	}
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, msg Message) {
	req := msg.Envelope.Job
	jobCtx := ctx
	if p.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.JobTimeout)
		defer cancel()
	}

	err := p.Handler(jobCtx, req)
	// Ack und Retry auch beim Shutdown noch ausführen
	bg := context.WithoutCancel(ctx)
	if err != nil {
		p.retry(bg, log, req, err)
	}
	if err := p.Queue.Ack(bg, msg.ID); err != nil {
		log.Error("Ack fehlgeschlagen", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// retry setzt einen FAILED-Job zurück auf QUEUED und publiziert ihn mit attempt+1,
// solange MaxAttempts nicht erreicht ist.
func (p *Pool) retry(ctx context.Context, log *zap.Logger, req services.JobRequest, cause error) {
	log = log.With(zap.String("job_id", req.JobID), zap.Int("attempt", req.Attempt))
	if req.Attempt >= p.MaxAttempts {
		log.Error("Job endgültig fehlgeschlagen, keine weiteren Versuche", zap.Error(cause))
		return
	}
	if err := p.Jobs.RequeueJob(ctx, req.JobID); err != nil {
		log.Warn("Job wird nicht erneut eingereiht", zap.Error(err))
		return
	}
	next := req
	next.Attempt++
	if _, err := p.Queue.Publish(ctx, next); err != nil {
		log.Error("Erneutes Einreihen fehlgeschlagen", zap.Error(err))
		if _, ferr := p.Jobs.FailJob(ctx, req.JobID, err.Error()); ferr != nil {
			log.Error("Job konnte nicht als FAILED markiert werden", zap.Error(ferr))
		}
		return
	}
	log.Info("Job erneut eingereiht", zap.Int("next_attempt", next.Attempt), zap.Error(cause))
}

// Reclaim übernimmt Einträge, die länger als minIdle hängen (abgestürzter Worker),
// markiert ihre Jobs als FAILED und wendet die Retry-Policy an. Liefert die Zahl übernommener Einträge.
func (p *Pool) Reclaim(ctx context.Context, minIdle time.Duration) (int, error) {
	consumer := p.Name + "-reclaim"
	start := "0-0"
	total := 0
	for {
		msgs, next, err := p.Queue.AutoClaim(ctx, consumer, minIdle, start, 50)
		if err != nil {
			return total, err
		}
		for _, msg := range msgs {
			req := msg.Envelope.Job
			failed, err := p.Jobs.FailJob(ctx, req.JobID, ErrJobTimedOut.Error())
			if err != nil {
				return total, err
			}
			if failed {
				p.Logger.Warn("Hängenden Job übernommen", zap.String("job_id", req.JobID), zap.String("message_id", msg.ID))
				p.retry(ctx, p.Logger, req, ErrJobTimedOut)
			}
			if err := p.Queue.Ack(ctx, msg.ID); err != nil {
				return total, err
			}
			total++
		}
		if next == "" || next == "0-0" {
			return total, nil
		}
		start = next
	}
}
