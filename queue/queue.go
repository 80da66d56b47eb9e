// Package queue verteilt Dossier-Jobs über einen Redis Stream mit Consumer Group.
// Zustellung ist at-least-once; Wiederholungen laufen über erneutes Publizieren mit attempt+1.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"claim-dossier/models"
	"claim-dossier/services"
)

const envelopeField = "envelope"

// Envelope ist der serialisierte Stream-Eintrag.
type Envelope struct {
	EventID    string              `json:"event_id"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	Job        services.JobRequest `json:"job"`
}

// Message ist ein gelesener Stream-Eintrag.
type Message struct {
	ID       string
	Envelope Envelope
}

// JobStore ist der Ausschnitt der Persistenz, den Queue und Pool benötigen.
type JobStore interface {
	CreateJob(ctx context.Context, claimID, requesterID string) (*models.DossierJob, error)
	RequeueJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID, message string) (bool, error)
}

// Queue kapselt Stream und Consumer Group.
type Queue struct {
	client *redis.Client
	jobs   JobStore
	stream string
	group  string
	logger *zap.Logger
}

func New(client *redis.Client, jobs JobStore, stream, group string, logger *zap.Logger) *Queue {
	return &Queue{client: client, jobs: jobs, stream: stream, group: group, logger: logger}
}

// EnsureGroup legt Stream und Consumer Group an, falls nötig.
func (q *Queue) EnsureGroup(ctx context.Context) error {
	if q.stream == "" || q.group == "" {
		return errors.New("stream and group must be provided")
	}
	if err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Enqueue legt den Job (QUEUED) an und publiziert ihn. Liefert die Job-ID.
func (q *Queue) Enqueue(ctx context.Context, claimID, requesterID string) (string, error) {
	job, err := q.jobs.CreateJob(ctx, claimID, requesterID)
	if err != nil {
		return "", err
	}
	req := services.JobRequest{JobID: job.ID, ClaimID: claimID, RequesterID: requesterID, Attempt: 1}
	if _, err := q.Publish(ctx, req); err != nil {
		if _, ferr := q.jobs.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			q.logger.Error("Job konnte nach fehlgeschlagenem Publish nicht als FAILED markiert werden", zap.String("job_id", job.ID), zap.Error(ferr))
		}
		return "", err
	}
	q.logger.Info("Dossier-Job eingereiht", zap.String("job_id", job.ID), zap.String("claim_id", claimID))
	return job.ID, nil
}

// Publish hängt einen Job-Auftrag an den Stream an.
func (q *Queue) Publish(ctx context.Context, req services.JobRequest) (string, error) {
	env := Envelope{EventID: uuid.NewString(), EnqueuedAt: time.Now().UTC(), Job: req}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{envelopeField: raw},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// Read liest höchstens count neue Einträge für consumer; blockiert bis zu block.
func (q *Queue) Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []Message
	for _, st := range streams {
		for _, msg := range st.Messages {
			if decoded, ok := q.decode(ctx, msg); ok {
				out = append(out, decoded)
			}
		}
	}
	return out, nil
}

// Ack bestätigt verarbeitete Einträge.
func (q *Queue) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// AutoClaim übernimmt Einträge, die länger als minIdle unbestätigt sind.
func (q *Queue) AutoClaim(ctx context.Context, consumer string, minIdle time.Duration, start string, count int64) ([]Message, string, error) {
	msgs, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    start,
		Count:    count,
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("xautoclaim: %w", err)
	}
	var out []Message
	for _, msg := range msgs {
		if decoded, ok := q.decode(ctx, msg); ok {
			out = append(out, decoded)
		}
	}
	return out, next, nil
}

// decode bestätigt unlesbare Einträge sofort, damit sie nicht ewig pending bleiben.
func (q *Queue) decode(ctx context.Context, msg redis.XMessage) (Message, bool) {
	var data []byte
	switch v := msg.Values[envelopeField].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	}

	var env Envelope
	if len(data) == 0 || json.Unmarshal(data, &env) != nil || env.Job.JobID == "" {
		q.logger.Warn("Ungültiger Stream-Eintrag wird verworfen", zap.String("message_id", msg.ID))
		_ = q.client.XAck(ctx, q.stream, q.group, msg.ID).Err()
		return Message{}, false
	}
	return Message{ID: msg.ID, Envelope: env}, true
}
