package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claim-dossier/app"
	"claim-dossier/config"
	"claim-dossier/queue"
	"claim-dossier/services"
	"claim-dossier/storage"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	if err := newRootCmd(logging).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logging *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "dossierctl",
		Short:        "Operator tool for the claim dossier pipeline",
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create tables, pgvector extension and chunk index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore(logging)
			if err != nil {
				return err
			}
			index, err := app.VectorIndex(cfg, store.DB, logging)
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), store, index); err != nil {
				return err
			}
			logging.Info("Migration completed")
			return nil
		},
	})

	var requester string
	enqueue := &cobra.Command{
		Use:   "enqueue <claim-id>",
		Short: "Queue a dossier job for a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore(logging)
			if err != nil {
				return err
			}
			if _, err := store.GetClaim(cmd.Context(), args[0]); err != nil {
				return err
			}
			q, closeQueue, err := openQueue(cmd.Context(), cfg, store, logging)
			if err != nil {
				return err
			}
			defer closeQueue()
			jobID, err := q.Enqueue(cmd.Context(), args[0], requester)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobID)
			return nil
		},
	}
	enqueue.Flags().StringVar(&requester, "requester", "cli", "requester id recorded on the job")
	root.AddCommand(enqueue)

	root.AddCommand(&cobra.Command{
		Use:   "status <claim-id>",
		Short: "Show the latest dossier job of a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openStore(logging)
			if err != nil {
				return err
			}
			job, err := store.LatestJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := map[string]any{
				"job_id":   job.ID,
				"status":   job.Status,
				"progress": job.Progress,
				"step":     services.StepLabel(job.Progress),
				"error":    job.Error,
				"attempts": job.Attempts,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	})

	var minIdle time.Duration
	reclaim := &cobra.Command{
		Use:   "reclaim",
		Short: "Fail and retry jobs whose stream entries are stuck",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore(logging)
			if err != nil {
				return err
			}
			q, closeQueue, err := openQueue(cmd.Context(), cfg, store, logging)
			if err != nil {
				return err
			}
			defer closeQueue()
			if minIdle <= 0 {
				minIdle = cfg.JobTimeout + time.Minute
			}
			pool := &queue.Pool{Queue: q, Jobs: store, MaxAttempts: cfg.JobMaxAttempts, Name: "dossierctl", Logger: logging}
			n, err := pool.Reclaim(cmd.Context(), minIdle)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d\n", n)
			return nil
		},
	}
	reclaim.Flags().DurationVar(&minIdle, "min-idle", 0, "minimum idle time of a pending entry (default JOB_TIMEOUT+1m)")
	root.AddCommand(reclaim)

	return root
}

func openStore(logging *zap.Logger) (*config.Config, *storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := app.OpenDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, storage.NewStore(db, logging), nil
}

func openQueue(ctx context.Context, cfg *config.Config, store *storage.Store, logging *zap.Logger) (*queue.Queue, func(), error) {
	client, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	q := queue.New(client, store, cfg.JobStream, cfg.JobGroup, logging)
	if err := q.EnsureGroup(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return q, func() { _ = client.Close() }, nil
}
