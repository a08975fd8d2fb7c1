// Command worker runs the job queue worker pool (C6) that dispatches
// every pipeline step handler (C7), plus the periodic Room 4 summary
// poster (C12) and the queue-depth metrics sampler.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/chatgateway"
	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/database"
	"github.com/carlosapgomes/triage-automation/pkg/intake"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/llm"
	"github.com/carlosapgomes/triage-automation/pkg/models"
	"github.com/carlosapgomes/triage-automation/pkg/pdf"
	"github.com/carlosapgomes/triage-automation/pkg/pipeline"
	"github.com/carlosapgomes/triage-automation/pkg/prompttemplate"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
	"github.com/carlosapgomes/triage-automation/pkg/summary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	chatClient, err := chatgateway.NewClient(cfg.MatrixHomeserverURL, cfg.MatrixBotUserID, cfg.MatrixAccessToken, cfg.MatrixSyncTimeout)
	if err != nil {
		log.Fatalf("failed to build chat gateway client: %v", err)
	}

	var llmClient llm.Client
	if cfg.LLMRuntimeMode == config.LLMModeProvider {
		llmClient = llm.NewProvider(cfg.OpenAIAPIKey, "gpt-4o-mini")
	} else {
		llmClient = llm.NewDeterministic("{}")
	}

	casesStore := casestore.NewStore(dbClient.DB)
	journalStore := journal.NewStore(dbClient.DB)
	queueStore := queue.NewStore(dbClient.DB, cfg.Queue)
	checkpointStore := checkpoint.NewStore(dbClient.DB)
	promptStore := prompttemplate.NewStore(dbClient.DB)
	intakeSvc := intake.NewService(casesStore, journalStore, queueStore, chatClient)
	extractor := pdf.NewExecExtractor("")

	dispatcher := pipeline.NewDispatcher(
		casesStore, journalStore, queueStore, checkpointStore, promptStore,
		chatClient, llmClient, extractor, intakeSvc,
		pipeline.Rooms{Room2ID: cfg.Room2ID, Room3ID: cfg.Room3ID},
	)

	n, err := queueStore.ReconcileOrphanedLeases(ctx)
	if err != nil {
		log.Fatalf("failed to reconcile orphaned leases: %v", err)
	}
	if n > 0 {
		log.Printf("reconciled %d orphaned job leases", n)
	}

	onFailed := func(ctx context.Context, job *models.Job, herr *queue.HandlerError) {
		if job.CaseID == nil {
			return
		}
		_, err := queueStore.Enqueue(ctx, job.CaseID, pipeline.JobPostRoom1FinalFailure, map[string]string{
			"case_id": *job.CaseID, "cause": herr.Cause, "details": herr.Error(),
		}, time.Time{})
		if err != nil {
			log.Printf("failed to enqueue post_room1_final_failure for case %s: %v", *job.CaseID, err)
		}
	}

	pool := queue.NewPool(queueStore, cfg.Queue, dispatcher, onFailed)
	pool.Start(ctx)
	defer pool.Stop()
	log.Printf("worker pool started with %d workers", cfg.Queue.WorkerCount)

	go queueStore.RunDepthSampler(ctx, 15*time.Second)

	if cfg.Room4ID != "" {
		summarySvc := summary.NewService(cfg.Room4ID, summary.NewStore(dbClient.DB), chatClient)
		go runSummaryLoop(ctx, summarySvc, cfg.SummaryInterval)
	}

	<-ctx.Done()
	log.Println("shutdown signal received, stopping worker pool")
}

// runSummaryLoop posts a Room 4 summary every interval, covering the
// window since the previous post (spec's supervisor summary cadence).
func runSummaryLoop(ctx context.Context, svc *summary.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	windowStart := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			return
		case windowEnd := <-ticker.C:
			if _, err := svc.PostToRoom4(ctx, windowStart, windowEnd); err != nil {
				log.Printf("failed to post room4 summary: %v", err)
			}
			windowStart = windowEnd
		}
	}
}
