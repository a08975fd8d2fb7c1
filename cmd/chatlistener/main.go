// Command chatlistener runs the Matrix /sync loop that classifies
// inbound room events into intake, doctor/scheduler reply, and reaction
// checkpoint calls.
package main

import (
	"context"
	"log"

	"github.com/carlosapgomes/triage-automation/pkg/casestore"
	"github.com/carlosapgomes/triage-automation/pkg/chatgateway"
	"github.com/carlosapgomes/triage-automation/pkg/checkpoint"
	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/database"
	"github.com/carlosapgomes/triage-automation/pkg/intake"
	"github.com/carlosapgomes/triage-automation/pkg/journal"
	"github.com/carlosapgomes/triage-automation/pkg/llm"
	"github.com/carlosapgomes/triage-automation/pkg/pdf"
	"github.com/carlosapgomes/triage-automation/pkg/pipeline"
	"github.com/carlosapgomes/triage-automation/pkg/prompttemplate"
	"github.com/carlosapgomes/triage-automation/pkg/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()
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

	listener := chatgateway.NewListener(chatClient.API(), chatClient.BotUserID(), chatgateway.RoomSet{
		Room1ID: cfg.Room1ID, Room2ID: cfg.Room2ID, Room3ID: cfg.Room3ID,
	}, dispatcher)

	log.Println("starting Matrix sync loop")
	if err := listener.Run(ctx); err != nil {
		log.Fatalf("chat listener stopped: %v", err)
	}
}
