package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/donnabot/donna/internal/config"
	"github.com/donnabot/donna/internal/conv"
	"github.com/donnabot/donna/internal/dispatch"
	"github.com/donnabot/donna/internal/effectors"
	"github.com/donnabot/donna/internal/graph"
	"github.com/donnabot/donna/internal/intent"
	"github.com/donnabot/donna/internal/journal"
	"github.com/donnabot/donna/internal/ledger"
	"github.com/donnabot/donna/internal/llm"
	"github.com/donnabot/donna/internal/logging"
	"github.com/donnabot/donna/internal/senses"
	"github.com/donnabot/donna/internal/vault"
)

func main() {
	log.Println("donna - personal assistant")
	log.Println("==========================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	cfg, err := config.Load("donna.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN environment variable required")
	}

	home, err := cfg.HomeLocation()
	if err != nil {
		log.Fatalf("Bad timezone config: %v", err)
	}

	os.MkdirAll(cfg.StatePath, 0755)

	// Durable stores
	store, err := conv.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open conversation store: %v", err)
	}
	defer store.Close()

	if cfg.RetentionDays > 0 {
		if pruned, err := store.PruneOlderThan(cfg.RetentionDays); err != nil {
			logging.Warn("main", "retention prune failed: %v", err)
		} else if pruned > 0 {
			logging.Info("main", "pruned %d conversation rows older than %d days", pruned, cfg.RetentionDays)
		}
	}

	timeLedger, err := ledger.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open time ledger: %v", err)
	}
	defer timeLedger.Close()

	jnl := journal.New(cfg.StatePath)

	// Collaborator clients
	graphClient, err := graph.NewClient(graph.Config{
		ClientID:     cfg.MSClientID,
		TenantID:     cfg.MSTenantID,
		ClientSecret: cfg.MSClientSecret,
		User:         cfg.MSUser,
	})
	if err != nil {
		log.Fatalf("Failed to create Graph client: %v", err)
	}

	notes := vault.New(graphClient, cfg.VaultRoot, cfg.WeeklyPlan)
	model := llm.NewClient(cfg.AnthropicKey, cfg.Model)

	// Turn pipeline
	memory := conv.NewMemory(store, cfg.CacheSize)
	classifier := intent.New(model)
	executor := dispatch.NewExecutor(graphClient, notes, timeLedger, home)
	dispatcher := dispatch.New(memory, classifier, executor, jnl)

	// Discord transport
	var effector *effectors.DiscordEffector
	sense, err := senses.NewDiscordSense(senses.DiscordConfig{
		Token:     cfg.DiscordToken,
		ChannelID: cfg.DiscordChannel,
		OwnerID:   cfg.OwnerID,
	}, func(msg senses.Message) {
		effector.Typing(msg.ConversationID)
		resp := dispatcher.HandleMessage(context.Background(), msg.ConversationID, msg.AuthorName, msg.Text)

		if err := effector.Send(msg.ConversationID, resp.Text); err != nil {
			logging.Warn("main", "failed to send reply: %v", err)
		}
		if resp.File != nil {
			if err := effector.SendFile(msg.ConversationID, resp.File.Name, resp.File.Content); err != nil {
				logging.Warn("main", "failed to send file: %v", err)
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to create Discord sense: %v", err)
	}

	effector = effectors.NewDiscordEffector(sense.Session())

	if err := sense.Start(); err != nil {
		log.Fatalf("Failed to start Discord sense: %v", err)
	}

	log.Println("[main] Ready. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[main] Shutting down...")
	if err := sense.Stop(); err != nil {
		logging.Warn("main", "discord shutdown: %v", err)
	}
	log.Println("[main] Goodbye")
}
