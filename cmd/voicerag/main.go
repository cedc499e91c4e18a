package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrosst/voicerag/internal/agent"
	"github.com/mrosst/voicerag/internal/bedrock"
	"github.com/mrosst/voicerag/internal/config"
	"github.com/mrosst/voicerag/internal/httpapi"
	"github.com/mrosst/voicerag/internal/knowledge"
	"github.com/mrosst/voicerag/internal/observability"
	"github.com/mrosst/voicerag/internal/session"
	"github.com/mrosst/voicerag/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	registry := session.NewRegistry()

	ctx := context.Background()
	creds, err := bedrock.ResolveCredentials(ctx, bedrock.CredentialOptions{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		BearerToken:     cfg.BedrockAPIKey,
		RoleARN:         cfg.AWSRoleARN,
	})
	if err != nil {
		log.Fatalf("bedrock credentials init failed: %v", err)
	}
	client := bedrock.NewClient(creds)

	store, err := knowledge.NewStore(ctx, cfg.DatabaseURL, cfg.EmbeddingDim)
	if err != nil {
		log.Fatalf("knowledge store init failed: %v", err)
	}
	kb := knowledge.NewService(store, knowledge.NewTitanEmbedder(client, cfg.TitanEmbedModelID), knowledge.ServiceConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.RetrieveTopK,
		EmbeddingDim: cfg.EmbeddingDim,
	})
	defer kb.Close()

	var factory agent.Factory
	if cfg.BedrockAPIKey == "" && cfg.AWSAccessKeyID == "" && os.Getenv("AWS_PROFILE") == "" {
		log.Printf("agent: no AWS credentials configured, using mock agent")
		factory = &agent.MockFactory{}
	} else {
		log.Printf("agent: nova sonic (%s) in %s", cfg.NovaSonicModelID, cfg.AWSRegion)
		factory = &agent.NovaFactory{
			Credentials: creds,
			ModelID:     cfg.NovaSonicModelID,
			ToolsFor: func(chatID string) []tools.Tool {
				return []tools.Tool{
					tools.NewDocumentSearch(kb, client, cfg.NovaLiteModelID, chatID),
					tools.NewWebSearch(client, cfg.NovaGroundingModelID, cfg.WebSearchMaxSources),
					tools.NewImageReader(registry, client, cfg.NovaLiteModelID, chatID),
					tools.NewVideoSummarizer(registry, client, cfg.NovaLiteModelID, chatID),
				}
			},
		}
	}

	api := httpapi.New(cfg, registry, factory, kb, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
