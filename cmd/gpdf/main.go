package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aligoek/gpdf2/config"
	"github.com/aligoek/gpdf2/events"
	"github.com/aligoek/gpdf2/identity"
	"github.com/aligoek/gpdf2/orchestrator"
	"github.com/aligoek/gpdf2/remote"
	"github.com/aligoek/gpdf2/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gpdf <file.pdf> [target-language]")
		os.Exit(2)
	}
	filePath := os.Args[1]
	targetLanguage := "tr"
	if len(os.Args) > 2 {
		targetLanguage = os.Args[2]
	}

	cfg := config.Load()

	var logger *zap.Logger
	if cfg.Env == "development" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to store", zap.Error(err))
	}
	defer st.Close()

	var producer events.Producer
	if cfg.KafkaBrokers != "" {
		producer, err = events.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.EventTopic)
		if err != nil {
			logger.Fatal("Failed to connect to kafka", zap.Error(err))
		}
		defer producer.Close()
	}

	orch := orchestrator.New(orchestrator.Deps{
		Store:       st,
		Remote:      remote.NewClient(cfg.BackendURL, cfg.HTTPTimeout, logger),
		Identity:    identity.NewAnonymous(),
		Events:      producer,
		Logger:      logger,
		MaxFileSize: cfg.MaxFileSize,
	})
	defer orch.Close()

	ctx := context.Background()

	taskID, err := orch.Submit(ctx, &orchestrator.SubmitRequest{
		FilePath:       filePath,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		logger.Fatal("Submit failed", zap.Error(err))
	}
	logger.Info("Task submitted", zap.String("task_id", taskID))

	for {
		state := orch.State()
		switch state {
		case orchestrator.StateCompleted:
			artifact, err := orch.Download(ctx)
			if err != nil {
				logger.Fatal("Download failed; translation is still available, retry later",
					zap.String("task_id", taskID),
					zap.Error(err),
				)
			}
			if err := os.WriteFile(artifact.FileName, artifact.Data, 0644); err != nil {
				logger.Fatal("Failed to write artifact", zap.Error(err))
			}
			logger.Info("Translation downloaded",
				zap.String("task_id", taskID),
				zap.String("file", artifact.FileName),
			)
			return
		case orchestrator.StateFailed:
			logger.Fatal("Translation failed",
				zap.String("task_id", taskID),
				zap.Error(orch.Err()),
			)
		default:
			fmt.Fprintf(os.Stderr, "\r%s: %.1f%%", state, orch.Progress())
			time.Sleep(500 * time.Millisecond)
		}
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.ConnectPostgres(ctx, cfg.DatabaseURL, cfg.AppID)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.ConnectRedis(cfg.RedisAddr, cfg.AppID)
	}
}
