package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"anonword-relay/internal/bot"
	"anonword-relay/internal/integrations/backend"
	"anonword-relay/internal/integrations/paramstore"
	"anonword-relay/internal/integrations/telegram"
	"anonword-relay/internal/replies"
	"anonword-relay/internal/repository"
	"anonword-relay/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	sessionsTable := mustEnv("SESSIONS_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	backendBaseURL := mustEnv("BACKEND_BASE_URL")
	storageChannelID := mustEnvInt64("STORAGE_CHANNEL_ID")
	errorChannelID := mustEnvInt64("ERROR_CHANNEL_ID")
	repliesFile := os.Getenv("REPLIES_FILE")

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	sessions, err := repository.NewSessionStore(awsdynamodb.NewFromConfig(awsCfg), sessionsTable)
	if err != nil {
		slog.Error("failed to create session store", "err", err)
		os.Exit(1)
	}
	tgClient, err := telegram.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}
	backendClient, err := backend.NewClient(backendBaseURL)
	if err != nil {
		slog.Error("failed to create backend client", "err", err)
		os.Exit(1)
	}

	templates := replies.Defaults()
	if repliesFile != "" {
		templates, err = replies.Load(repliesFile)
		if err != nil {
			slog.Error("failed to load reply templates", "err", err, "path", repliesFile)
			os.Exit(1)
		}
	}

	me, err := tgClient.GetMe(ctx)
	if err != nil {
		slog.Error("failed to identify bot account", "err", err)
		os.Exit(1)
	}

	// ---- Relay core ----
	service, err := usecase.NewService(sessions, backendClient, tgClient, templates, usecase.Config{
		BotUsername:      me.Username,
		StorageChannelID: storageChannelID,
		ErrorChannelID:   errorChannelID,
	}, log)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	dispatcher, err := bot.New(tgClient, service, log)
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	slog.Info("relay started", "bot", me.Username)
	if err := dispatcher.Run(ctx); err != nil {
		slog.Error("dispatcher stopped", "err", err)
		os.Exit(1)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func mustEnvInt64(key string) int64 {
	n, err := strconv.ParseInt(mustEnv(key), 10, 64)
	if err != nil {
		slog.Error("environment variable is not an integer", "key", key, "err", err)
		os.Exit(1)
	}
	return n
}
