package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kalambet/rxassist/internal/attach"
	"github.com/kalambet/rxassist/internal/backend"
	"github.com/kalambet/rxassist/internal/chat"
	"github.com/kalambet/rxassist/internal/config"
	"github.com/kalambet/rxassist/internal/transcript"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "rxassist",
	Short: "Conversational store assistant for pharmacy management",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real deployments use the environment directly.
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Version = version
}

// setupLogging configures the process-wide slog default from config.
func setupLogging(cfg config.Config) {
	level := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildController wires the assistant core from config: backend client,
// attachment pipeline, dispatcher, and (best-effort) the local transcript
// archive.
func buildController(cfg config.Config) (*chat.Controller, *transcript.Store, error) {
	client := backend.NewClient(cfg.API.BaseURL, cfg.API.Token)

	timeout, err := time.ParseDuration(cfg.Chat.DispatchTimeout)
	if err != nil {
		slog.Warn("invalid dispatch timeout, using default", "value", cfg.Chat.DispatchTimeout, "error", err)
		timeout = chat.DefaultDispatchTimeout
	}

	dispatcher := chat.NewDispatcher(client,
		chat.WithDispatchTimeout(timeout),
		chat.WithRetryHintLimit(cfg.Chat.RetryHintLimit),
	)

	opts := []chat.ControllerOption{chat.WithHistoryDeleter(client)}

	store, err := transcript.Open(cfg.Storage.DataDir)
	if err != nil {
		slog.Warn("transcript archive unavailable", "error", err)
		store = nil
	} else {
		opts = append(opts, chat.WithArchive(store))
	}

	pipeline := attach.NewPipeline(client)
	ctrl := chat.NewController(pipeline, dispatcher, opts...)
	return ctrl, store, nil
}
