package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/config"
)

const version = "0.1.0"

var (
	configPath string
	cfg        *config.Config
)

func main() {
	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "scriptgen",
		Short:   "An iterative research agent with a persistent knowledge base",
		Long:    `scriptgen researches a topic by looping plan, search, extract, score, draft and critique, grounding every run in what earlier runs learned.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// It's okay if .env doesn't exist, as long as env vars are set
			_ = godotenv.Load()

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvFile+")")

	rootCmd.AddCommand(newRunCmd(), newKnowledgeCmd(), newScoreCmd(), newMCPCmd())
	return rootCmd
}
