package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/mcpserver"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/research"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the knowledge base and scorer as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			kb, err := research.OpenKnowledge(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return mcpserver.New(kb, scorer.New(cfg.MinSourceScore), version, logger).Run(cmd.Context())
		},
	}
}
