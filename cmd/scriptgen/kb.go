package main

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/research"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge"},
		Short:   "Inspect the knowledge base",
	}
	cmd.AddCommand(newKnowledgeStatsCmd(), newKnowledgeSearchCmd())
	return cmd
}

func newKnowledgeStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := research.OpenKnowledge(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			stats := kb.Stats()

			w := table.NewWriter()
			w.SetStyle(table.StyleLight)
			w.SetTitle("Knowledge Base")
			w.AppendRows([]table.Row{
				{"Documents", stats.TotalDocuments},
				{"Directory", stats.PersistDirectory},
				{"Embedding model", stats.EmbeddingModel},
			})
			fmt.Fprintln(cmd.OutOrStdout(), w.Render())
			return nil
		},
	}
}

func newKnowledgeSearchCmd() *cobra.Command {
	var (
		n     int
		topic string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over stored research",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := research.OpenKnowledge(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			results, err := kb.Retrieve(cmd.Context(), args[0], n, topic)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), knowledge.FormatContext(results))
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "num", "n", 3, "Number of documents to return")
	cmd.Flags().StringVar(&topic, "topic", "", "Only return documents stored under this topic")
	return cmd
}
