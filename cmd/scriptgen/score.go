package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/research/tools"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/scorer"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
)

func newScoreCmd() *cobra.Command {
	var (
		topic       string
		contentFile string
	)

	cmd := &cobra.Command{
		Use:   "score <url>",
		Short: "Score a source for a research topic",
		Long:  "Score a source on domain authority, content depth, topic relevance and URL structure. The page is fetched unless --content-file is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page := source.Page{URL: args[0]}

			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("failed to read content file: %w", err)
				}
				page.RawContent = string(data)
			} else {
				pages, err := tools.NewHTTPExtractor(slog.Default()).Extract(cmd.Context(), []string{page.URL})
				if err != nil {
					return err
				}
				if len(pages) == 0 {
					return errors.New("no content extracted")
				}
				page = pages[0]
			}

			scored := scorer.ScoreSource(page, topic)
			var kept []scorer.ScoredSource
			if scored.Quality.Final >= cfg.MinSourceScore {
				kept = append(kept, scored)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, scorer.RenderTable([]scorer.ScoredSource{scored}, kept))
			fmt.Fprintf(out, "Minimum score: %.2f\n", cfg.MinSourceScore)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "The research topic")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read page content from this file instead of fetching the URL")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}
