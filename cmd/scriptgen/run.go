package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/evaluate"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/research"
)

type topicChoice int

const (
	manualTopic topicChoice = iota + 1
	trendingTopic
)

// promptTopic asks how to pick the topic and, for manual entry, reads it.
func promptTopic(in io.Reader, out io.Writer) (string, topicChoice, error) {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "How would you like to choose a topic?")
	fmt.Fprintln(out, "  1. Enter a topic manually")
	fmt.Fprintln(out, "  2. Let the AI find a trending topic")
	fmt.Fprint(out, "Choice [1]: ")
	input, _ := reader.ReadString('\n')

	switch strings.TrimSpace(input) {
	case "", "1":
	case "2":
		return "", trendingTopic, nil
	default:
		return "", 0, fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}

	fmt.Fprint(out, "Enter research topic: ")
	input, _ = reader.ReadString('\n')
	topic := strings.TrimSpace(input)
	if topic == "" {
		return "", 0, errors.New("topic cannot be empty")
	}
	return topic, manualTopic, nil
}

func newRunCmd() *cobra.Command {
	var (
		topic     string
		scout     bool
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Research a topic and write the final report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("topic") {
				topic = strings.TrimSpace(topic)
				if topic == "" {
					return errors.New("--topic flag provided but empty")
				}
			} else if !scout {
				t, choice, err := promptTopic(cmd.InOrStdin(), out)
				if err != nil {
					return err
				}
				topic, scout = t, choice == trendingTopic
			}
			if outputDir == "" {
				outputDir = cfg.OutputDir
			}

			components, err := research.Setup(ctx, cfg, slog.Default())
			if err != nil {
				return fmt.Errorf("error initializing research: %w", err)
			}
			defer components.Close()

			if scout {
				found, err := components.NewScout().FindTrendingTopic(ctx)
				if err != nil {
					return err
				}
				topic = found
				fmt.Fprintf(out, "\nSelected topic: %s\n\n", topic)
			}

			slog.Info("Starting research", "topic", topic, "max_iterations", cfg.MaxIterations)
			start := time.Now()

			engine := components.NewEngine(slog.Default(), out)
			state, err := engine.Run(ctx, topic)
			if err != nil {
				return fmt.Errorf("error running research: %w", err)
			}

			artifacts, err := evaluate.Save(outputDir, state.ArtifactRun(time.Since(start)), time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%s\n\n", state.FinalReport)
			fmt.Fprintf(out, "Report saved to %s\n", artifacts.ReportPath)
			if artifacts.Record != nil {
				fmt.Fprintln(out, evaluate.FormatMetrics(artifacts.Record.Metrics))
				fmt.Fprintf(out, "Metrics saved to %s\n", artifacts.MetricsPath)
				fmt.Fprintf(out, "Metrics history updated at %s\n", artifacts.HistoryPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	cmd.Flags().BoolVar(&scout, "scout", false, "Research a trending topic found on Reddit and X")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for the report and metrics files (default OUTPUT_DIR)")
	cmd.MarkFlagsMutuallyExclusive("topic", "scout")
	return cmd
}
