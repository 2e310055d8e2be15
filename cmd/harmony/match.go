package harmony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/harmony"
	"github.com/soundprediction/harmony/pkg/config"
	"github.com/soundprediction/harmony/pkg/crosswalk"
	"github.com/soundprediction/harmony/pkg/instrument"
	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

var matchCmd = &cobra.Command{
	Use:   "match <instrument files...>",
	Short: "Match the questions of one or more instrument files",
	Long: `Match loads instruments from YAML or JSON files, computes the polarity aware
similarity of every pair of questions and reports clusters, instrument alignment
and the crosswalk table.

Examples:
  harmony match gad7.yaml phq9.json
  harmony match gad7.yaml phq9.json --query anxiety --format yaml
  harmony match gad7.yaml phq9.json --threshold 0.7 --parquet crosswalk.parquet`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("query", "", "Free-text query to score every question against")
	matchCmd.Flags().Float64("threshold", 0, "Crosswalk similarity threshold (default from config)")
	matchCmd.Flags().Float64("cluster-threshold", 0, "Deterministic clustering threshold (default from config)")
	matchCmd.Flags().String("strategy", "", "Clustering strategy: deterministic or affinity")
	matchCmd.Flags().Int("topics", 0, "Keywords per cluster (default from config)")
	matchCmd.Flags().String("catalogue", "", "Reference catalogue file for topic propagation")
	matchCmd.Flags().Bool("exclude-same-instrument", false, "Drop crosswalk pairs within one instrument")
	matchCmd.Flags().Bool("one-to-one", false, "Use each question in at most one crosswalk pair")
	matchCmd.Flags().String("format", "json", "Output format (json, yaml)")
	matchCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	matchCmd.Flags().String("parquet", "", "Also write the crosswalk table to a parquet file")
	matchCmd.Flags().String("csv", "", "Also write the crosswalk table to a CSV file")
	matchCmd.Flags().String("embedding-provider", "", "Embedding provider (openai, embedeverything, hashing)")
	matchCmd.Flags().String("embedding-model", "", "Embedding model")
}

// matchReport is the serialised form of a harmonisation.
type matchReport struct {
	RunID           string                                   `json:"run_id" yaml:"run_id"`
	Questions       []*types.Question                        `json:"questions" yaml:"questions"`
	Matches         [][]float64                              `json:"matches" yaml:"matches"`
	QuerySimilarity []float64                                `json:"query_similarity,omitempty" yaml:"query_similarity,omitempty"`
	Clusters        []types.HarmonyCluster                   `json:"clusters" yaml:"clusters"`
	Alignments      []types.InstrumentToInstrumentSimilarity `json:"instrument_to_instrument_similarities" yaml:"instrument_to_instrument_similarities"`
	Crosswalk       []types.CrosswalkRow                     `json:"crosswalk" yaml:"crosswalk"`
	Stats           types.MatchStats                         `json:"stats" yaml:"stats"`
}

func newMatchReport(runID string, h *harmony.Harmonisation) matchReport {
	return matchReport{
		RunID:           runID,
		Questions:       h.Match.Questions,
		Matches:         utils.Rows(h.Match.Similarity),
		QuerySimilarity: h.Match.QuerySimilarity,
		Clusters:        h.Clusters,
		Alignments:      h.Alignments,
		Crosswalk:       h.Crosswalk,
		Stats:           h.Match.Stats,
	}
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideMatchConfigWithFlags(cmd, cfg)

	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	logger, logCloser, err := newLogger(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	instruments, err := instrument.LoadAll(args...)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx := context.WithValue(cmd.Context(), types.ContextKeyRequestID, runID)
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")
	logger = logger.With("run_id", runID)

	client, cleanup, err := initializeHarmony(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer cleanup()

	query, _ := cmd.Flags().GetString("query")
	start := time.Now()
	result, err := client.Harmonise(ctx, instruments, query)
	if err != nil {
		return err
	}
	logger.Debug("match finished", "elapsed", time.Since(start))

	if path, _ := cmd.Flags().GetString("parquet"); path != "" {
		if err := crosswalk.WriteParquet(path, result.Crosswalk); err != nil {
			return err
		}
		logger.Info("wrote crosswalk", "path", path, "rows", len(result.Crosswalk))
	}
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		if err := writeCSVFile(path, result.Crosswalk); err != nil {
			return err
		}
		logger.Info("wrote crosswalk", "path", path, "rows", len(result.Crosswalk))
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeReport(out, format, newMatchReport(runID, result))
}

func overrideMatchConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("threshold") {
		cfg.Matching.CrosswalkThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("cluster-threshold") {
		cfg.Matching.ClusterThreshold, _ = cmd.Flags().GetFloat64("cluster-threshold")
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Matching.ClusterStrategy, _ = cmd.Flags().GetString("strategy")
	}
	if cmd.Flags().Changed("topics") {
		cfg.Matching.TopicCount, _ = cmd.Flags().GetInt("topics")
	}
	if cmd.Flags().Changed("catalogue") {
		cfg.Matching.CataloguePath, _ = cmd.Flags().GetString("catalogue")
	}
	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("exclude-same-instrument") {
		cfg.Matching.ExcludeSameInstrument, _ = cmd.Flags().GetBool("exclude-same-instrument")
	}
	if cmd.Flags().Changed("one-to-one") {
		cfg.Matching.OneToOne, _ = cmd.Flags().GetBool("one-to-one")
	}
}

func writeReport(w io.Writer, format string, report matchReport) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	}
}

func writeCSVFile(path string, rows []types.CrosswalkRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	if err := crosswalk.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
