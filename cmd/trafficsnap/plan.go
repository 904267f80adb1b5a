package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/exitcode"
	"trafficsnap/internal/logging"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
	"trafficsnap/internal/reconcile"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and stats (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&cfg.FilePath, "file", "", "Path to traffic export CSV (required)")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	sha, err := normalize.FileHash(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash file")
		os.Exit(exitcode.ValidationError)
	}

	stat, err := os.Stat(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to stat file")
		os.Exit(exitcode.ValidationError)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to read file")
		os.Exit(exitcode.ValidationError)
	}

	res, err := csvcodec.ParseWith(string(data), cfg.UserMapping(), cfg.KeywordTable())
	if err != nil {
		log.Error().Err(err).Msg("parse failed")
		os.Exit(exitcode.ValidationError)
	}

	// Classify against an empty cache: the plan never touches the DB, so
	// the quota figure is the worst case.
	missing, unenriched := reconcile.Classify(res.Rows, nil)
	quota := reconcile.EstimatedQuota(len(missing), len(unenriched))

	fmt.Println("=== trafficsnap plan ===")
	fmt.Printf("File:          %s\n", cfg.FilePath)
	fmt.Printf("SHA-256:       %s\n", sha)
	fmt.Printf("Size:          %d bytes\n", stat.Size())
	fmt.Println()
	fmt.Println("Column mapping:")
	for _, col := range model.AllColumns {
		idx := res.Mapping.Index(col)
		if idx < 0 {
			fmt.Printf("  %-14s (absent)\n", col)
			continue
		}
		fmt.Printf("  %-14s column %d\n", col, idx)
	}
	fmt.Println()
	fmt.Printf("Video rows:    %d\n", len(res.Rows))
	fmt.Printf("Total row:     %v\n", res.Total != nil)
	fmt.Printf("Lines dropped: %d\n", res.LinesDropped)
	fmt.Println()
	fmt.Printf("Missing titles:     %d\n", len(missing))
	fmt.Printf("Unenriched rows:    %d\n", len(unenriched))
	fmt.Printf("Repair quota (max): %d units\n", quota)

	return nil
}
