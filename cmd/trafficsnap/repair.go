package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trafficsnap/internal/blob"
	"trafficsnap/internal/catalog"
	"trafficsnap/internal/db"
	"trafficsnap/internal/exitcode"
	"trafficsnap/internal/logging"
	"trafficsnap/internal/model"
	"trafficsnap/internal/reconcile"
	"trafficsnap/internal/store"
)

var repairSnapshotID string

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Fetch missing video metadata and persist a repaired snapshot",
	RunE:  runRepair,
}

func init() {
	f := repairCmd.Flags()
	f.StringVar(&cfg.VideoID, "video", "", "Video id (required)")
	f.StringVar(&repairSnapshotID, "snapshot", "", "Snapshot id to repair (default: the video's latest snapshot)")
	f.StringVar(&cfg.APIKey, "api-key", os.Getenv("CATALOG_API_KEY"), "Catalog API key (or set CATALOG_API_KEY)")
	f.StringVar(&cfg.CatalogBaseURL, "catalog-url", "https://www.googleapis.com/youtube/v3", "Catalog API base URL")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Print the quota estimate and exit without fetching")
	_ = repairCmd.MarkFlagRequired("video")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if err := cfg.ValidateCatalog(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	snapshots := store.NewSnapshotStore(pool, blob.NewStore(cfg.BlobRoot), cfg.KeywordTable(), log)

	snap, err := resolveSnapshot(ctx, snapshots)
	if err != nil {
		log.Error().Err(err).Msg("snapshot lookup failed")
		os.Exit(exitcode.ValidationError)
	}

	res, err := snapshots.Load(ctx, snap)
	if err != nil {
		log.Error().Err(err).Msg("snapshot load failed")
		os.Exit(exitcode.StorageError)
	}

	cache := store.NewMetadataCache(pool, log)
	cached, err := cache.GetBatch(ctx, videoIDs(res.Rows))
	if err != nil {
		log.Error().Err(err).Msg("metadata cache lookup failed")
		os.Exit(exitcode.DBConnError)
	}

	missing, unenriched := reconcile.Classify(res.Rows, cached)
	quota := reconcile.EstimatedQuota(len(missing), len(unenriched))

	fmt.Printf("Snapshot %s (version %d): %d rows, %d missing titles, %d unenriched\n",
		snap.SnapshotID, snap.Version, len(res.Rows), len(missing), len(unenriched))
	fmt.Printf("Estimated quota: %d units\n", quota)

	if cfg.DryRun {
		return nil
	}
	if quota == 0 {
		fmt.Println("Nothing to repair.")
		return nil
	}

	fetcher, err := catalog.New(cfg.APIKey, cfg.CatalogBaseURL)
	if err != nil {
		log.Error().Err(err).Msg("catalog client setup failed")
		os.Exit(exitcode.UsageError)
	}

	engine := reconcile.NewEngine(fetcher, cache, snapshots, log)
	result, err := engine.FetchAndPersist(ctx, reconcile.Request{
		SnapshotID: &snap.SnapshotID,
		Rows:       res.Rows,
		Total:      res.Total,
	})
	if err != nil {
		log.Error().Err(err).Msg("repair failed")
		os.Exit(exitcode.RepairError)
	}

	fmt.Printf("Repair complete: %d rows enriched, %d quota spent (%.1fs)\n",
		result.Summary.RowsEnriched, result.Summary.QuotaSpent, result.Summary.DurationTotal.Seconds())
	return nil
}

func resolveSnapshot(ctx context.Context, snapshots *store.SnapshotStore) (*model.TrafficSnapshot, error) {
	if repairSnapshotID != "" {
		id, err := uuid.Parse(repairSnapshotID)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot id: %w", err)
		}
		return snapshots.Get(ctx, id)
	}

	list, err := snapshots.ListByVideo(ctx, cfg.VideoID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("video %s has no snapshots", cfg.VideoID)
	}
	return &list[0], nil
}

func videoIDs(rows []model.TrafficRow) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.VideoID == "" || seen[r.VideoID] {
			continue
		}
		seen[r.VideoID] = true
		ids = append(ids, r.VideoID)
	}
	return ids
}
