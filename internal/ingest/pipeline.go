// Package ingest freezes an analytics export file as an immutable traffic
// snapshot: preflight → parse → snapshot, with each phase failing before
// the next writes anything.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"trafficsnap/internal/config"
	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/store"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full ingest pipeline: preflight → parse → snapshot.
func Run(ctx context.Context, pool *pgxpool.Pool, snapshots *store.SnapshotStore, log zerolog.Logger, cfg *config.Config) (*model.IngestSummary, error) {
	totalStart := time.Now()

	// Phase 1: Preflight
	log.Info().Str("file", cfg.FilePath).Msg("starting preflight")
	pf, err := Preflight(ctx, snapshots, log, cfg.FilePath, cfg.VideoID, cfg.UserMapping(), cfg.KeywordTable(), cfg.Force)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}

	if pf.AlreadyLoaded {
		log.Info().
			Str("snapshot_id", pf.ExistingID.String()).
			Str("sha256", pf.FileSHA256).
			Msg("file already frozen for this video, skipping (use --force to re-import)")
		return &model.IngestSummary{
			FilePath:      pf.FilePath,
			FileSHA256:    pf.FileSHA256,
			SnapshotID:    pf.ExistingID.String(),
			DurationTotal: time.Since(totalStart),
		}, nil
	}

	// Phase 2: Parse
	log.Info().Msg("starting parse")
	parseStart := time.Now()
	res, err := csvcodec.ParseWith(pf.Text, cfg.UserMapping(), cfg.KeywordTable())
	if err != nil {
		return nil, &PipelineError{Phase: "parse", Err: err}
	}
	parseDur := time.Since(parseStart)

	// Phase 3: Snapshot
	version := cfg.Version
	if version == 0 {
		history := store.NewVersionHistory(pool, log)
		active, err := history.ActiveVersion(ctx, cfg.VideoID)
		if err != nil {
			return nil, &PipelineError{Phase: "snapshot", Err: err}
		}
		version = active + 1
	}

	log.Info().Int32("version", version).Msg("freezing snapshot")
	snapStart := time.Now()
	id, err := snapshots.Create(ctx, cfg.Ref(), version, res.Rows, res.Total,
		&store.SourceFile{Name: pf.FileName, Text: pf.Text})
	if err != nil {
		return nil, &PipelineError{Phase: "snapshot", Err: err}
	}

	summary := &model.IngestSummary{
		FilePath:         pf.FilePath,
		FileSHA256:       pf.FileSHA256,
		SnapshotID:       id.String(),
		Version:          version,
		RowsParsed:       len(res.Rows),
		LinesDropped:     res.LinesDropped,
		HasTotalRow:      res.Total != nil,
		DurationParse:    parseDur,
		DurationSnapshot: time.Since(snapStart),
		DurationTotal:    time.Since(totalStart),
	}

	log.Info().
		Str("snapshot_id", summary.SnapshotID).
		Int32("version", summary.Version).
		Int("rows", summary.RowsParsed).
		Int("lines_dropped", summary.LinesDropped).
		Bool("total_row", summary.HasTotalRow).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("ingest pipeline complete")

	return summary, nil
}
