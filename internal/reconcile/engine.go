// Package reconcile repairs traffic rows whose title or channel metadata is
// missing because the referenced video lies outside the creator's cached
// catalog. It batch-fetches corrections from the catalog API and merges
// them over the original rows without ever deleting one.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trafficsnap/internal/catalog"
	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/store"
)

// MetadataCache is the subset of the metadata cache store the engine needs.
type MetadataCache interface {
	GetBatch(ctx context.Context, ids []string) (map[string]model.VideoMetadata, error)
	PutBatch(ctx context.Context, items []model.VideoMetadata) error
}

// SnapshotAccess is the subset of the snapshot store the engine needs to
// persist a repaired snapshot.
type SnapshotAccess interface {
	Get(ctx context.Context, snapshotID uuid.UUID) (*model.TrafficSnapshot, error)
	Load(ctx context.Context, snap *model.TrafficSnapshot) (*csvcodec.ParseResult, error)
	Create(ctx context.Context, ref model.SnapshotRef, version int32, rows []model.TrafficRow, total *model.TrafficRow, sourceFile *SourceFile) (uuid.UUID, error)
	Update(ctx context.Context, snapshotID uuid.UUID, rows []model.TrafficRow, total *model.TrafficRow, sourceFile *SourceFile) error
}

// SourceFile aliases the store's upload carrier so *store.SnapshotStore
// satisfies SnapshotAccess directly.
type SourceFile = store.SourceFile

// Engine wires the catalog fetcher, metadata cache, and snapshot store
// into the repair loop.
type Engine struct {
	fetcher   catalog.Fetcher
	cache     MetadataCache
	snapshots SnapshotAccess
	log       zerolog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(fetcher catalog.Fetcher, cache MetadataCache, snapshots SnapshotAccess, log zerolog.Logger) *Engine {
	return &Engine{fetcher: fetcher, cache: cache, snapshots: snapshots, log: log}
}

// Classify splits rows into those with a blank title (missing) and those
// with a title but no channel id whose video id is also absent from the
// cache (unenriched). Rows already coverable by the cache are excluded so
// no network call is spent on them.
func Classify(rows []model.TrafficRow, cached map[string]model.VideoMetadata) (missing, unenriched []model.TrafficRow) {
	for _, r := range rows {
		if r.VideoID == "" {
			continue
		}
		if r.TitleMissing() {
			missing = append(missing, r)
			continue
		}
		if r.ChannelID == "" {
			if _, ok := cached[r.VideoID]; !ok {
				unenriched = append(unenriched, r)
			}
		}
	}
	return missing, unenriched
}

// EstimatedQuota models the catalog API cost of repairing the given row
// counts: batches of at most 50 ids at a flat 7 units per call.
func EstimatedQuota(nMissing, nUnenriched int) int {
	n := nMissing + nUnenriched
	if n <= 0 {
		return 0
	}
	calls := (n + catalog.MaxBatchSize - 1) / catalog.MaxBatchSize
	return calls * catalog.CostPerCall
}

// Repair returns a copy of rows with missing titles and channel metadata
// filled in. Batches are fetched sequentially and the merge happens only
// after every chunk succeeded, so a mid-loop failure yields no change at
// all. No row is deleted, only enriched.
func (e *Engine) Repair(ctx context.Context, rows []model.TrafficRow) ([]model.TrafficRow, *model.RepairSummary, error) {
	start := time.Now()
	summary := &model.RepairSummary{RowsExamined: len(rows)}

	candidateIDs := candidateIDs(rows)
	cached, err := e.cache.GetBatch(ctx, candidateIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("repair cache lookup: %w", err)
	}

	missing, unenriched := Classify(rows, cached)
	summary.MissingTitles = len(missing)
	summary.Unenriched = len(unenriched)

	// Union of ids still needing the catalog: anything not in the cache,
	// plus cache entries that themselves lack a channel id.
	var toFetch []string
	seen := make(map[string]bool)
	for _, r := range append(append([]model.TrafficRow{}, missing...), unenriched...) {
		if seen[r.VideoID] {
			continue
		}
		seen[r.VideoID] = true
		if m, ok := cached[r.VideoID]; ok && m.Enriched() {
			summary.CacheHits++
			continue
		}
		toFetch = append(toFetch, r.VideoID)
	}

	fetchStart := time.Now()
	var fetched []model.VideoMetadata
	for i := 0; i < len(toFetch); i += catalog.MaxBatchSize {
		end := i + catalog.MaxBatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		batch, err := e.fetcher.FetchBatch(ctx, toFetch[i:end])
		if err != nil {
			// Abort without committing anything: enrichment from chunks
			// that already completed is discarded.
			return nil, nil, fmt.Errorf("repair fetch batch %d: %w", summary.BatchCalls+1, err)
		}
		summary.BatchCalls++
		fetched = append(fetched, batch...)
	}
	summary.DurationFetch = time.Since(fetchStart)
	summary.IDsFetched = len(fetched)
	summary.QuotaSpent = summary.BatchCalls * catalog.CostPerCall

	if len(fetched) > 0 {
		if err := e.cache.PutBatch(ctx, fetched); err != nil {
			return nil, nil, fmt.Errorf("repair cache persist: %w", err)
		}
	}

	fetchedByID := make(map[string]model.VideoMetadata, len(fetched))
	for _, m := range fetched {
		fetchedByID[m.VideoID] = m
	}

	merged := make([]model.TrafficRow, len(rows))
	for i, r := range rows {
		merged[i] = r
		if r.VideoID == "" {
			continue
		}
		m, ok := fetchedByID[r.VideoID]
		if !ok {
			m, ok = cached[r.VideoID]
		}
		if !ok {
			continue
		}
		if overlay(&merged[i], m) {
			summary.RowsEnriched++
		}
	}

	summary.DurationTotal = time.Since(start)
	e.log.Info().
		Int("rows", summary.RowsExamined).
		Int("missing_titles", summary.MissingTitles).
		Int("unenriched", summary.Unenriched).
		Int("cache_hits", summary.CacheHits).
		Int("batch_calls", summary.BatchCalls).
		Int("quota_spent", summary.QuotaSpent).
		Int("rows_enriched", summary.RowsEnriched).
		Dur("duration", summary.DurationTotal).
		Msg("repair complete")

	return merged, summary, nil
}

// overlay copies non-empty metadata fields onto the row and reports
// whether anything changed.
func overlay(r *model.TrafficRow, m model.VideoMetadata) bool {
	changed := false
	if m.Title != "" && r.SourceTitle != m.Title {
		r.SourceTitle = m.Title
		changed = true
	}
	if m.ChannelID != "" && r.ChannelID != m.ChannelID {
		r.ChannelID = m.ChannelID
		changed = true
	}
	if m.ChannelTitle != "" && r.ChannelTitle != m.ChannelTitle {
		r.ChannelTitle = m.ChannelTitle
		changed = true
	}
	if m.ThumbnailURL != "" && r.ThumbnailURL != m.ThumbnailURL {
		r.ThumbnailURL = m.ThumbnailURL
		changed = true
	}
	if m.PublishedAt != nil {
		published := m.PublishedAt.UTC().Format(time.RFC3339)
		if r.PublishedAt != published {
			r.PublishedAt = published
			changed = true
		}
	}
	return changed
}

// candidateIDs returns the deduplicated ids of rows that could need repair:
// blank title, or no channel id yet.
func candidateIDs(rows []model.TrafficRow) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.VideoID == "" || seen[r.VideoID] {
			continue
		}
		if r.TitleMissing() || r.ChannelID == "" {
			seen[r.VideoID] = true
			ids = append(ids, r.VideoID)
		}
	}
	return ids
}

// Request describes one FetchAndPersist invocation.
type Request struct {
	// SnapshotID targets an existing snapshot for in-place update; nil
	// creates a new snapshot for Ref/Version instead.
	SnapshotID *uuid.UUID
	Ref        model.SnapshotRef
	Version    int32

	// Rows is the caller's current row view; Partial marks it as a
	// filtered subset of the frozen snapshot, forcing a full reload so
	// repair never operates on partial data.
	Rows    []model.TrafficRow
	Total   *model.TrafficRow
	Partial bool
}

// Result is the outcome of FetchAndPersist.
type Result struct {
	SnapshotID uuid.UUID
	Rows       []model.TrafficRow
	Total      *model.TrafficRow
	Summary    *model.RepairSummary
}

// FetchAndPersist runs the repair loop against the full snapshot contents
// and persists the result: in place when a target snapshot id is given,
// as a fresh snapshot for the current version otherwise. Returns the
// (possibly new) snapshot id so callers can swap their active view.
func (e *Engine) FetchAndPersist(ctx context.Context, req Request) (*Result, error) {
	rows, total := req.Rows, req.Total

	if req.SnapshotID != nil && (req.Partial || rows == nil) {
		snap, err := e.snapshots.Get(ctx, *req.SnapshotID)
		if err != nil {
			return nil, err
		}
		res, err := e.snapshots.Load(ctx, snap)
		if err != nil {
			return nil, err
		}
		rows, total = res.Rows, res.Total
	}

	repaired, summary, err := e.Repair(ctx, rows)
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: repaired, Total: total, Summary: summary}
	if req.SnapshotID != nil {
		if err := e.snapshots.Update(ctx, *req.SnapshotID, repaired, total, nil); err != nil {
			return nil, err
		}
		result.SnapshotID = *req.SnapshotID
		return result, nil
	}

	id, err := e.snapshots.Create(ctx, req.Ref, req.Version, repaired, total, nil)
	if err != nil {
		return nil, err
	}
	result.SnapshotID = id
	return result, nil
}
