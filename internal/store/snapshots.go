// Package store persists the engine's durable state: snapshot documents,
// the catalog metadata cache, packaging version history, and live traffic
// rows. Documents live in Postgres; snapshot CSV content lives in the blob
// store and is referenced by path.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"trafficsnap/internal/blob"
	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

// ErrSnapshotNotFound is returned when no snapshot document matches.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrSnapshotUnreadable is returned for a pre-migration snapshot whose
// legacy inline rows have been stripped and which has no storage path.
// Silently returning an empty row set here would hide data loss.
var ErrSnapshotUnreadable = errors.New("snapshot has neither storage path nor inline sources")

// SourceFile carries an uploaded export verbatim so the snapshot blob
// preserves the original file rather than a re-serialization.
type SourceFile struct {
	Name string
	Text string
}

// SnapshotStore persists and loads immutable per-version traffic snapshots.
type SnapshotStore struct {
	pool     *pgxpool.Pool
	blobs    *blob.Store
	keywords map[model.Column][]string
	log      zerolog.Logger
}

// NewSnapshotStore creates a SnapshotStore. keywords is the header keyword
// table used when re-parsing snapshot blobs; blobs store uploaded files
// verbatim, so a file ingested under keyword overrides needs the same
// table to load. Nil means the built-in keywords.
func NewSnapshotStore(pool *pgxpool.Pool, blobs *blob.Store, keywords map[model.Column][]string, log zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{pool: pool, blobs: blobs, keywords: keywords, log: log}
}

// Create freezes rows as a new snapshot in the current blob format and
// returns its id. When sourceFile is nil the CSV is freshly serialized.
func (s *SnapshotStore) Create(ctx context.Context, ref model.SnapshotRef, version int32, rows []model.TrafficRow, total *model.TrafficRow, sourceFile *SourceFile) (uuid.UUID, error) {
	text, fileName := snapshotText(rows, total, sourceFile)
	createdAt := time.Now().UTC()

	snapshotID := uuid.New()
	path := blob.SnapshotPath(ref.OwnerID, ref.ChannelID, ref.VideoID, version, createdAt)

	if err := s.blobs.Put(path, []byte(text)); err != nil {
		return uuid.Nil, fmt.Errorf("create snapshot blob: %w", err)
	}

	sha := normalize.TextHash(text)
	size := int64(len(text))
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic.snapshots
			(snapshot_id, owner_id, channel_id, video_id, version,
			 storage_path, source_file_name, source_sha256, file_size_bytes,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		snapshotID, ref.OwnerID, ref.ChannelID, ref.VideoID, version,
		path, fileName, sha, size, createdAt,
	)
	if err != nil {
		// Document insert failed: remove the orphaned blob so no partial
		// snapshot survives.
		if delErr := s.blobs.Delete(path); delErr != nil {
			s.log.Warn().Err(delErr).Str("path", path).Msg("orphaned snapshot blob left behind")
		}
		return uuid.Nil, fmt.Errorf("insert snapshot document: %w", err)
	}

	s.log.Info().
		Str("snapshot_id", snapshotID.String()).
		Str("video_id", ref.VideoID).
		Int32("version", version).
		Int("rows", len(rows)).
		Msg("snapshot created")
	return snapshotID, nil
}

// Update replaces the backing rows of an existing snapshot in place. Used
// exclusively by the repair loop: the snapshot id and version never change.
// A snapshot that predates blob storage gets a blob on first update and its
// inline rows are cleared.
func (s *SnapshotStore) Update(ctx context.Context, snapshotID uuid.UUID, rows []model.TrafficRow, total *model.TrafficRow, sourceFile *SourceFile) error {
	snap, err := s.Get(ctx, snapshotID)
	if err != nil {
		return err
	}

	text, fileName := snapshotText(rows, total, sourceFile)

	path := ""
	if snap.HasBlob() {
		path = *snap.StoragePath
	} else {
		path = blob.SnapshotPath(snap.OwnerID, snap.ChannelID, snap.VideoID, snap.Version, snap.CreatedAt)
	}
	if err := s.blobs.Put(path, []byte(text)); err != nil {
		return fmt.Errorf("update snapshot blob: %w", err)
	}

	sha := normalize.TextHash(text)
	size := int64(len(text))
	_, err = s.pool.Exec(ctx, `
		UPDATE traffic.snapshots
		SET storage_path = $2,
		    sources = NULL,
		    source_file_name = COALESCE($3, source_file_name),
		    source_sha256 = $4,
		    file_size_bytes = $5,
		    updated_at = now()
		WHERE snapshot_id = $1`,
		snapshotID, path, fileName, sha, size,
	)
	if err != nil {
		return fmt.Errorf("update snapshot document: %w", err)
	}

	s.log.Info().
		Str("snapshot_id", snapshotID.String()).
		Int("rows", len(rows)).
		Msg("snapshot updated in place")
	return nil
}

// Get loads a snapshot document by id.
func (s *SnapshotStore) Get(ctx context.Context, snapshotID uuid.UUID) (*model.TrafficSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, owner_id, channel_id, video_id, version,
		       storage_path, sources, source_file_name, source_sha256,
		       file_size_bytes, created_at, updated_at
		FROM traffic.snapshots
		WHERE snapshot_id = $1`,
		snapshotID,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", snapshotID, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

// GetByVersion loads the snapshot for a specific video version, if any.
func (s *SnapshotStore) GetByVersion(ctx context.Context, videoID string, version int32) (*model.TrafficSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, owner_id, channel_id, video_id, version,
		       storage_path, sources, source_file_name, source_sha256,
		       file_size_bytes, created_at, updated_at
		FROM traffic.snapshots
		WHERE video_id = $1 AND version = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		videoID, version,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("video %s version %d: %w", videoID, version, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot by version: %w", err)
	}
	return snap, nil
}

// ListByVideo returns all snapshot documents for a video, newest version
// first.
func (s *SnapshotStore) ListByVideo(ctx context.Context, videoID string) ([]model.TrafficSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_id, owner_id, channel_id, video_id, version,
		       storage_path, sources, source_file_name, source_sha256,
		       file_size_bytes, created_at, updated_at
		FROM traffic.snapshots
		WHERE video_id = $1
		ORDER BY version DESC, created_at DESC`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.TrafficSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

// FindBySourceHash looks for an existing snapshot of a video built from a
// source file with the given SHA-256. Used by ingest to skip re-importing
// an identical export.
func (s *SnapshotStore) FindBySourceHash(ctx context.Context, videoID, sha256 string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot_id FROM traffic.snapshots
		WHERE video_id = $1 AND source_sha256 = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		videoID, sha256,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find snapshot by hash: %w", err)
	}
	return id, true, nil
}

// Delete removes a snapshot document and its blob. Only the version-history
// editor removes snapshots.
func (s *SnapshotStore) Delete(ctx context.Context, snapshotID uuid.UUID) error {
	snap, err := s.Get(ctx, snapshotID)
	if err != nil {
		return err
	}
	if snap.HasBlob() {
		if err := s.blobs.Delete(*snap.StoragePath); err != nil {
			return fmt.Errorf("delete snapshot blob: %w", err)
		}
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM traffic.snapshots WHERE snapshot_id = $1`, snapshotID); err != nil {
		return fmt.Errorf("delete snapshot document: %w", err)
	}
	return nil
}

// Load materializes a snapshot's rows: blob-backed snapshots are downloaded
// and re-parsed; pre-migration snapshots fall back to their inline rows.
// Snapshots with neither fail with ErrSnapshotUnreadable.
func (s *SnapshotStore) Load(ctx context.Context, snap *model.TrafficSnapshot) (*csvcodec.ParseResult, error) {
	if snap.HasBlob() {
		data, err := s.blobs.Get(*snap.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", snap.SnapshotID, err)
		}
		res, err := csvcodec.ParseWith(string(data), nil, s.keywords)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot %s blob: %w", snap.SnapshotID, err)
		}
		return res, nil
	}

	if len(snap.Sources) > 0 {
		res := &csvcodec.ParseResult{}
		for _, r := range snap.Sources {
			if r.IsTotal() {
				total := r
				res.Total = &total
				continue
			}
			res.Rows = append(res.Rows, r)
		}
		return res, nil
	}

	s.log.Warn().
		Str("snapshot_id", snap.SnapshotID.String()).
		Str("video_id", snap.VideoID).
		Msg("snapshot unreadable: no storage path and no inline sources")
	return nil, fmt.Errorf("snapshot %s: %w", snap.SnapshotID, ErrSnapshotUnreadable)
}

// InsertLegacy writes a pre-migration snapshot document with inline rows
// and no blob. Kept for migration tooling and tests.
func (s *SnapshotStore) InsertLegacy(ctx context.Context, ref model.SnapshotRef, version int32, sources []model.TrafficRow) (uuid.UUID, error) {
	snapshotID := uuid.New()
	data, err := json.Marshal(sources)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal legacy sources: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO traffic.snapshots
			(snapshot_id, owner_id, channel_id, video_id, version, sources)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		snapshotID, ref.OwnerID, ref.ChannelID, ref.VideoID, version, data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert legacy snapshot: %w", err)
	}
	return snapshotID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (*model.TrafficSnapshot, error) {
	var snap model.TrafficSnapshot
	var sources []byte
	err := r.Scan(
		&snap.SnapshotID, &snap.OwnerID, &snap.ChannelID, &snap.VideoID, &snap.Version,
		&snap.StoragePath, &sources, &snap.SourceFileName, &snap.SourceSHA256,
		&snap.FileSizeBytes, &snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &snap.Sources); err != nil {
			return nil, fmt.Errorf("decode legacy sources: %w", err)
		}
	}
	return &snap, nil
}

func snapshotText(rows []model.TrafficRow, total *model.TrafficRow, sourceFile *SourceFile) (text string, fileName *string) {
	if sourceFile != nil {
		return sourceFile.Text, &sourceFile.Name
	}
	return csvcodec.Serialize(rows, total), nil
}
