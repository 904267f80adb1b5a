package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrVersionNotFound is returned when a packaging version does not exist.
var ErrVersionNotFound = errors.New("packaging version not found")

// VersionHistory is the Postgres-backed packaging version history the
// lifecycle coordinator reads configuration snapshots from and applies
// restores through.
type VersionHistory struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewVersionHistory creates a VersionHistory.
func NewVersionHistory(pool *pgxpool.Pool, log zerolog.Logger) *VersionHistory {
	return &VersionHistory{pool: pool, log: log}
}

// ActiveVersion returns the currently active version for a video, or 0
// when the video has no recorded versions.
func (h *VersionHistory) ActiveVersion(ctx context.Context, videoID string) (int32, error) {
	var version int32
	err := h.pool.QueryRow(ctx, `
		SELECT version FROM traffic.packaging_versions
		WHERE video_id = $1 AND active`,
		videoID,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("active version: %w", err)
	}
	return version, nil
}

// ConfigSnapshot returns the packaging configuration frozen at a version.
func (h *VersionHistory) ConfigSnapshot(ctx context.Context, videoID string, version int32) (json.RawMessage, error) {
	var config json.RawMessage
	err := h.pool.QueryRow(ctx, `
		SELECT config FROM traffic.packaging_versions
		WHERE video_id = $1 AND version = $2`,
		videoID, version,
	).Scan(&config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("video %s version %d: %w", videoID, version, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("config snapshot: %w", err)
	}
	return config, nil
}

// ApplyRestore makes targetVersion the active packaging state and records
// which version it replaced. The whole update is one transaction.
func (h *VersionHistory) ApplyRestore(ctx context.Context, videoID string, targetVersion int32) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("apply restore begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var replaced *int32
	err = tx.QueryRow(ctx, `
		SELECT version FROM traffic.packaging_versions
		WHERE video_id = $1 AND active`,
		videoID,
	).Scan(&replaced)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("apply restore lookup: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE traffic.packaging_versions SET active = false
		WHERE video_id = $1 AND active`,
		videoID,
	); err != nil {
		return fmt.Errorf("apply restore deactivate: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE traffic.packaging_versions
		SET active = true, restored_from = $3, updated_at = now()
		WHERE video_id = $1 AND version = $2`,
		videoID, targetVersion, replaced,
	)
	if err != nil {
		return fmt.Errorf("apply restore activate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s version %d: %w", videoID, targetVersion, ErrVersionNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("apply restore commit: %w", err)
	}

	h.log.Info().
		Str("video_id", videoID).
		Int32("target_version", targetVersion).
		Msg("version restore applied")
	return nil
}

// UpsertVersion records a packaging version, activating it when active is
// true (deactivating the rest). Used by the surrounding version system and
// by tests to seed history.
func (h *VersionHistory) UpsertVersion(ctx context.Context, videoID string, version int32, config json.RawMessage, active bool) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert version begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if active {
		if _, err := tx.Exec(ctx, `
			UPDATE traffic.packaging_versions SET active = false
			WHERE video_id = $1 AND active`,
			videoID,
		); err != nil {
			return fmt.Errorf("upsert version deactivate: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO traffic.packaging_versions (video_id, version, config, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id, version) DO UPDATE
		SET config = EXCLUDED.config, active = EXCLUDED.active, updated_at = now()`,
		videoID, version, config, active,
	); err != nil {
		return fmt.Errorf("upsert version: %w", err)
	}

	return tx.Commit(ctx)
}
