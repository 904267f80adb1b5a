package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"trafficsnap/internal/model"
)

// MetadataCache is the Postgres-backed catalog metadata cache. Hitting it
// before the catalog API avoids re-spending quota on already-resolved ids.
type MetadataCache struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewMetadataCache creates a MetadataCache.
func NewMetadataCache(pool *pgxpool.Pool, log zerolog.Logger) *MetadataCache {
	return &MetadataCache{pool: pool, log: log}
}

// GetBatch returns the cached entries for the given ids, keyed by video id.
// Ids without an entry are simply absent from the map.
func (c *MetadataCache) GetBatch(ctx context.Context, ids []string) (map[string]model.VideoMetadata, error) {
	if len(ids) == 0 {
		return map[string]model.VideoMetadata{}, nil
	}

	rows, err := c.pool.Query(ctx, `
		SELECT video_id, title, channel_id, channel_title, thumbnail_url,
		       published_at, fetched_at
		FROM traffic.video_metadata
		WHERE video_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("cache get batch: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.VideoMetadata)
	for rows.Next() {
		var m model.VideoMetadata
		var channelID, channelTitle, thumbnail *string
		if err := rows.Scan(&m.VideoID, &m.Title, &channelID, &channelTitle, &thumbnail, &m.PublishedAt, &m.FetchedAt); err != nil {
			return nil, fmt.Errorf("cache scan: %w", err)
		}
		m.ChannelID = deref(channelID)
		m.ChannelTitle = deref(channelTitle)
		m.ThumbnailURL = deref(thumbnail)
		out[m.VideoID] = m
	}
	return out, rows.Err()
}

// PutBatch upserts fetched metadata. Empty fields are stored as NULL
// rather than empty strings so a later fetch can still improve an entry.
func (c *MetadataCache) PutBatch(ctx context.Context, items []model.VideoMetadata) error {
	if len(items) == 0 {
		return nil
	}

	batchSQL := `
		INSERT INTO traffic.video_metadata
			(video_id, title, channel_id, channel_title, thumbnail_url, published_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (video_id) DO UPDATE
		SET title = EXCLUDED.title,
		    channel_id = COALESCE(EXCLUDED.channel_id, traffic.video_metadata.channel_id),
		    channel_title = COALESCE(EXCLUDED.channel_title, traffic.video_metadata.channel_title),
		    thumbnail_url = COALESCE(EXCLUDED.thumbnail_url, traffic.video_metadata.thumbnail_url),
		    published_at = COALESCE(EXCLUDED.published_at, traffic.video_metadata.published_at),
		    fetched_at = EXCLUDED.fetched_at`

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cache put batch begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range items {
		if m.VideoID == "" {
			continue
		}
		_, err := tx.Exec(ctx, batchSQL,
			m.VideoID, m.Title,
			nilIfEmpty(m.ChannelID), nilIfEmpty(m.ChannelTitle), nilIfEmpty(m.ThumbnailURL),
			m.PublishedAt, m.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("cache upsert %s: %w", m.VideoID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cache put batch commit: %w", err)
	}
	c.log.Debug().Int("items", len(items)).Msg("metadata cache updated")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
