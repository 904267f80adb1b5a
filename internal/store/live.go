package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"trafficsnap/internal/db"
	"trafficsnap/internal/model"
)

// LiveTraffic holds the unsaved traffic rows for the version currently
// being edited. Version transitions clear it; restore-skip snapshots it
// first as a best-effort preservation.
type LiveTraffic struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewLiveTraffic creates a LiveTraffic store.
func NewLiveTraffic(pool *pgxpool.Pool, log zerolog.Logger) *LiveTraffic {
	return &LiveTraffic{pool: pool, log: log}
}

// Clear drops all live rows for a video.
func (l *LiveTraffic) Clear(ctx context.Context, videoID string) error {
	tag, err := l.pool.Exec(ctx, `DELETE FROM traffic.live_rows WHERE video_id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("clear live rows: %w", err)
	}
	l.log.Debug().
		Str("video_id", videoID).
		Int64("rows_cleared", tag.RowsAffected()).
		Msg("live traffic cleared")
	return nil
}

// Rows returns the current live rows and Total row for a video.
func (l *LiveTraffic) Rows(ctx context.Context, videoID string) ([]model.TrafficRow, *model.TrafficRow, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT source_video_id, source_type, source_title, impressions, ctr,
		       views, avg_view_duration, watch_time_hours, channel_id, is_total
		FROM traffic.live_rows
		WHERE video_id = $1`,
		videoID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("load live rows: %w", err)
	}
	defer rows.Close()

	var out []model.TrafficRow
	var total *model.TrafficRow
	for rows.Next() {
		var r model.TrafficRow
		var channelID *string
		var isTotal bool
		if err := rows.Scan(&r.VideoID, &r.SourceType, &r.SourceTitle, &r.Impressions, &r.CTR,
			&r.Views, &r.AvgViewDuration, &r.WatchTimeHours, &channelID, &isTotal); err != nil {
			return nil, nil, fmt.Errorf("scan live row: %w", err)
		}
		r.ChannelID = deref(channelID)
		if isTotal {
			t := r
			total = &t
			continue
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Replace swaps the live rows for a video wholesale, bulk-loading the new
// set through the COPY protocol.
func (l *LiveTraffic) Replace(ctx context.Context, videoID string, rows []model.TrafficRow, total *model.TrafficRow) error {
	if err := l.Clear(ctx, videoID); err != nil {
		return err
	}

	all := rows
	if total != nil {
		all = append(append([]model.TrafficRow{}, rows...), *total)
	}
	if len(all) == 0 {
		return nil
	}

	ch := make(chan *model.TrafficRow, len(all))
	for i := range all {
		ch <- &all[i]
	}
	close(ch)

	copied, err := l.pool.CopyFrom(ctx,
		pgx.Identifier{"traffic", "live_rows"},
		model.LiveRowColumns(),
		db.NewLiveRowSource(videoID, ch),
	)
	if err != nil {
		return fmt.Errorf("copy live rows: %w", err)
	}

	l.log.Debug().
		Str("video_id", videoID).
		Int64("rows", copied).
		Msg("live traffic replaced")
	return nil
}
