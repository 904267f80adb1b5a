package model

import "strings"

// RelatedVideoPrefix marks a traffic source row that originated from a
// suggested/related video. The suffix after the prefix is the video id.
const RelatedVideoPrefix = "YT_RELATED."

// TrafficRow is one line of a traffic export. A row held in a parse result
// is either the synthetic Total row (VideoID empty) or a related-video row
// (VideoID set); every other raw line is discarded during parsing.
//
// AvgViewDuration is kept as the raw export string (HH:MM:SS, plain
// seconds, or an ISO-8601 duration) and only normalized for display.
// The json tags match the legacy inline document format still present on
// pre-migration snapshots.
type TrafficRow struct {
	SourceType      string  `json:"sourceType"`
	SourceTitle     string  `json:"sourceTitle"`
	VideoID         string  `json:"videoId,omitempty"`
	Impressions     int64   `json:"impressions"`
	CTR             float64 `json:"ctr"`
	Views           int64   `json:"views"`
	AvgViewDuration string  `json:"avgViewDuration"`
	WatchTimeHours  float64 `json:"watchTimeHours"`

	// Enrichment fields filled by reconciliation; ChannelID is the only
	// one that survives CSV serialization, the rest live in the metadata
	// cache.
	ChannelID    string `json:"channelId,omitempty"`
	ChannelTitle string `json:"channelTitle,omitempty"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
	PublishedAt  string `json:"publishedAt,omitempty"`
}

// IsTotal reports whether this is the synthetic Total row.
func (r *TrafficRow) IsTotal() bool {
	return r.VideoID == ""
}

// TitleMissing reports whether the row lacks a usable source title.
func (r *TrafficRow) TitleMissing() bool {
	return strings.TrimSpace(r.SourceTitle) == ""
}

// LiveRowColumns returns the ordered column names for COPY into
// traffic.live_rows.
func LiveRowColumns() []string {
	return []string{
		"video_id",
		"source_video_id",
		"source_type",
		"source_title",
		"impressions",
		"ctr",
		"views",
		"avg_view_duration",
		"watch_time_hours",
		"channel_id",
		"is_total",
	}
}

// LiveRowValues returns the row values in LiveRowColumns order for the
// video the live data belongs to, suitable for pgx CopyFromSource.
func (r *TrafficRow) LiveRowValues(videoID string) []any {
	return []any{
		videoID,
		r.VideoID,
		r.SourceType,
		r.SourceTitle,
		r.Impressions,
		r.CTR,
		r.Views,
		r.AvgViewDuration,
		r.WatchTimeHours,
		nilIfEmpty(r.ChannelID),
		r.IsTotal(),
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
