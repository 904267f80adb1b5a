package model

import "time"

// VideoMetadata is a catalog API record for one video, cached locally so
// reconciliation does not re-spend quota on ids it has already resolved.
type VideoMetadata struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	ThumbnailURL string
	PublishedAt  *time.Time
	FetchedAt    time.Time
}

// Enriched reports whether the cache entry carries a channel id. Entries
// without one cannot satisfy an unenriched row and must be refetched.
// Value receiver so the check works directly on map-indexed entries.
func (m VideoMetadata) Enriched() bool {
	return m.ChannelID != ""
}
