package model

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotRef identifies the owner/channel/video a snapshot belongs to.
type SnapshotRef struct {
	OwnerID   string
	ChannelID string
	VideoID   string
}

// TrafficSnapshot is an immutable frozen copy of traffic rows for one
// packaging version. Current snapshots reference a CSV blob through
// StoragePath; snapshots created before the hybrid-storage migration carry
// their rows inline in Sources instead.
//
// A snapshot never changes identity: the repair loop may replace its
// backing blob in place, but SnapshotID and Version are fixed at creation.
type TrafficSnapshot struct {
	SnapshotID uuid.UUID
	OwnerID    string
	ChannelID  string
	VideoID    string
	Version    int32

	// StoragePath points at the CSV blob for current-format snapshots.
	StoragePath *string
	// Sources holds inline legacy rows for pre-migration snapshots.
	Sources []TrafficRow

	SourceFileName *string
	SourceSHA256   *string
	FileSizeBytes  *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref returns the owner/channel/video reference for this snapshot.
func (s *TrafficSnapshot) Ref() SnapshotRef {
	return SnapshotRef{OwnerID: s.OwnerID, ChannelID: s.ChannelID, VideoID: s.VideoID}
}

// HasBlob reports whether the snapshot is stored in the current blob format.
func (s *TrafficSnapshot) HasBlob() bool {
	return s.StoragePath != nil && *s.StoragePath != ""
}
