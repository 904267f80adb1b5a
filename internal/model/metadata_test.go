package model_test

import (
	"testing"

	"trafficsnap/internal/model"
)

func TestVideoMetadataEnriched(t *testing.T) {
	entries := map[string]model.VideoMetadata{
		"abc": {VideoID: "abc", ChannelID: "UC1"},
		"def": {VideoID: "def"},
	}

	// Callable directly on map-indexed entries, the way cache readers use it.
	if !entries["abc"].Enriched() {
		t.Error("entry with channel id must report enriched")
	}
	if entries["def"].Enriched() {
		t.Error("entry without channel id must not report enriched")
	}
}
