package csvmap

import (
	"errors"
	"testing"

	"trafficsnap/internal/model"
)

var canonicalHeader = []string{
	"Traffic source",
	"Source type",
	"Source title",
	"Impressions",
	"Impressions click-through rate (%)",
	"Views",
	"Average view duration",
	"Watch time (hours)",
}

func TestDetectMapping_CanonicalHeader(t *testing.T) {
	m := DetectMapping(canonicalHeader)
	if m == nil {
		t.Fatal("expected mapping, got nil")
	}
	if !m.Resolved() {
		t.Fatalf("unresolved columns: %v", m.MissingColumns())
	}

	want := map[model.Column]int{
		model.ColSourceID:    0,
		model.ColSourceType:  1,
		model.ColSourceTitle: 2,
		model.ColImpressions: 3,
		model.ColCTR:         4,
		model.ColViews:       5,
		model.ColAvgDuration: 6,
		model.ColWatchTime:   7,
	}
	for col, idx := range want {
		if got := m.Index(col); got != idx {
			t.Errorf("%s: got index %d, want %d", col, got, idx)
		}
	}
	if m.ChannelID != -1 {
		t.Errorf("channel id should be unresolved, got %d", m.ChannelID)
	}
}

func TestDetectMapping_Permutations(t *testing.T) {
	// Every rotation of the canonical header must still resolve all eight
	// required columns to the right cells.
	for shift := 0; shift < len(canonicalHeader); shift++ {
		header := make([]string, len(canonicalHeader))
		for i, h := range canonicalHeader {
			header[(i+shift)%len(canonicalHeader)] = h
		}

		m := DetectMapping(header)
		if m == nil {
			t.Fatalf("shift %d: nil mapping", shift)
		}
		if !m.Resolved() {
			t.Fatalf("shift %d: unresolved columns %v", shift, m.MissingColumns())
		}
		if header[m.CTR] != "Impressions click-through rate (%)" {
			t.Errorf("shift %d: CTR mapped to %q", shift, header[m.CTR])
		}
		if header[m.Impressions] != "Impressions" {
			t.Errorf("shift %d: impressions mapped to %q", shift, header[m.Impressions])
		}
	}
}

func TestDetectMapping_ShortCTRAlias(t *testing.T) {
	header := []string{"Traffic source", "Source type", "Source title", "Impressions", "CTR", "Views", "Average view duration", "Watch time (hours)"}
	m := DetectMapping(header)
	if m == nil || m.CTR != 4 {
		t.Fatalf("expected CTR at index 4, got %+v", m)
	}
}

func TestDetectMapping_OptionalChannelID(t *testing.T) {
	header := append(append([]string{}, canonicalHeader...), "Channel ID")
	m := DetectMapping(header)
	if m == nil {
		t.Fatal("nil mapping")
	}
	if m.ChannelID != 8 {
		t.Errorf("channel id index = %d, want 8", m.ChannelID)
	}
}

func TestDetectMapping_NothingMatches(t *testing.T) {
	if m := DetectMapping([]string{"alpha", "beta", "gamma"}); m != nil {
		t.Fatalf("expected nil mapping, got %+v", m)
	}
}

func TestResolveMapping_MissingColumnFails(t *testing.T) {
	header := append([]string{}, canonicalHeader...)
	header[2] = "Video Name" // unrecognized keyword for source title

	_, err := ResolveMapping(header, nil)
	if !errors.Is(err, ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired, got %v", err)
	}
}

func TestResolveMapping_UserMappingWins(t *testing.T) {
	user := model.NewColumnMapping()
	for i, col := range model.RequiredColumns {
		user.SetIndex(col, i)
	}

	// Header is garbage; the explicit mapping must be used unmodified.
	m, err := ResolveMapping([]string{"x", "y"}, user)
	if err != nil {
		t.Fatalf("ResolveMapping: %v", err)
	}
	if m != user {
		t.Error("expected user mapping to be returned as-is")
	}
}

func TestResolveMapping_IncompleteUserMapping(t *testing.T) {
	user := model.NewColumnMapping()
	user.SourceID = 0

	_, err := ResolveMapping(canonicalHeader, user)
	if !errors.Is(err, ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired, got %v", err)
	}
}

func TestDetectMappingWith_KeywordOverride(t *testing.T) {
	keywords := make(map[model.Column][]string, len(model.ColumnKeywords))
	for col, kws := range model.ColumnKeywords {
		keywords[col] = kws
	}
	keywords[model.ColSourceTitle] = append([]string{"video name"}, keywords[model.ColSourceTitle]...)

	header := append([]string{}, canonicalHeader...)
	header[2] = "Video Name"

	m := DetectMappingWith(header, keywords)
	if m == nil || m.SourceTitle != 2 {
		t.Fatalf("expected source title at 2 via override, got %+v", m)
	}
}

func TestResolveMappingWith_KeywordOverride(t *testing.T) {
	header := append([]string{}, canonicalHeader...)
	header[2] = "Video Name"

	if _, err := ResolveMapping(header, nil); !errors.Is(err, ErrMappingRequired) {
		t.Fatalf("built-in keywords should not resolve this header, got %v", err)
	}

	keywords := make(map[model.Column][]string, len(model.ColumnKeywords))
	for col, kws := range model.ColumnKeywords {
		keywords[col] = kws
	}
	keywords[model.ColSourceTitle] = append([]string{"video name"}, keywords[model.ColSourceTitle]...)

	m, err := ResolveMappingWith(header, nil, keywords)
	if err != nil {
		t.Fatalf("ResolveMappingWith: %v", err)
	}
	if m.SourceTitle != 2 {
		t.Errorf("source title index = %d, want 2", m.SourceTitle)
	}
}
