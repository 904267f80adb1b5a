package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/csvmap"
	"trafficsnap/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile_KeywordOverrides(t *testing.T) {
	path := writeConfig(t, "column_keywords:\n  ctr:\n    - taux de clics\n  views:\n    - vues\n")

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	table := c.KeywordTable()
	if kws := table[model.ColCTR]; kws[len(kws)-1] != "taux de clics" {
		t.Errorf("ctr keywords = %v", kws)
	}
	// Built-in keywords survive the merge.
	found := false
	for _, kw := range table[model.ColCTR] {
		if kw == "click-through rate" {
			found = true
		}
	}
	if !found {
		t.Errorf("built-in ctr keyword lost: %v", table[model.ColCTR])
	}
	if len(table[model.ColImpressions]) == 0 {
		t.Error("untouched columns must keep their keywords")
	}
}

func TestLoadFromFile_UnknownColumn(t *testing.T) {
	path := writeConfig(t, "column_keywords:\n  bogus:\n    - nope\n")

	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for unknown column name")
	}
}

func TestLoadFromFile_ExplicitMapping(t *testing.T) {
	path := writeConfig(t, "mapping:\n  source_id: 0\n  source_type: 1\n  source_title: 2\n  impressions: 3\n  ctr: 4\n  views: 5\n  avg_duration: 6\n  watch_time: 7\n")

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	m := c.UserMapping()
	if m == nil {
		t.Fatal("expected a mapping")
	}
	if len(m.MissingColumns()) != 0 {
		t.Errorf("missing columns: %v", m.MissingColumns())
	}
	if m.Index(model.ColWatchTime) != 7 {
		t.Errorf("watch_time index = %d, want 7", m.Index(model.ColWatchTime))
	}
}

func TestLoadFromFile_UnknownMappingColumn(t *testing.T) {
	path := writeConfig(t, "mapping:\n  bogus: 3\n")

	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for unknown mapping column")
	}
}

func TestUserMapping_NilWhenAbsent(t *testing.T) {
	var c Config
	if c.UserMapping() != nil {
		t.Error("expected nil mapping when none configured")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	var c Config
	if err := c.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestKeywordTable_ReachesParser(t *testing.T) {
	path := writeConfig(t, "column_keywords:\n  source_title:\n    - video name\n")

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	text := "Traffic source,Source type,Video Name,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)\n" +
		"YT_RELATED.abc123,Suggested video,Some Title,100,5.5,40,1:02,3.4\n"

	if _, err := csvcodec.Parse(text, c.UserMapping()); !errors.Is(err, csvmap.ErrMappingRequired) {
		t.Fatalf("header should not resolve without the override, got %v", err)
	}

	res, err := csvcodec.ParseWith(text, c.UserMapping(), c.KeywordTable())
	if err != nil {
		t.Fatalf("ParseWith: %v", err)
	}
	if res.Mapping.SourceTitle != 2 {
		t.Errorf("source title index = %d, want 2", res.Mapping.SourceTitle)
	}
	if res.Rows[0].SourceTitle != "Some Title" {
		t.Errorf("title = %q, want Some Title", res.Rows[0].SourceTitle)
	}
}
