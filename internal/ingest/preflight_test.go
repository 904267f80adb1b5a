package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trafficsnap/internal/csvmap"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

const sampleExport = "Traffic source,Source type,Source title,Impressions,Impressions click-through rate (%),Views,Average view duration,Watch time (hours)\n" +
	"Total,,,1000,4.2,500,2:30,80.5\n" +
	"YT_RELATED.abc123,Suggested video,\"Some Title\",100,5.5,40,1:02,3.4\n"

type fakeFinder struct {
	existing  uuid.UUID
	hasHash   string
	lastVideo string
}

func (f *fakeFinder) FindBySourceHash(ctx context.Context, videoID, sha256 string) (uuid.UUID, bool, error) {
	f.lastVideo = videoID
	if sha256 == f.hasHash {
		return f.existing, true, nil
	}
	return uuid.Nil, false, nil
}

func writeExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPreflight_ResolvesMappingAndHash(t *testing.T) {
	path := writeExport(t, sampleExport)
	finder := &fakeFinder{}

	pf, err := Preflight(context.Background(), finder, zerolog.Nop(), path, "vid1", nil, nil, false)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if pf.FileSHA256 != normalize.TextHash(sampleExport) {
		t.Errorf("sha = %s", pf.FileSHA256)
	}
	if pf.FileName != "export.csv" {
		t.Errorf("file name = %s", pf.FileName)
	}
	if pf.Text != sampleExport {
		t.Error("text not preserved verbatim")
	}
	if pf.Mapping == nil || len(pf.Mapping.MissingColumns()) != 0 {
		t.Errorf("mapping = %+v", pf.Mapping)
	}
	if pf.AlreadyLoaded {
		t.Error("fresh file flagged as already loaded")
	}
	if finder.lastVideo != "vid1" {
		t.Errorf("dedup checked video %q", finder.lastVideo)
	}
}

func TestPreflight_AlreadyLoaded(t *testing.T) {
	path := writeExport(t, sampleExport)
	id := uuid.New()
	finder := &fakeFinder{existing: id, hasHash: normalize.TextHash(sampleExport)}

	pf, err := Preflight(context.Background(), finder, zerolog.Nop(), path, "vid1", nil, nil, false)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if !pf.AlreadyLoaded || pf.ExistingID != id {
		t.Errorf("pf = %+v, want already loaded with id %s", pf, id)
	}

	// Force overrides the dedup skip.
	pf, err = Preflight(context.Background(), finder, zerolog.Nop(), path, "vid1", nil, nil, true)
	if err != nil {
		t.Fatalf("Preflight force: %v", err)
	}
	if pf.AlreadyLoaded {
		t.Error("force must clear AlreadyLoaded")
	}
}

func TestPreflight_UnmappableHeader(t *testing.T) {
	path := writeExport(t, "Video Name,Kind,Label,A,B,C,D,E\nYT_RELATED.x,t,n,1,2,3,0:04,5\n")

	_, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), path, "vid1", nil, nil, false)
	if !errors.Is(err, csvmap.ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired, got %v", err)
	}

	// An explicit mapping rescues the same file.
	m := model.NewColumnMapping()
	for i, col := range model.RequiredColumns {
		m.SetIndex(col, i)
	}
	pf, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), path, "vid1", m, nil, false)
	if err != nil {
		t.Fatalf("Preflight with mapping: %v", err)
	}
	if pf.Mapping != m {
		t.Error("explicit mapping not used")
	}
}

func TestPreflight_MissingFile(t *testing.T) {
	_, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), "/nonexistent/export.csv", "vid1", nil, nil, false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPreflight_BOMHeader(t *testing.T) {
	path := writeExport(t, "\ufeff"+sampleExport)

	pf, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), path, "vid1", nil, nil, false)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if pf.Mapping == nil || len(pf.Mapping.MissingColumns()) != 0 {
		t.Error("BOM header must still resolve")
	}
}

func TestPreflight_KeywordOverride(t *testing.T) {
	localized := strings.Replace(sampleExport, "Source title", "Video Name", 1)
	path := writeExport(t, localized)

	_, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), path, "vid1", nil, nil, false)
	if !errors.Is(err, csvmap.ErrMappingRequired) {
		t.Fatalf("expected ErrMappingRequired with built-in keywords, got %v", err)
	}

	keywords := make(map[model.Column][]string, len(model.ColumnKeywords))
	for col, kws := range model.ColumnKeywords {
		keywords[col] = kws
	}
	keywords[model.ColSourceTitle] = append([]string{"video name"}, keywords[model.ColSourceTitle]...)

	pf, err := Preflight(context.Background(), &fakeFinder{}, zerolog.Nop(), path, "vid1", nil, keywords, false)
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if pf.Mapping.SourceTitle != 2 {
		t.Errorf("source title index = %d, want 2", pf.Mapping.SourceTitle)
	}
}
