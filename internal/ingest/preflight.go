package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trafficsnap/internal/csvmap"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

// SnapshotFinder is the dedup lookup preflight needs.
// *store.SnapshotStore implements it.
type SnapshotFinder interface {
	FindBySourceHash(ctx context.Context, videoID, sha256 string) (uuid.UUID, bool, error)
}

// PreflightResult holds all context resolved during the preflight phase.
type PreflightResult struct {
	// FilePath is the original path passed to Preflight, stored as-is.
	FilePath string
	// FileName is the base name recorded on the snapshot document.
	FileName string
	// FileSHA256 is the hex-encoded SHA-256 digest of the file.
	FileSHA256 string
	// FileSize is the file size in bytes from os.Stat.
	FileSize int64
	// Text is the full file content, handed to the parse phase and stored
	// verbatim as the snapshot blob.
	Text string
	// Mapping is the column mapping the file will be parsed with, either
	// auto-detected from the header or supplied explicitly.
	Mapping *model.ColumnMapping
	// AlreadyLoaded is true when a snapshot of this video was already built
	// from a file with the same SHA-256 and force mode is off.
	AlreadyLoaded bool
	// ExistingID is the id of that snapshot when AlreadyLoaded is true.
	ExistingID uuid.UUID
}

// Preflight reads the file, computes its SHA-256, resolves the column
// mapping from the header, and checks whether an identical export was
// already frozen for this video. Fails before anything is written.
// keywords is the header keyword table for auto-detection; nil means the
// built-in keywords.
func Preflight(ctx context.Context, snapshots SnapshotFinder, log zerolog.Logger, filePath, videoID string, userMapping *model.ColumnMapping, keywords map[model.Column][]string, force bool) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight read: %w", err)
	}
	text := string(data)

	mapping, err := resolveHeader(text, userMapping, keywords)
	if err != nil {
		return nil, fmt.Errorf("preflight header: %w", err)
	}

	existingID, alreadyLoaded, err := snapshots.FindBySourceHash(ctx, videoID, sha)
	if err != nil {
		return nil, fmt.Errorf("preflight dedup check: %w", err)
	}
	if force {
		alreadyLoaded = false
	}

	log.Info().
		Str("file", filepath.Base(filePath)).
		Str("sha256", sha).
		Int64("bytes", stat.Size()).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	return &PreflightResult{
		FilePath:      filePath,
		FileName:      filepath.Base(filePath),
		FileSHA256:    sha,
		FileSize:      stat.Size(),
		Text:          text,
		Mapping:       mapping,
		AlreadyLoaded: alreadyLoaded,
		ExistingID:    existingID,
	}, nil
}

// resolveHeader validates that the first line of the file yields a complete
// column mapping, so a bad export is rejected before any write.
func resolveHeader(text string, userMapping *model.ColumnMapping, keywords map[model.Column][]string) (*model.ColumnMapping, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	line, _, _ := strings.Cut(text, "\n")
	header := strings.Split(strings.TrimRight(line, "\r"), ",")
	return csvmap.ResolveMappingWith(header, userMapping, keywords)
}
