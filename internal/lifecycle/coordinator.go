// Package lifecycle coordinates snapshot requests around version
// transitions: when the surrounding packaging-version system creates or
// restores a version, the coordinator decides whether a traffic snapshot
// must be taken first, prompts for the export file, and settles the
// caller's pending result once the file arrives or the user skips.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/store"
)

// State is the coordinator's position in the snapshot-request machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingCreateSnapshot
	StateAwaitingRestoreSnapshot
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCreateSnapshot:
		return "awaitingCreateSnapshot"
	case StateAwaitingRestoreSnapshot:
		return "awaitingRestoreSnapshot"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrRequestPending is returned when a snapshot request is issued while
// another is still awaiting its upload or skip.
var ErrRequestPending = errors.New("snapshot request already pending")

// ErrNoPendingRequest is returned by OnUpload/OnSkip in the idle state.
var ErrNoPendingRequest = errors.New("no snapshot request pending")

// VersionHistory reads the active packaging version and applies restores.
// *store.VersionHistory implements it.
type VersionHistory interface {
	ActiveVersion(ctx context.Context, videoID string) (int32, error)
	ApplyRestore(ctx context.Context, videoID string, targetVersion int32) error
}

// LiveTraffic manages the unsaved traffic rows of the version being edited.
// *store.LiveTraffic implements it.
type LiveTraffic interface {
	Clear(ctx context.Context, videoID string) error
	Rows(ctx context.Context, videoID string) ([]model.TrafficRow, *model.TrafficRow, error)
}

// SnapshotCreator freezes rows into a new snapshot. *store.SnapshotStore
// implements it.
type SnapshotCreator interface {
	Create(ctx context.Context, ref model.SnapshotRef, version int32, rows []model.TrafficRow, total *model.TrafficRow, sourceFile *store.SourceFile) (uuid.UUID, error)
}

// Prompter surfaces an upload request to whatever is driving the
// coordinator. The prompt owns no state; the answer arrives later through
// OnUpload or OnSkip.
type Prompter interface {
	PromptUpload(ctx context.Context, req PromptRequest) error
}

// PromptRequest describes why an export upload is being asked for.
type PromptRequest struct {
	Ref model.SnapshotRef

	// Version is the version being frozen on a create request, or the
	// restore target on a restore request. Zero on create means "derive
	// from the active version when the file arrives".
	Version int32
	Restore bool
}

// Result settles a snapshot request. SnapshotID is nil when the request
// was skipped or there was nothing to freeze.
type Result struct {
	SnapshotID *uuid.UUID
	Err        error
}

type pendingRequest struct {
	req  PromptRequest
	done chan Result
}

func (p *pendingRequest) resolve(r Result) {
	p.done <- r
	close(p.done)
}

// Coordinator is the version-transition entry point. One request may be
// pending at a time; issuing a second while one is awaiting returns
// ErrRequestPending.
type Coordinator struct {
	history   VersionHistory
	live      LiveTraffic
	snapshots SnapshotCreator
	prompter  Prompter
	keywords  map[model.Column][]string
	log       zerolog.Logger

	mu      sync.Mutex
	state   State
	pending *pendingRequest
}

// NewCoordinator creates a Coordinator in the idle state. keywords is the
// header keyword table used when parsing uploaded exports; nil means the
// built-in keywords.
func NewCoordinator(history VersionHistory, live LiveTraffic, snapshots SnapshotCreator, prompter Prompter, keywords map[model.Column][]string, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		history:   history,
		live:      live,
		snapshots: snapshots,
		prompter:  prompter,
		keywords:  keywords,
		log:       log,
	}
}

// State reports the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestSnapshotForNewVersion asks for a traffic snapshot before a new
// packaging version is created. Version 1, or a video that has never been
// published, has nothing meaningful to freeze: live traffic is cleared and
// the returned channel settles with a nil snapshot id immediately.
// Otherwise the coordinator prompts for the export file and the channel
// settles once OnUpload or OnSkip is called.
func (c *Coordinator) RequestSnapshotForNewVersion(ctx context.Context, version int32, ref model.SnapshotRef) (<-chan Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, ErrRequestPending
	}

	done := make(chan Result, 1)

	neverPublished := false
	if version != 1 {
		active, err := c.history.ActiveVersion(ctx, ref.VideoID)
		if err != nil {
			return nil, fmt.Errorf("request snapshot: %w", err)
		}
		neverPublished = active == 0
	}

	if version == 1 || neverPublished {
		if err := c.live.Clear(ctx, ref.VideoID); err != nil {
			return nil, fmt.Errorf("request snapshot: %w", err)
		}
		c.log.Debug().
			Str("video_id", ref.VideoID).
			Int32("version", version).
			Msg("nothing to freeze, skipping snapshot request")
		done <- Result{}
		close(done)
		return done, nil
	}

	req := PromptRequest{Ref: ref, Version: version}
	if err := c.prompter.PromptUpload(ctx, req); err != nil {
		return nil, fmt.Errorf("request snapshot: %w", err)
	}

	c.state = StateAwaitingCreateSnapshot
	c.pending = &pendingRequest{req: req, done: done}
	return done, nil
}

// RequestSnapshotForRestore asks for a traffic snapshot before targetVersion
// is restored. The prompt is always shown: restoring discards the version
// currently being edited, so its traffic must be preserved first.
func (c *Coordinator) RequestSnapshotForRestore(ctx context.Context, targetVersion int32, ref model.SnapshotRef) (<-chan Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return nil, ErrRequestPending
	}

	req := PromptRequest{Ref: ref, Version: targetVersion, Restore: true}
	if err := c.prompter.PromptUpload(ctx, req); err != nil {
		return nil, fmt.Errorf("request restore snapshot: %w", err)
	}

	c.state = StateAwaitingRestoreSnapshot
	c.pending = &pendingRequest{req: req, done: make(chan Result, 1)}
	return c.pending.done, nil
}

// OnUpload delivers the export file the pending request asked for. Parse
// failures (ErrMappingRequired, ErrNoVideoData) are returned without
// settling the request, so the caller can re-issue the upload with a
// manual mapping or a different file. Any other failure settles the
// request with the error and returns the coordinator to idle.
func (c *Coordinator) OnUpload(ctx context.Context, file store.SourceFile, mapping *model.ColumnMapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAwaitingCreateSnapshot:
		return c.uploadForCreate(ctx, file, mapping)
	case StateAwaitingRestoreSnapshot:
		return c.uploadForRestore(ctx, file, mapping)
	default:
		return ErrNoPendingRequest
	}
}

// OnSkip declines the pending request. A skipped create clears live
// traffic and settles with no snapshot. A skipped restore still preserves
// whatever live traffic exists as a best-effort snapshot, then performs
// the restore.
func (c *Coordinator) OnSkip(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateAwaitingCreateSnapshot:
		return c.skipCreate(ctx)
	case StateAwaitingRestoreSnapshot:
		return c.skipRestore(ctx)
	default:
		return ErrNoPendingRequest
	}
}

func (c *Coordinator) uploadForCreate(ctx context.Context, file store.SourceFile, mapping *model.ColumnMapping) error {
	req := c.pending.req

	res, err := csvcodec.ParseWith(file.Text, mapping, c.keywords)
	if err != nil {
		// Recoverable: the request stays pending for a re-issued upload.
		return err
	}

	version := req.Version
	if version == 0 {
		active, err := c.history.ActiveVersion(ctx, req.Ref.VideoID)
		if err != nil {
			return c.fail(fmt.Errorf("snapshot version lookup: %w", err))
		}
		version = active + 1
	}

	id, err := c.snapshots.Create(ctx, req.Ref, version, res.Rows, res.Total, &file)
	if err != nil {
		return c.fail(fmt.Errorf("create snapshot: %w", err))
	}

	if err := c.live.Clear(ctx, req.Ref.VideoID); err != nil {
		c.log.Warn().Err(err).
			Str("video_id", req.Ref.VideoID).
			Msg("live traffic clear failed after snapshot")
	}

	c.log.Info().
		Str("video_id", req.Ref.VideoID).
		Int32("version", version).
		Str("snapshot_id", id.String()).
		Msg("version snapshot created")
	c.settle(Result{SnapshotID: &id})
	return nil
}

func (c *Coordinator) skipCreate(ctx context.Context) error {
	req := c.pending.req
	if err := c.live.Clear(ctx, req.Ref.VideoID); err != nil {
		return c.fail(fmt.Errorf("clear live traffic: %w", err))
	}
	c.log.Debug().
		Str("video_id", req.Ref.VideoID).
		Msg("snapshot request skipped")
	c.settle(Result{})
	return nil
}

func (c *Coordinator) uploadForRestore(ctx context.Context, file store.SourceFile, mapping *model.ColumnMapping) error {
	req := c.pending.req

	res, err := csvcodec.ParseWith(file.Text, mapping, c.keywords)
	if err != nil {
		return err
	}

	// The snapshot freezes the version being replaced, not the restore
	// target, and it must land before history is touched.
	replaced, err := c.history.ActiveVersion(ctx, req.Ref.VideoID)
	if err != nil {
		return c.fail(fmt.Errorf("restore version lookup: %w", err))
	}

	id, err := c.snapshots.Create(ctx, req.Ref, replaced, res.Rows, res.Total, &file)
	if err != nil {
		return c.fail(fmt.Errorf("create restore snapshot: %w", err))
	}

	return c.finishRestore(ctx, req, &id)
}

func (c *Coordinator) skipRestore(ctx context.Context) error {
	req := c.pending.req

	// Best-effort preservation: snapshot whatever live rows exist before
	// they are discarded. Failures here are logged, never fatal.
	var snapshotID *uuid.UUID
	rows, total, err := c.live.Rows(ctx, req.Ref.VideoID)
	if err != nil {
		c.log.Warn().Err(err).
			Str("video_id", req.Ref.VideoID).
			Msg("live traffic read failed, restoring without snapshot")
	} else if len(rows) > 0 || total != nil {
		replaced, err := c.history.ActiveVersion(ctx, req.Ref.VideoID)
		if err != nil {
			return c.fail(fmt.Errorf("restore version lookup: %w", err))
		}
		id, err := c.snapshots.Create(ctx, req.Ref, replaced, rows, total, nil)
		if err != nil {
			c.log.Warn().Err(err).
				Str("video_id", req.Ref.VideoID).
				Msg("live traffic snapshot failed, restoring without snapshot")
		} else {
			snapshotID = &id
		}
	}

	return c.finishRestore(ctx, req, snapshotID)
}

func (c *Coordinator) finishRestore(ctx context.Context, req PromptRequest, snapshotID *uuid.UUID) error {
	if err := c.history.ApplyRestore(ctx, req.Ref.VideoID, req.Version); err != nil {
		return c.fail(fmt.Errorf("apply restore: %w", err))
	}

	if err := c.live.Clear(ctx, req.Ref.VideoID); err != nil {
		c.log.Warn().Err(err).
			Str("video_id", req.Ref.VideoID).
			Msg("live traffic clear failed after restore")
	}

	c.log.Info().
		Str("video_id", req.Ref.VideoID).
		Int32("target_version", req.Version).
		Msg("version restored")
	c.settle(Result{SnapshotID: snapshotID})
	return nil
}

// fail settles the pending request with err and returns the coordinator
// to idle. Always returns err.
func (c *Coordinator) fail(err error) error {
	c.log.Error().Err(err).Msg("snapshot request failed")
	c.settle(Result{Err: err})
	return err
}

func (c *Coordinator) settle(r Result) {
	c.pending.resolve(r)
	c.pending = nil
	c.state = StateIdle
}
