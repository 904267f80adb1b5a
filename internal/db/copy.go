package db

import (
	"github.com/jackc/pgx/v5"

	"trafficsnap/internal/model"
)

// LiveRowSource implements pgx.CopyFromSource by reading TrafficRows from a
// channel, used to bulk-load live traffic rows for one video.
type LiveRowSource struct {
	videoID string
	ch      <-chan *model.TrafficRow
	current *model.TrafficRow
	err     error
}

// NewLiveRowSource creates a CopyFromSource backed by a channel.
func NewLiveRowSource(videoID string, ch <-chan *model.TrafficRow) *LiveRowSource {
	return &LiveRowSource{videoID: videoID, ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *LiveRowSource) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	return true
}

// Values returns the current row's values in COPY column order.
func (s *LiveRowSource) Values() ([]any, error) {
	return s.current.LiveRowValues(s.videoID), nil
}

// Err returns any error encountered during iteration.
func (s *LiveRowSource) Err() error {
	return s.err
}

// Compile-time check that LiveRowSource satisfies the interface.
var _ pgx.CopyFromSource = (*LiveRowSource)(nil)
