// Package export flattens a frozen traffic snapshot into a typed Parquet
// file for offline analysis.
package export

import (
	"fmt"
	"io"

	goparquet "github.com/parquet-go/parquet-go"

	"trafficsnap/internal/csvcodec"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

// Row is the Parquet schema for one exported traffic row. Duration is
// normalized to seconds so downstream tools get a numeric column instead
// of the export's mixed H:MM:SS / ISO-8601 strings.
type Row struct {
	SnapshotID      string  `parquet:"snapshot_id"`
	VideoID         string  `parquet:"video_id"`
	Version         int32   `parquet:"version"`
	SourceVideoID   string  `parquet:"source_video_id"`
	SourceType      string  `parquet:"source_type"`
	SourceTitle     string  `parquet:"source_title"`
	Impressions     int64   `parquet:"impressions"`
	CTR             float64 `parquet:"ctr"`
	Views           int64   `parquet:"views"`
	AvgViewSeconds  int64   `parquet:"avg_view_seconds"`
	WatchTimeHours  float64 `parquet:"watch_time_hours"`
	ChannelID       *string `parquet:"channel_id,optional"`
	ChannelTitle    *string `parquet:"channel_title,optional"`
	IsTotal         bool    `parquet:"is_total"`
	SnapshotCreated int64   `parquet:"snapshot_created_ms"`
}

// Write flattens the snapshot's parsed contents into Parquet rows and
// writes them to w. The Total row, when present, is written last with
// is_total set.
func Write(w io.Writer, snap *model.TrafficSnapshot, res *csvcodec.ParseResult) (int, error) {
	rows := make([]Row, 0, len(res.Rows)+1)
	for _, r := range res.Rows {
		rows = append(rows, flatten(snap, r, false))
	}
	if res.Total != nil {
		rows = append(rows, flatten(snap, *res.Total, true))
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("snapshot %s has no rows to export", snap.SnapshotID)
	}

	writer := goparquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		return 0, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close parquet writer: %w", err)
	}
	return len(rows), nil
}

// Read loads exported rows back, sized by the file length. Used by tests
// and ad-hoc inspection.
func Read(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := goparquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	reader := goparquet.NewGenericReader[Row](pf)
	defer reader.Close()

	out := make([]Row, 0, reader.NumRows())
	buf := make([]Row, 128)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
}

func flatten(snap *model.TrafficSnapshot, r model.TrafficRow, isTotal bool) Row {
	row := Row{
		SnapshotID:      snap.SnapshotID.String(),
		VideoID:         snap.VideoID,
		Version:         snap.Version,
		SourceVideoID:   r.VideoID,
		SourceType:      r.SourceType,
		SourceTitle:     r.SourceTitle,
		Impressions:     r.Impressions,
		CTR:             r.CTR,
		Views:           r.Views,
		AvgViewSeconds:  normalize.DurationSeconds(r.AvgViewDuration),
		WatchTimeHours:  r.WatchTimeHours,
		IsTotal:         isTotal,
		SnapshotCreated: snap.CreatedAt.UTC().UnixMilli(),
	}
	if r.ChannelID != "" {
		row.ChannelID = &r.ChannelID
	}
	if r.ChannelTitle != "" {
		row.ChannelTitle = &r.ChannelTitle
	}
	return row
}
