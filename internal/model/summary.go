package model

import "time"

// IngestSummary reports the outcome of a snapshot ingest run.
type IngestSummary struct {
	FilePath     string
	FileSHA256   string
	SnapshotID   string
	Version      int32
	RowsParsed   int
	LinesDropped int
	HasTotalRow  bool

	DurationParse    time.Duration
	DurationSnapshot time.Duration
	DurationTotal    time.Duration
}

// RepairSummary reports the outcome of a reconciliation run.
type RepairSummary struct {
	RowsExamined  int
	MissingTitles int
	Unenriched    int
	CacheHits     int
	IDsFetched    int
	BatchCalls    int
	QuotaSpent    int
	RowsEnriched  int
	DurationFetch time.Duration
	DurationTotal time.Duration
}
