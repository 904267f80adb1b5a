package model

// ColumnMapping records the header index of each logical column in a
// specific export file. An index of -1 means the column was not found.
// All eight required indices must be >= 0 before the mapping may be used
// to parse rows; ChannelID is enrichment-only and may stay -1.
type ColumnMapping struct {
	SourceID    int `yaml:"source_id" json:"sourceId"`
	SourceType  int `yaml:"source_type" json:"sourceType"`
	SourceTitle int `yaml:"source_title" json:"sourceTitle"`
	Impressions int `yaml:"impressions" json:"impressions"`
	CTR         int `yaml:"ctr" json:"ctr"`
	Views       int `yaml:"views" json:"views"`
	AvgDuration int `yaml:"avg_duration" json:"avgDuration"`
	WatchTime   int `yaml:"watch_time" json:"watchTime"`
	ChannelID   int `yaml:"channel_id" json:"channelId"`
}

// NewColumnMapping returns a mapping with every index unresolved.
func NewColumnMapping() *ColumnMapping {
	return &ColumnMapping{
		SourceID:    -1,
		SourceType:  -1,
		SourceTitle: -1,
		Impressions: -1,
		CTR:         -1,
		Views:       -1,
		AvgDuration: -1,
		WatchTime:   -1,
		ChannelID:   -1,
	}
}

// Index returns the header index recorded for the given logical column.
func (m *ColumnMapping) Index(c Column) int {
	switch c {
	case ColSourceID:
		return m.SourceID
	case ColSourceType:
		return m.SourceType
	case ColSourceTitle:
		return m.SourceTitle
	case ColImpressions:
		return m.Impressions
	case ColCTR:
		return m.CTR
	case ColViews:
		return m.Views
	case ColAvgDuration:
		return m.AvgDuration
	case ColWatchTime:
		return m.WatchTime
	case ColChannelID:
		return m.ChannelID
	}
	return -1
}

// SetIndex records the header index for the given logical column.
func (m *ColumnMapping) SetIndex(c Column, idx int) {
	switch c {
	case ColSourceID:
		m.SourceID = idx
	case ColSourceType:
		m.SourceType = idx
	case ColSourceTitle:
		m.SourceTitle = idx
	case ColImpressions:
		m.Impressions = idx
	case ColCTR:
		m.CTR = idx
	case ColViews:
		m.Views = idx
	case ColAvgDuration:
		m.AvgDuration = idx
	case ColWatchTime:
		m.WatchTime = idx
	case ColChannelID:
		m.ChannelID = idx
	}
}

// MissingColumns returns the required columns whose index is unresolved.
func (m *ColumnMapping) MissingColumns() []Column {
	var missing []Column
	for _, c := range RequiredColumns {
		if m.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

// Resolved reports whether every required column has an index.
func (m *ColumnMapping) Resolved() bool {
	return len(m.MissingColumns()) == 0
}
