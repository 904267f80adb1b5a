package model

// Column identifies one logical column of an analytics traffic export.
type Column string

// Logical columns in canonical export order.
const (
	ColSourceID    Column = "source_id"
	ColSourceType  Column = "source_type"
	ColSourceTitle Column = "source_title"
	ColImpressions Column = "impressions"
	ColCTR         Column = "ctr"
	ColViews       Column = "views"
	ColAvgDuration Column = "avg_duration"
	ColWatchTime   Column = "watch_time"
	ColChannelID   Column = "channel_id"
)

// RequiredColumns lists the columns that must all be resolved before a
// mapping may be used to parse rows. ColChannelID is optional.
var RequiredColumns = []Column{
	ColSourceID,
	ColSourceType,
	ColSourceTitle,
	ColImpressions,
	ColCTR,
	ColViews,
	ColAvgDuration,
	ColWatchTime,
}

// AllColumns lists every logical column, required first.
var AllColumns = append(append([]Column{}, RequiredColumns...), ColChannelID)

// ColumnKeywords maps each logical column to the case-insensitive header
// substrings that identify it. Kept as pure data so localized or renamed
// export headers can be supported by extending the table (see config
// keyword overrides) without touching parsing logic.
var ColumnKeywords = map[Column][]string{
	ColSourceID:    {"traffic source", "source id"},
	ColSourceType:  {"source type"},
	ColSourceTitle: {"source title"},
	ColImpressions: {"impressions"},
	ColCTR:         {"click-through rate", "ctr"},
	ColViews:       {"views"},
	ColAvgDuration: {"average view duration", "avg view duration"},
	ColWatchTime:   {"watch time"},
	ColChannelID:   {"channel id"},
}

// ColumnByName returns the Column for the given snake_case name, or ok=false.
func ColumnByName(name string) (Column, bool) {
	for _, c := range AllColumns {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}
