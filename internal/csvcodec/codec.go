// Package csvcodec parses raw traffic export text into typed rows and
// serializes rows back to export-compatible CSV, the inverse operation the
// repair loop uses to regenerate a snapshot blob.
package csvcodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trafficsnap/internal/csvmap"
	"trafficsnap/internal/model"
	"trafficsnap/internal/normalize"
)

// ErrNoVideoData is returned when a file parsed cleanly but produced zero
// related-video rows. A snapshot with no video breakdown is not useful,
// even when a Total row was present.
var ErrNoVideoData = errors.New("no video traffic rows in file")

// ParseResult is the typed outcome of parsing one export file.
type ParseResult struct {
	Rows         []model.TrafficRow
	Total        *model.TrafficRow
	Mapping      *model.ColumnMapping
	LinesRead    int
	LinesDropped int
}

// Parse splits text into lines, resolves the column mapping from the
// header (or the supplied user mapping), and classifies each data line:
// a source id containing "total" becomes the Total row (last wins), a
// YT_RELATED.-prefixed id becomes a video row, anything else is dropped.
func Parse(text string, userMapping *model.ColumnMapping) (*ParseResult, error) {
	return ParseWith(text, userMapping, nil)
}

// ParseWith is Parse with an explicit header keyword table for mapping
// auto-detection. Nil means the built-in keywords; the CLI passes the
// config's merged table so YAML keyword overrides reach the parser.
func ParseWith(text string, userMapping *model.ColumnMapping, keywords map[model.Column][]string) (*ParseResult, error) {
	lines := strings.Split(strings.TrimPrefix(text, "\ufeff"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("empty file: %w", csvmap.ErrMappingRequired)
	}

	header := splitLine(strings.TrimRight(lines[0], "\r"))
	mapping, err := csvmap.ResolveMappingWith(header, userMapping, keywords)
	if err != nil {
		return nil, err
	}

	res := &ParseResult{Mapping: mapping}
	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.LinesRead++

		fields := splitLine(line)
		sourceID := unquote(cell(fields, mapping.SourceID))

		switch {
		case strings.Contains(strings.ToLower(sourceID), "total"):
			row := rowFromFields(fields, mapping)
			res.Total = &row
		case strings.HasPrefix(sourceID, model.RelatedVideoPrefix):
			videoID := strings.TrimPrefix(sourceID, model.RelatedVideoPrefix)
			if videoID == "" {
				res.LinesDropped++
				continue
			}
			row := rowFromFields(fields, mapping)
			row.VideoID = videoID
			res.Rows = append(res.Rows, row)
		default:
			res.LinesDropped++
		}
	}

	if len(res.Rows) == 0 {
		return nil, ErrNoVideoData
	}
	return res, nil
}

func rowFromFields(fields []string, m *model.ColumnMapping) model.TrafficRow {
	return model.TrafficRow{
		SourceType:      unquote(cell(fields, m.SourceType)),
		SourceTitle:     unquote(cell(fields, m.SourceTitle)),
		Impressions:     normalize.CleanInt(cell(fields, m.Impressions)),
		CTR:             normalize.CleanFloat(cell(fields, m.CTR)),
		Views:           normalize.CleanInt(cell(fields, m.Views)),
		AvgViewDuration: unquote(cell(fields, m.AvgDuration)),
		WatchTimeHours:  normalize.CleanFloat(cell(fields, m.WatchTime)),
		ChannelID:       unquote(cell(fields, m.ChannelID)),
	}
}

// splitLine splits a CSV line on commas, treating a double quote as a
// toggle for "inside field" state so quoted commas are not delimiters.
func splitLine(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// cell returns the field at idx, or "" when the column is unmapped or the
// line is short.
func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

// unquote trims surrounding double quotes and collapses doubled quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `""`, `"`)
	}
	return s
}

// serializeHeader is the canonical export header written by Serialize.
var serializeHeader = []string{
	"Traffic source",
	"Source type",
	"Source title",
	"Impressions",
	"Impressions click-through rate (%)",
	"Views",
	"Average view duration",
	"Watch time (hours)",
}

// Serialize is the inverse of Parse: canonical header, Total row first if
// present, then one line per video row. The optional Channel ID column is
// emitted when any row carries one so enrichment survives a round trip.
func Serialize(rows []model.TrafficRow, total *model.TrafficRow) string {
	withChannel := false
	for i := range rows {
		if rows[i].ChannelID != "" {
			withChannel = true
			break
		}
	}

	header := serializeHeader
	if withChannel {
		header = append(append([]string{}, serializeHeader...), "Channel ID")
	}

	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')

	if total != nil {
		writeLine(&b, "Total", "", "", total, withChannel, "")
	}
	for i := range rows {
		r := &rows[i]
		writeLine(&b, model.RelatedVideoPrefix+r.VideoID, r.SourceType, r.SourceTitle, r, withChannel, r.ChannelID)
	}
	return b.String()
}

func writeLine(b *strings.Builder, sourceID, sourceType, title string, r *model.TrafficRow, withChannel bool, channelID string) {
	cols := []string{
		sourceID,
		sourceType,
		quote(title),
		strconv.FormatInt(r.Impressions, 10),
		strconv.FormatFloat(r.CTR, 'f', -1, 64),
		strconv.FormatInt(r.Views, 10),
		r.AvgViewDuration,
		strconv.FormatFloat(r.WatchTimeHours, 'f', -1, 64),
	}
	if withChannel {
		cols = append(cols, channelID)
	}
	b.WriteString(strings.Join(cols, ","))
	b.WriteByte('\n')
}

// quote wraps a title in double quotes, doubling embedded quotes
// (RFC4180-lite).
func quote(s string) string {
	if s == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
