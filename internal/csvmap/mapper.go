// Package csvmap detects or validates the column layout of an analytics
// traffic export and produces the column-index mapping the codec parses
// with.
package csvmap

import (
	"errors"
	"fmt"
	"strings"

	"trafficsnap/internal/model"
)

// ErrMappingRequired is returned when header auto-detection leaves any
// required column unresolved. Falling back to a generic default order is
// deliberately disallowed: export column order is not guaranteed stable,
// and a silent wrong mapping is worse than an explicit remap prompt.
var ErrMappingRequired = errors.New("column mapping required")

// detectionOrder lists columns most-specific first so that a header like
// "Impressions click-through rate (%)" is claimed by the CTR column before
// the plain "impressions" keyword can grab it. Each header cell is claimed
// by at most one column.
var detectionOrder = []model.Column{
	model.ColCTR,
	model.ColAvgDuration,
	model.ColWatchTime,
	model.ColSourceType,
	model.ColSourceTitle,
	model.ColChannelID,
	model.ColSourceID,
	model.ColImpressions,
	model.ColViews,
}

// DetectMapping auto-detects a column mapping from a header row by
// substring keyword match. Returns nil only when zero columns matched at
// all; otherwise unmatched required columns carry index -1 and the caller
// decides whether that is fatal (see ResolveMapping).
func DetectMapping(header []string) *model.ColumnMapping {
	return DetectMappingWith(header, model.ColumnKeywords)
}

// DetectMappingWith is DetectMapping with an explicit keyword table,
// allowing config-supplied keyword overrides for localized exports. A nil
// table means the built-in keywords.
func DetectMappingWith(header []string, keywords map[model.Column][]string) *model.ColumnMapping {
	if keywords == nil {
		keywords = model.ColumnKeywords
	}
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = strings.ToLower(strings.TrimSpace(h))
	}

	mapping := model.NewColumnMapping()
	claimed := make([]bool, len(cells))
	matchedAny := false

	for _, col := range detectionOrder {
		idx := findColumn(cells, claimed, keywords[col])
		if idx < 0 {
			continue
		}
		mapping.SetIndex(col, idx)
		claimed[idx] = true
		matchedAny = true
	}

	if !matchedAny {
		return nil
	}
	return mapping
}

func findColumn(cells []string, claimed []bool, keywords []string) int {
	for _, kw := range keywords {
		for i, cell := range cells {
			if claimed[i] || cell == "" {
				continue
			}
			if strings.Contains(cell, kw) {
				return i
			}
		}
	}
	return -1
}

// ResolveMapping returns the mapping to parse with. An explicitly supplied
// user mapping (from a manual-mapping prompt) is used unmodified; otherwise
// the header is auto-detected and any unresolved required column fails with
// ErrMappingRequired.
func ResolveMapping(header []string, user *model.ColumnMapping) (*model.ColumnMapping, error) {
	return ResolveMappingWith(header, user, nil)
}

// ResolveMappingWith is ResolveMapping with an explicit keyword table for
// the auto-detection path. The parse entry points thread the config's
// merged table through here so YAML keyword overrides take effect.
func ResolveMappingWith(header []string, user *model.ColumnMapping, keywords map[model.Column][]string) (*model.ColumnMapping, error) {
	if user != nil {
		if missing := user.MissingColumns(); len(missing) > 0 {
			return nil, fmt.Errorf("supplied mapping incomplete, missing %v: %w", missing, ErrMappingRequired)
		}
		return user, nil
	}

	mapping := DetectMappingWith(header, keywords)
	if mapping == nil {
		return nil, fmt.Errorf("no recognizable columns in header: %w", ErrMappingRequired)
	}
	if missing := mapping.MissingColumns(); len(missing) > 0 {
		return nil, fmt.Errorf("unresolved columns %v: %w", missing, ErrMappingRequired)
	}
	return mapping, nil
}
