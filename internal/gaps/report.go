package gaps

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Report is the decoded form of a persisted quality report payload, shaped
// for presentation.
type Report struct {
	EntityType    string
	MissingCounts []FieldCount
	TopItems      []ReportEntry
	Promoted      int
}

// FieldCount pairs a human-readable field label with how many entities miss it.
type FieldCount struct {
	Field string
	Label string
	Count int
}

// ReportEntry is one of the worst-scoring entities in a report.
type ReportEntry struct {
	EntityID int64
	Title    string
	Priority int
	Score    int
	Missing  []string
}

var fieldCaser = cases.Title(language.English)

// LabelForField turns a rule field name into a display label, e.g.
// "place_of_birth" becomes "Place Of Birth".
func LabelForField(field string) string {
	return fieldCaser.String(strings.ReplaceAll(field, "_", " "))
}

// DecodeReport parses a persisted report payload. Field counts come back
// sorted by descending count so the biggest gaps lead.
func DecodeReport(raw string) (*Report, error) {
	var payload reportPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode quality report: %w", err)
	}

	report := &Report{
		EntityType: payload.EntityType,
		Promoted:   payload.Promoted,
	}
	for field, count := range payload.MissingCounts {
		report.MissingCounts = append(report.MissingCounts, FieldCount{
			Field: field,
			Label: LabelForField(field),
			Count: count,
		})
	}
	sort.Slice(report.MissingCounts, func(i, j int) bool {
		if report.MissingCounts[i].Count != report.MissingCounts[j].Count {
			return report.MissingCounts[i].Count > report.MissingCounts[j].Count
		}
		return report.MissingCounts[i].Field < report.MissingCounts[j].Field
	})

	for _, item := range payload.TopItems {
		report.TopItems = append(report.TopItems, ReportEntry{
			EntityID: item.EntityID,
			Title:    item.Title,
			Priority: item.Priority,
			Score:    item.Score,
			Missing:  item.Missing,
		})
	}
	return report, nil
}
