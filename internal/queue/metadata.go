package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata is the structured payload attached to a queue item. It records why
// the item was enqueued so runs and reports can explain themselves.
type Metadata struct {
	Source        string   `json:"source,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	Cycle         int      `json:"cycle,omitempty"`
	Note          string   `json:"note,omitempty"`
}

// Known metadata sources.
const (
	SourceGapScan    = "gap_scan"
	SourceChangeSync = "change_sync"
	SourceCycle      = "cycle"
	SourceManual     = "manual"
)

// EncodeMetadata serializes metadata for storage on a queue item.
func EncodeMetadata(meta Metadata) (string, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(payload), nil
}

// DecodeMetadata parses a stored metadata payload. Empty payloads decode to
// the zero Metadata.
func DecodeMetadata(raw string) (Metadata, error) {
	var meta Metadata
	if strings.TrimSpace(raw) == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Metadata decodes the item's stored payload.
func (i Item) Metadata() (Metadata, error) {
	return DecodeMetadata(i.MetadataJSON)
}

// Summary renders a short human-readable description for CLI listings.
func (m Metadata) Summary() string {
	parts := make([]string, 0, 3)
	if m.Source != "" {
		parts = append(parts, m.Source)
	}
	if len(m.MissingFields) > 0 {
		parts = append(parts, "missing "+strings.Join(m.MissingFields, ","))
	}
	if m.Note != "" {
		parts = append(parts, m.Note)
	}
	return strings.Join(parts, "; ")
}
