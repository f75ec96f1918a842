package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveQualityReport persists a gap scan's aggregate report.
func (s *Store) SaveQualityReport(ctx context.Context, report QualityReport) (int64, error) {
	generatedAt := report.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO quality_reports (generated_at, total_scanned, items_with_gaps, average_score, report_json)
        VALUES (?, ?, ?, ?, ?)`,
		generatedAt.UTC().Format(time.RFC3339Nano),
		report.TotalScanned,
		report.ItemsWithGaps,
		report.AverageScore,
		nullableString(report.ReportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("save quality report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// LatestQualityReport returns the most recent persisted report, or ErrNotFound
// when no scan has run yet.
func (s *Store) LatestQualityReport(ctx context.Context) (*QualityReport, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, generated_at, total_scanned, items_with_gaps, average_score, report_json
        FROM quality_reports ORDER BY id DESC LIMIT 1`,
	)
	var (
		report       QualityReport
		generatedRaw string
		reportJSON   sql.NullString
	)
	err := row.Scan(
		&report.ID,
		&generatedRaw,
		&report.TotalScanned,
		&report.ItemsWithGaps,
		&report.AverageScore,
		&reportJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read quality report: %w", err)
	}
	report.ReportJSON = reportJSON.String
	if generated, parseErr := parseTimeString(generatedRaw); parseErr == nil {
		report.GeneratedAt = generated
	}
	return &report, nil
}
