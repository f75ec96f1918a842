// Package gaps scans the full catalog for missing or low-quality fields,
// seeds the work queue with what it finds, and persists an aggregate quality
// report. Gap detection is one of two independent selection strategies; the
// cycle sweep covers entities the scanner considers complete.
package gaps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"curator/internal/catalog"
	"curator/internal/logging"
	"curator/internal/queue"
)

// Options tunes a scan.
type Options struct {
	// PageSize bounds each catalog read.
	PageSize int
	// StartFromID resumes a scan past a known id. Zero scans everything.
	StartFromID int64
	// PublishThreshold is the completeness score at which draft content is
	// promoted to published.
	PublishThreshold int
	// MaxRetries is stamped on every enqueued item.
	MaxRetries int
	// ReportTopItems caps the worst-items list in the quality report.
	ReportTopItems int
}

func (o *Options) normalize() {
	if o.PageSize <= 0 {
		o.PageSize = 500
	}
	if o.PublishThreshold <= 0 {
		o.PublishThreshold = 70
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.ReportTopItems <= 0 {
		o.ReportTopItems = 20
	}
}

// Summary aggregates what one scan did.
type Summary struct {
	Scanned      int
	WithGaps     int
	Queued       int
	Updated      int
	Skipped      int
	Promoted     int
	AverageScore float64
	Duration     time.Duration
}

// Scanner walks the catalog and feeds the queue.
type Scanner struct {
	catalog *catalog.Store
	queue   *queue.Store
	opts    Options
	logger  *slog.Logger
}

// NewScanner builds a scanner over the catalog and queue stores.
func NewScanner(catalogStore *catalog.Store, queueStore *queue.Store, opts Options, logger *slog.Logger) *Scanner {
	opts.normalize()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		catalog: catalogStore,
		queue:   queueStore,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "gap-scanner"),
	}
}

type reportItem struct {
	EntityID int64    `json:"entity_id"`
	Title    string   `json:"title"`
	Priority int      `json:"priority"`
	Score    int      `json:"score"`
	Missing  []string `json:"missing"`
}

type reportPayload struct {
	EntityType    string         `json:"entity_type"`
	MissingCounts map[string]int `json:"missing_counts"`
	TopItems      []reportItem   `json:"top_items"`
	Promoted      int            `json:"promoted,omitempty"`
}

// ScanContent walks every content item, enqueues gap work, promotes complete
// drafts, and persists a quality report.
func (s *Scanner) ScanContent(ctx context.Context) (Summary, error) {
	started := time.Now()
	var summary Summary

	creditCounts, err := s.catalog.CreditCountsByContent(ctx)
	if err != nil {
		return summary, fmt.Errorf("pre-aggregate credits: %w", err)
	}

	missingCounts := make(map[string]int)
	var topItems []reportItem
	var scoreTotal int

	afterID := s.opts.StartFromID
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page, err := s.catalog.ScanContentPage(ctx, afterID, s.opts.PageSize)
		if err != nil {
			return summary, fmt.Errorf("scan content page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			summary.Scanned++
			missing, score := EvaluateContent(c, creditCounts[c.ID])
			scoreTotal += score

			if err := s.catalog.SetContentScore(ctx, c.ID, score); err != nil {
				return summary, fmt.Errorf("persist score for content %d: %w", c.ID, err)
			}
			if score >= s.opts.PublishThreshold && c.Status == catalog.StatusDraft {
				promoted, err := s.catalog.PublishContent(ctx, c.ID)
				if err != nil {
					return summary, fmt.Errorf("promote content %d: %w", c.ID, err)
				}
				if promoted {
					summary.Promoted++
				}
			}

			if len(missing) == 0 {
				continue
			}
			summary.WithGaps++
			for _, field := range missing {
				missingCounts[field]++
			}
			topItems = append(topItems, reportItem{
				EntityID: c.ID,
				Title:    c.Title,
				Priority: len(missing),
				Score:    score,
				Missing:  missing,
			})

			if err := s.enqueue(ctx, &summary, c.ID, queue.QueueTypeContent, missing); err != nil {
				return summary, err
			}
		}
		afterID = page[len(page)-1].ID
	}

	summary.Duration = time.Since(started)
	if summary.Scanned > 0 {
		summary.AverageScore = float64(scoreTotal) / float64(summary.Scanned)
	}
	if err := s.persistReport(ctx, string(catalog.EntityTypeContent), summary, missingCounts, topItems); err != nil {
		return summary, err
	}

	s.logger.Info("content scan finished",
		logging.Int("scanned", summary.Scanned),
		logging.Int("with_gaps", summary.WithGaps),
		logging.Int("queued", summary.Queued),
		logging.Int("promoted", summary.Promoted),
		logging.Duration("elapsed", summary.Duration))
	return summary, nil
}

// ScanPeople walks every person, enqueuing gap work and persisting a report.
func (s *Scanner) ScanPeople(ctx context.Context) (Summary, error) {
	started := time.Now()
	var summary Summary

	missingCounts := make(map[string]int)
	var topItems []reportItem
	var scoreTotal int

	afterID := s.opts.StartFromID
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		page, err := s.catalog.ScanPeoplePage(ctx, afterID, s.opts.PageSize)
		if err != nil {
			return summary, fmt.Errorf("scan people page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			summary.Scanned++
			missing, score := EvaluatePerson(p)
			scoreTotal += score
			if len(missing) == 0 {
				continue
			}
			summary.WithGaps++
			for _, field := range missing {
				missingCounts[field]++
			}
			topItems = append(topItems, reportItem{
				EntityID: p.ID,
				Title:    p.Name,
				Priority: len(missing),
				Score:    score,
				Missing:  missing,
			})
			if err := s.enqueue(ctx, &summary, p.ID, queue.QueueTypePeople, missing); err != nil {
				return summary, err
			}
		}
		afterID = page[len(page)-1].ID
	}

	summary.Duration = time.Since(started)
	if summary.Scanned > 0 {
		summary.AverageScore = float64(scoreTotal) / float64(summary.Scanned)
	}
	if err := s.persistReport(ctx, string(catalog.EntityTypePeople), summary, missingCounts, topItems); err != nil {
		return summary, err
	}

	s.logger.Info("people scan finished",
		logging.Int("scanned", summary.Scanned),
		logging.Int("with_gaps", summary.WithGaps),
		logging.Int("queued", summary.Queued),
		logging.Duration("elapsed", summary.Duration))
	return summary, nil
}

func (s *Scanner) enqueue(ctx context.Context, summary *Summary, entityID int64, queueType queue.QueueType, missing []string) error {
	metadata, err := queue.EncodeMetadata(queue.Metadata{
		Source:        queue.SourceGapScan,
		MissingFields: missing,
	})
	if err != nil {
		return err
	}
	_, outcome, err := s.queue.Enqueue(ctx, queue.EnqueueRequest{
		EntityID:     entityID,
		QueueType:    queueType,
		Priority:     len(missing),
		MaxRetries:   s.opts.MaxRetries,
		MetadataJSON: metadata,
	})
	if err != nil {
		return fmt.Errorf("enqueue entity %d: %w", entityID, err)
	}
	switch outcome {
	case queue.OutcomeQueued:
		summary.Queued++
	case queue.OutcomeUpdated:
		summary.Updated++
	case queue.OutcomeSkipped:
		summary.Skipped++
	}
	return nil
}

func (s *Scanner) persistReport(ctx context.Context, entityType string, summary Summary, missingCounts map[string]int, topItems []reportItem) error {
	sort.SliceStable(topItems, func(i, j int) bool {
		if topItems[i].Priority != topItems[j].Priority {
			return topItems[i].Priority > topItems[j].Priority
		}
		return topItems[i].EntityID < topItems[j].EntityID
	})
	if len(topItems) > s.opts.ReportTopItems {
		topItems = topItems[:s.opts.ReportTopItems]
	}

	payload, err := json.Marshal(reportPayload{
		EntityType:    entityType,
		MissingCounts: missingCounts,
		TopItems:      topItems,
		Promoted:      summary.Promoted,
	})
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}

	if _, err := s.catalog.SaveQualityReport(ctx, catalog.QualityReport{
		TotalScanned:  summary.Scanned,
		ItemsWithGaps: summary.WithGaps,
		AverageScore:  summary.AverageScore,
		ReportJSON:    string(payload),
	}); err != nil {
		return err
	}
	return nil
}
