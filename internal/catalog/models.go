package catalog

import (
	"strings"
	"time"
)

// EntityType identifies which catalog table an operation targets.
type EntityType string

const (
	EntityTypeContent EntityType = "content"
	EntityTypePeople  EntityType = "people"
)

// ParseEntityType converts a string into a known EntityType.
func ParseEntityType(value string) (EntityType, bool) {
	normalized := EntityType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case EntityTypeContent, EntityTypePeople:
		return normalized, true
	default:
		return "", false
	}
}

// ContentType distinguishes movies from series; several gap rules are
// conditional on it.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeTV    ContentType = "tv"
)

// Publish states for content items. Promotion is one-directional: the gap
// scanner moves draft items to published once their completeness score
// crosses the threshold, and never demotes.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Content is a catalog content item (movie or series).
type Content struct {
	ID                int64
	TMDBID            int64
	IMDBID            string
	ContentType       ContentType
	Title             string
	Overview          string
	Tagline           string
	ReleaseDate       string
	RuntimeMinutes    int
	NumberOfSeasons   int
	NumberOfEpisodes  int
	TMDBStatus        string
	GenresJSON        string
	OriginalLanguage  string
	VoteAverage       float64
	VoteCount         int
	Popularity        float64
	PosterPath        string
	BackdropPath      string
	Status            string
	CompletenessScore int
	EnrichedAt        *time.Time
	EnrichmentCycle   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Person is a catalog person record.
type Person struct {
	ID                 int64
	TMDBID             int64
	Name               string
	Biography          string
	Birthday           string
	Deathday           string
	PlaceOfBirth       string
	Gender             int
	ProfilePath        string
	KnownForDepartment string
	Popularity         float64
	WikipediaExtract   string
	EnrichedAt         *time.Time
	EnrichmentCycle    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreditKind partitions credits into cast and crew.
type CreditKind string

const (
	CreditCast CreditKind = "cast"
	CreditCrew CreditKind = "crew"
)

// Credit links a person to a content item.
type Credit struct {
	ID            int64
	ContentID     int64
	PersonID      int64
	Kind          CreditKind
	CharacterName string
	Job           string
	Department    string
	CastOrder     int
}

// CreditCounts holds pre-aggregated cast and crew totals for one content item.
type CreditCounts struct {
	Cast int
	Crew int
}

// CycleRecord tracks the wrapping sweep counter for one entity type. The
// version column guards increments against concurrent runners.
type CycleRecord struct {
	EntityType       EntityType
	CurrentCycle     int
	TotalItems       int
	ItemsCompleted   int
	CycleStartedAt   *time.Time
	CycleCompletedAt *time.Time
	Version          int64
}

// QualityReport is the persisted output of a gap scan.
type QualityReport struct {
	ID            int64
	GeneratedAt   time.Time
	TotalScanned  int
	ItemsWithGaps int
	AverageScore  float64
	ReportJSON    string
}
