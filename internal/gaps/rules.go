package gaps

import (
	"math"

	"curator/internal/catalog"
)

// contentRule is one entry in the content rule table. Missing reports whether
// the field needs enrichment; Applies gates type-conditional rules. Weight
// feeds the completeness score.
type contentRule struct {
	Field   string
	Weight  int
	Applies func(*catalog.Content) bool
	Missing func(*catalog.Content, catalog.CreditCounts) bool
}

// personRule is one entry in the people rule table.
type personRule struct {
	Field   string
	Weight  int
	Missing func(*catalog.Person) bool
}

const (
	minCastCount = 5
	minCrewCount = 1
)

func always(*catalog.Content) bool { return true }

func movieOnly(c *catalog.Content) bool { return c.ContentType == catalog.ContentTypeMovie }

func tvOnly(c *catalog.Content) bool { return c.ContentType == catalog.ContentTypeTV }

// contentRules is the fixed rule table applied to every content item. Order
// determines the order of field names in queue metadata and reports.
var contentRules = []contentRule{
	{
		Field:   "poster_path",
		Weight:  10,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.PosterPath == "" },
	},
	{
		Field:   "backdrop_path",
		Weight:  5,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.BackdropPath == "" },
	},
	{
		Field:   "overview",
		Weight:  15,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.Overview == "" },
	},
	{
		Field:   "tagline",
		Weight:  5,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.Tagline == "" },
	},
	{
		Field:   "runtime",
		Weight:  5,
		Applies: movieOnly,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.RuntimeMinutes <= 0 },
	},
	{
		Field:   "episode_counts",
		Weight:  5,
		Applies: tvOnly,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool {
			return c.NumberOfSeasons <= 0 || c.NumberOfEpisodes <= 0
		},
	},
	{
		Field:   "release_date",
		Weight:  10,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.ReleaseDate == "" },
	},
	{
		Field:   "tmdb_status",
		Weight:  5,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool { return c.TMDBStatus == "" },
	},
	{
		Field:   "ratings",
		Weight:  10,
		Applies: always,
		Missing: func(c *catalog.Content, _ catalog.CreditCounts) bool {
			return c.VoteAverage <= 0 || c.VoteCount <= 0
		},
	},
	{
		Field:   "cast",
		Weight:  20,
		Applies: always,
		Missing: func(_ *catalog.Content, counts catalog.CreditCounts) bool { return counts.Cast < minCastCount },
	},
	{
		Field:   "crew",
		Weight:  10,
		Applies: always,
		Missing: func(_ *catalog.Content, counts catalog.CreditCounts) bool { return counts.Crew < minCrewCount },
	},
}

// personRules is the fixed rule table applied to every person.
var personRules = []personRule{
	{Field: "profile_path", Weight: 15, Missing: func(p *catalog.Person) bool { return p.ProfilePath == "" }},
	{Field: "biography", Weight: 25, Missing: func(p *catalog.Person) bool { return p.Biography == "" }},
	{Field: "birthday", Weight: 15, Missing: func(p *catalog.Person) bool { return p.Birthday == "" }},
	{Field: "place_of_birth", Weight: 10, Missing: func(p *catalog.Person) bool { return p.PlaceOfBirth == "" }},
	{Field: "gender", Weight: 10, Missing: func(p *catalog.Person) bool { return p.Gender == 0 }},
	{Field: "known_for_department", Weight: 10, Missing: func(p *catalog.Person) bool { return p.KnownForDepartment == "" }},
	{Field: "popularity", Weight: 15, Missing: func(p *catalog.Person) bool { return p.Popularity <= 0 }},
}

// EvaluateContent returns the missing-field list and the weighted 0-100
// completeness score for a content item. Priority for the queue is simply the
// number of gaps: more gaps means higher priority.
func EvaluateContent(c *catalog.Content, counts catalog.CreditCounts) (missing []string, score int) {
	var totalWeight, presentWeight int
	for _, rule := range contentRules {
		if !rule.Applies(c) {
			continue
		}
		totalWeight += rule.Weight
		if rule.Missing(c, counts) {
			missing = append(missing, rule.Field)
		} else {
			presentWeight += rule.Weight
		}
	}
	if totalWeight == 0 {
		return missing, 100
	}
	return missing, int(math.Round(float64(presentWeight) / float64(totalWeight) * 100))
}

// EvaluatePerson returns the missing-field list and completeness score for a
// person record.
func EvaluatePerson(p *catalog.Person) (missing []string, score int) {
	var totalWeight, presentWeight int
	for _, rule := range personRules {
		totalWeight += rule.Weight
		if rule.Missing(p) {
			missing = append(missing, rule.Field)
		} else {
			presentWeight += rule.Weight
		}
	}
	if totalWeight == 0 {
		return missing, 100
	}
	return missing, int(math.Round(float64(presentWeight) / float64(totalWeight) * 100))
}
