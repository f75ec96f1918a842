// Package enrich implements the enrichment adapter invoked per queue item:
// it pulls fresh provider data for an entity and persists it to the catalog.
// The batch runner treats the adapter as a black box and only classifies its
// errors for retry decisions.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"curator/internal/catalog"
	"curator/internal/gaps"
	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/services"
)

// Adapter performs the actual enrichment for one entity.
type Adapter interface {
	Enrich(ctx context.Context, entityID int64, queueType queue.QueueType) error
}

// Options tunes the real enricher.
type Options struct {
	// PublishThreshold is the completeness score at which quality rechecks
	// promote draft content.
	PublishThreshold int
	// WikipediaEnabled gates supplementary biography lookups.
	WikipediaEnabled bool
}

// Enricher is the production Adapter: TMDB details plus optional Wikipedia
// biography extracts, written back to the catalog.
type Enricher struct {
	catalog   *catalog.Store
	tmdb      *TMDBClient
	wikipedia *WikipediaClient
	opts      Options
	logger    *slog.Logger
}

// NewEnricher builds the production adapter. wikipedia may be nil when
// supplementary lookups are disabled.
func NewEnricher(catalogStore *catalog.Store, tmdb *TMDBClient, wikipedia *WikipediaClient, opts Options, logger *slog.Logger) *Enricher {
	if opts.PublishThreshold <= 0 {
		opts.PublishThreshold = 70
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		catalog:   catalogStore,
		tmdb:      tmdb,
		wikipedia: wikipedia,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "enricher"),
	}
}

// Enrich dispatches on queue type: content and people refresh provider data,
// quality re-evaluates completeness without touching the provider.
func (e *Enricher) Enrich(ctx context.Context, entityID int64, queueType queue.QueueType) error {
	switch queueType {
	case queue.QueueTypeContent:
		return e.enrichContent(ctx, entityID)
	case queue.QueueTypePeople:
		return e.enrichPerson(ctx, entityID)
	case queue.QueueTypeQuality:
		return e.recheckQuality(ctx, entityID)
	default:
		return services.Wrap(services.ErrValidation, "enricher", "dispatch",
			fmt.Sprintf("unknown queue type %q", queueType), nil)
	}
}

func (e *Enricher) enrichContent(ctx context.Context, entityID int64) error {
	c, err := e.catalog.GetContent(ctx, entityID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "enricher", "load content",
				fmt.Sprintf("content %d", entityID), nil)
		}
		return services.Wrap(services.ErrTransient, "enricher", "load content", "", err)
	}

	var details *ContentDetails
	switch c.ContentType {
	case catalog.ContentTypeTV:
		details, err = e.tmdb.TVDetails(ctx, c.TMDBID)
	default:
		details, err = e.tmdb.MovieDetails(ctx, c.TMDBID)
	}
	if err != nil {
		return err
	}

	applyContentDetails(c, details)
	if err := e.catalog.ApplyContentEnrichment(ctx, c); err != nil {
		return services.Wrap(services.ErrTransient, "enricher", "persist content", "", err)
	}

	credits, err := e.resolveCredits(ctx, details.Credits)
	if err != nil {
		return err
	}
	if err := e.catalog.ReplaceContentCredits(ctx, c.ID, credits); err != nil {
		return services.Wrap(services.ErrTransient, "enricher", "persist credits", "", err)
	}

	e.logger.Debug("content enriched",
		logging.Int64(logging.FieldEntityID, c.ID),
		logging.String("title", c.Title),
		logging.Int("cast", len(details.Credits.Cast)),
		logging.Int("crew", len(details.Credits.Crew)))
	return nil
}

func (e *Enricher) enrichPerson(ctx context.Context, entityID int64) error {
	p, err := e.catalog.GetPerson(ctx, entityID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "enricher", "load person",
				fmt.Sprintf("person %d", entityID), nil)
		}
		return services.Wrap(services.ErrTransient, "enricher", "load person", "", err)
	}

	details, err := e.tmdb.PersonDetails(ctx, p.TMDBID)
	if err != nil {
		return err
	}
	applyPersonDetails(p, details)

	if e.opts.WikipediaEnabled && e.wikipedia != nil && p.Biography == "" {
		extract, wikiErr := e.wikipedia.Summary(ctx, p.Name)
		if wikiErr != nil {
			// Supplementary source; its failure never fails the item.
			e.logger.Warn("wikipedia lookup failed",
				logging.Int64(logging.FieldEntityID, p.ID),
				logging.Error(wikiErr))
		} else if extract != "" {
			p.WikipediaExtract = extract
		}
	}

	if err := e.catalog.ApplyPersonEnrichment(ctx, p); err != nil {
		return services.Wrap(services.ErrTransient, "enricher", "persist person", "", err)
	}

	e.logger.Debug("person enriched",
		logging.Int64(logging.FieldEntityID, p.ID),
		logging.String("name", p.Name))
	return nil
}

func (e *Enricher) recheckQuality(ctx context.Context, entityID int64) error {
	c, err := e.catalog.GetContent(ctx, entityID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "enricher", "load content",
				fmt.Sprintf("content %d", entityID), nil)
		}
		return services.Wrap(services.ErrTransient, "enricher", "load content", "", err)
	}

	credits, err := e.catalog.ListContentCredits(ctx, c.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "enricher", "load credits", "", err)
	}
	var counts catalog.CreditCounts
	for _, credit := range credits {
		switch credit.Kind {
		case catalog.CreditCast:
			counts.Cast++
		case catalog.CreditCrew:
			counts.Crew++
		}
	}

	_, score := gaps.EvaluateContent(c, counts)
	if err := e.catalog.SetContentScore(ctx, c.ID, score); err != nil {
		return services.Wrap(services.ErrTransient, "enricher", "persist score", "", err)
	}
	if score >= e.opts.PublishThreshold && c.Status == catalog.StatusDraft {
		if _, err := e.catalog.PublishContent(ctx, c.ID); err != nil {
			return services.Wrap(services.ErrTransient, "enricher", "promote content", "", err)
		}
	}
	return nil
}

func (e *Enricher) resolveCredits(ctx context.Context, payload CreditsPayload) ([]catalog.Credit, error) {
	credits := make([]catalog.Credit, 0, len(payload.Cast)+len(payload.Crew))
	for _, member := range payload.Cast {
		personID, err := e.resolvePerson(ctx, member.PersonID, member.Name)
		if err != nil {
			return nil, err
		}
		credits = append(credits, catalog.Credit{
			PersonID:      personID,
			Kind:          catalog.CreditCast,
			CharacterName: member.Character,
			CastOrder:     member.Order,
		})
	}
	for _, member := range payload.Crew {
		personID, err := e.resolvePerson(ctx, member.PersonID, member.Name)
		if err != nil {
			return nil, err
		}
		credits = append(credits, catalog.Credit{
			PersonID:   personID,
			Kind:       catalog.CreditCrew,
			Job:        member.Job,
			Department: member.Department,
		})
	}
	return credits, nil
}

// resolvePerson maps a provider person id to a catalog row, creating a stub
// record on first sight so credits never dangle. Stubs surface in the next
// people gap scan and get enriched in turn.
func (e *Enricher) resolvePerson(ctx context.Context, tmdbID int64, name string) (int64, error) {
	p, err := e.catalog.FindPersonByTMDBID(ctx, tmdbID)
	if err == nil {
		return p.ID, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return 0, services.Wrap(services.ErrTransient, "enricher", "resolve person", "", err)
	}
	id, err := e.catalog.InsertPerson(ctx, &catalog.Person{
		TMDBID:          tmdbID,
		Name:            name,
		EnrichmentCycle: -1,
	})
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "enricher", "insert person stub", "", err)
	}
	return id, nil
}

func applyContentDetails(c *catalog.Content, details *ContentDetails) {
	if title := details.DisplayTitle(); title != "" {
		c.Title = title
	}
	c.IMDBID = details.IMDBID
	c.Overview = details.Overview
	c.Tagline = details.Tagline
	c.ReleaseDate = details.Released()
	c.RuntimeMinutes = details.Runtime
	c.NumberOfSeasons = details.NumberOfSeasons
	c.NumberOfEpisodes = details.NumberOfEpisodes
	c.TMDBStatus = details.Status
	c.OriginalLanguage = details.OriginalLanguage
	c.VoteAverage = details.VoteAverage
	c.VoteCount = details.VoteCount
	c.Popularity = details.Popularity
	c.PosterPath = details.PosterPath
	c.BackdropPath = details.BackdropPath
	if len(details.Genres) > 0 {
		names := make([]string, 0, len(details.Genres))
		for _, genre := range details.Genres {
			names = append(names, genre.Name)
		}
		if encoded, err := json.Marshal(names); err == nil {
			c.GenresJSON = string(encoded)
		}
	}
}

func applyPersonDetails(p *catalog.Person, details *PersonDetails) {
	if details.Name != "" {
		p.Name = details.Name
	}
	p.Biography = details.Biography
	p.Birthday = details.Birthday
	p.Deathday = details.Deathday
	p.PlaceOfBirth = details.PlaceOfBirth
	p.Gender = details.Gender
	p.ProfilePath = details.ProfilePath
	p.KnownForDepartment = details.KnownForDepartment
	p.Popularity = details.Popularity
}

// DryRun is an Adapter that verifies the entity exists and logs what would be
// enriched without writing anything.
type DryRun struct {
	catalog *catalog.Store
	logger  *slog.Logger
}

// NewDryRun builds the no-write adapter used when DRY_RUN is set.
func NewDryRun(catalogStore *catalog.Store, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DryRun{
		catalog: catalogStore,
		logger:  logging.NewComponentLogger(logger, "enricher-dryrun"),
	}
}

// Enrich checks existence and logs; the catalog is never written.
func (d *DryRun) Enrich(ctx context.Context, entityID int64, queueType queue.QueueType) error {
	switch queueType {
	case queue.QueueTypePeople:
		if _, err := d.catalog.GetPerson(ctx, entityID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return services.Wrap(services.ErrNotFound, "enricher-dryrun", "load person",
					fmt.Sprintf("person %d", entityID), nil)
			}
			return err
		}
	default:
		if _, err := d.catalog.GetContent(ctx, entityID); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return services.Wrap(services.ErrNotFound, "enricher-dryrun", "load content",
					fmt.Sprintf("content %d", entityID), nil)
			}
			return err
		}
	}
	d.logger.Info("dry run: would enrich",
		logging.Int64(logging.FieldEntityID, entityID),
		logging.String(logging.FieldQueueType, string(queueType)))
	return nil
}
