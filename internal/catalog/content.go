package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const contentColumns = "id, tmdb_id, imdb_id, content_type, title, overview, tagline, release_date, runtime_minutes, number_of_seasons, number_of_episodes, tmdb_status, genres_json, original_language, vote_average, vote_count, popularity, poster_path, backdrop_path, status, completeness_score, enriched_at, enrichment_cycle, created_at, updated_at"

func scanContent(scanner interface{ Scan(dest ...any) error }) (*Content, error) {
	var (
		c           Content
		imdbID      sql.NullString
		overview    sql.NullString
		tagline     sql.NullString
		releaseDate sql.NullString
		tmdbStatus  sql.NullString
		genres      sql.NullString
		language    sql.NullString
		poster      sql.NullString
		backdrop    sql.NullString
		enrichedRaw sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&c.ID,
		&c.TMDBID,
		&imdbID,
		&c.ContentType,
		&c.Title,
		&overview,
		&tagline,
		&releaseDate,
		&c.RuntimeMinutes,
		&c.NumberOfSeasons,
		&c.NumberOfEpisodes,
		&tmdbStatus,
		&genres,
		&language,
		&c.VoteAverage,
		&c.VoteCount,
		&c.Popularity,
		&poster,
		&backdrop,
		&c.Status,
		&c.CompletenessScore,
		&enrichedRaw,
		&c.EnrichmentCycle,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	c.IMDBID = imdbID.String
	c.Overview = overview.String
	c.Tagline = tagline.String
	c.ReleaseDate = releaseDate.String
	c.TMDBStatus = tmdbStatus.String
	c.GenresJSON = genres.String
	c.OriginalLanguage = language.String
	c.PosterPath = poster.String
	c.BackdropPath = backdrop.String
	if enrichedRaw.Valid {
		if enriched, err := parseTimeString(enrichedRaw.String); err == nil {
			c.EnrichedAt = &enriched
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		c.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		c.UpdatedAt = updated
	}
	return &c, nil
}

// InsertContent adds a new content item and returns its identifier.
func (s *Store) InsertContent(ctx context.Context, c *Content) (int64, error) {
	if c == nil {
		return 0, errors.New("content is nil")
	}
	now := nowStamp()
	status := c.Status
	if status == "" {
		status = StatusDraft
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO content (
            tmdb_id, imdb_id, content_type, title, overview, tagline, release_date,
            runtime_minutes, number_of_seasons, number_of_episodes, tmdb_status,
            genres_json, original_language, vote_average, vote_count, popularity,
            poster_path, backdrop_path, status, completeness_score,
            enrichment_cycle, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TMDBID,
		nullableString(c.IMDBID),
		c.ContentType,
		c.Title,
		nullableString(c.Overview),
		nullableString(c.Tagline),
		nullableString(c.ReleaseDate),
		c.RuntimeMinutes,
		c.NumberOfSeasons,
		c.NumberOfEpisodes,
		nullableString(c.TMDBStatus),
		nullableString(c.GenresJSON),
		nullableString(c.OriginalLanguage),
		c.VoteAverage,
		c.VoteCount,
		c.Popularity,
		nullableString(c.PosterPath),
		nullableString(c.BackdropPath),
		status,
		c.CompletenessScore,
		c.EnrichmentCycle,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert content: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetContent fetches a content item by identifier.
func (s *Store) GetContent(ctx context.Context, id int64) (*Content, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = ?`, id)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return c, nil
}

// FindContentByTMDBID resolves a provider identifier to a catalog row.
func (s *Store) FindContentByTMDBID(ctx context.Context, tmdbID int64, contentType ContentType) (*Content, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+contentColumns+` FROM content WHERE tmdb_id = ? AND content_type = ?`,
		tmdbID,
		contentType,
	)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find content by tmdb id: %w", err)
	}
	return c, nil
}

// ScanContentPage returns a page of content ordered by id, strictly after
// afterID. Exhaustive paging for the gap scanner: call repeatedly until the
// returned page is empty.
func (s *Store) ScanContentPage(ctx context.Context, afterID int64, limit int) ([]*Content, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+contentColumns+` FROM content WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scan content page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page []*Content
	for rows.Next() {
		c, scanErr := scanContent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan content row: %w", scanErr)
		}
		page = append(page, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content page: %w", err)
	}
	return page, nil
}

// CountContent returns the total number of content items.
func (s *Store) CountContent(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return count, nil
}

// ApplyContentEnrichment writes provider-sourced fields back to a content row.
// Publish state, score, and cycle stamps are managed separately.
func (s *Store) ApplyContentEnrichment(ctx context.Context, c *Content) error {
	if c == nil {
		return errors.New("content is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content SET
            imdb_id = ?, title = ?, overview = ?, tagline = ?, release_date = ?,
            runtime_minutes = ?, number_of_seasons = ?, number_of_episodes = ?,
            tmdb_status = ?, genres_json = ?, original_language = ?,
            vote_average = ?, vote_count = ?, popularity = ?,
            poster_path = ?, backdrop_path = ?, updated_at = ?
        WHERE id = ?`,
		nullableString(c.IMDBID),
		c.Title,
		nullableString(c.Overview),
		nullableString(c.Tagline),
		nullableString(c.ReleaseDate),
		c.RuntimeMinutes,
		c.NumberOfSeasons,
		c.NumberOfEpisodes,
		nullableString(c.TMDBStatus),
		nullableString(c.GenresJSON),
		nullableString(c.OriginalLanguage),
		c.VoteAverage,
		c.VoteCount,
		c.Popularity,
		nullableString(c.PosterPath),
		nullableString(c.BackdropPath),
		nowStamp(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("apply content enrichment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("content enrichment rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetContentScore persists the scanner's completeness score for a content item.
func (s *Store) SetContentScore(ctx context.Context, id int64, score int) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE content SET completeness_score = ?, updated_at = ? WHERE id = ?`,
		score,
		nowStamp(),
		id,
	); err != nil {
		return fmt.Errorf("set content score: %w", err)
	}
	return nil
}

// PublishContent promotes a draft item to published. Promotion is
// one-directional; published rows are never touched.
func (s *Store) PublishContent(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusPublished,
		nowStamp(),
		id,
		StatusDraft,
	)
	if err != nil {
		return false, fmt.Errorf("publish content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish rows affected: %w", err)
	}
	return affected > 0, nil
}

// StampContent records that a content item was touched in the given cycle.
func (s *Store) StampContent(ctx context.Context, id int64, cycle int) error {
	now := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE content SET enriched_at = ?, enrichment_cycle = ?, updated_at = ? WHERE id = ?`,
		now,
		cycle,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("stamp content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stamp rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SelectContentDue returns ids of content not yet stamped for the current
// cycle: least recently touched first, never-touched rows ahead of everything,
// popularity breaking ties so high-value items refresh sooner.
func (s *Store) SelectContentDue(ctx context.Context, currentCycle, limit int) ([]int64, error) {
	return s.selectDue(ctx, "content", currentCycle, limit)
}

// CountContentStamped counts content already stamped at or beyond a cycle.
func (s *Store) CountContentStamped(ctx context.Context, cycle int) (int, error) {
	return s.countStamped(ctx, "content", cycle)
}

func (s *Store) selectDue(ctx context.Context, table string, currentCycle, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM `+table+`
        WHERE enrichment_cycle < ?
        ORDER BY (enriched_at IS NOT NULL) ASC, enriched_at ASC, popularity DESC, id ASC
        LIMIT ?`,
		currentCycle,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due ids: %w", err)
	}
	return ids, nil
}

func (s *Store) countStamped(ctx context.Context, table string, cycle int) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM `+table+` WHERE enrichment_cycle >= ?`,
		cycle,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count stamped %s: %w", table, err)
	}
	return count, nil
}
