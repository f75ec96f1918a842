package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const personColumns = "id, tmdb_id, name, biography, birthday, deathday, place_of_birth, gender, profile_path, known_for_department, popularity, wikipedia_extract, enriched_at, enrichment_cycle, created_at, updated_at"

func scanPerson(scanner interface{ Scan(dest ...any) error }) (*Person, error) {
	var (
		p            Person
		biography    sql.NullString
		birthday     sql.NullString
		deathday     sql.NullString
		placeOfBirth sql.NullString
		profile      sql.NullString
		department   sql.NullString
		wikipedia    sql.NullString
		enrichedRaw  sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&p.ID,
		&p.TMDBID,
		&p.Name,
		&biography,
		&birthday,
		&deathday,
		&placeOfBirth,
		&p.Gender,
		&profile,
		&department,
		&p.Popularity,
		&wikipedia,
		&enrichedRaw,
		&p.EnrichmentCycle,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	p.Biography = biography.String
	p.Birthday = birthday.String
	p.Deathday = deathday.String
	p.PlaceOfBirth = placeOfBirth.String
	p.ProfilePath = profile.String
	p.KnownForDepartment = department.String
	p.WikipediaExtract = wikipedia.String
	if enrichedRaw.Valid {
		if enriched, err := parseTimeString(enrichedRaw.String); err == nil {
			p.EnrichedAt = &enriched
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		p.UpdatedAt = updated
	}
	return &p, nil
}

// InsertPerson adds a new person and returns their identifier.
func (s *Store) InsertPerson(ctx context.Context, p *Person) (int64, error) {
	if p == nil {
		return 0, errors.New("person is nil")
	}
	now := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO people (
            tmdb_id, name, biography, birthday, deathday, place_of_birth, gender,
            profile_path, known_for_department, popularity, wikipedia_extract,
            enrichment_cycle, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TMDBID,
		p.Name,
		nullableString(p.Biography),
		nullableString(p.Birthday),
		nullableString(p.Deathday),
		nullableString(p.PlaceOfBirth),
		p.Gender,
		nullableString(p.ProfilePath),
		nullableString(p.KnownForDepartment),
		p.Popularity,
		nullableString(p.WikipediaExtract),
		p.EnrichmentCycle,
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetPerson fetches a person by identifier.
func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// FindPersonByTMDBID resolves a provider identifier to a catalog row.
func (s *Store) FindPersonByTMDBID(ctx context.Context, tmdbID int64) (*Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE tmdb_id = ?`, tmdbID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find person by tmdb id: %w", err)
	}
	return p, nil
}

// ScanPeoplePage returns a page of people ordered by id, strictly after afterID.
func (s *Store) ScanPeoplePage(ctx context.Context, afterID int64, limit int) ([]*Person, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+personColumns+` FROM people WHERE id > ? ORDER BY id ASC LIMIT ?`,
		afterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scan people page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page []*Person
	for rows.Next() {
		p, scanErr := scanPerson(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan person row: %w", scanErr)
		}
		page = append(page, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people page: %w", err)
	}
	return page, nil
}

// CountPeople returns the total number of people.
func (s *Store) CountPeople(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM people`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return count, nil
}

// ApplyPersonEnrichment writes provider-sourced fields back to a person row.
func (s *Store) ApplyPersonEnrichment(ctx context.Context, p *Person) error {
	if p == nil {
		return errors.New("person is nil")
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE people SET
            name = ?, biography = ?, birthday = ?, deathday = ?, place_of_birth = ?,
            gender = ?, profile_path = ?, known_for_department = ?, popularity = ?,
            wikipedia_extract = ?, updated_at = ?
        WHERE id = ?`,
		p.Name,
		nullableString(p.Biography),
		nullableString(p.Birthday),
		nullableString(p.Deathday),
		nullableString(p.PlaceOfBirth),
		p.Gender,
		nullableString(p.ProfilePath),
		nullableString(p.KnownForDepartment),
		p.Popularity,
		nullableString(p.WikipediaExtract),
		nowStamp(),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("apply person enrichment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("person enrichment rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// StampPerson records that a person was touched in the given cycle.
func (s *Store) StampPerson(ctx context.Context, id int64, cycle int) error {
	now := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE people SET enriched_at = ?, enrichment_cycle = ?, updated_at = ? WHERE id = ?`,
		now,
		cycle,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("stamp person: %w", err)
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

// SelectPeopleDue returns ids of people not yet stamped for the current cycle.
func (s *Store) SelectPeopleDue(ctx context.Context, currentCycle, limit int) ([]int64, error) {
	return s.selectDue(ctx, "people", currentCycle, limit)
}

// CountPeopleStamped counts people already stamped at or beyond a cycle.
func (s *Store) CountPeopleStamped(ctx context.Context, cycle int) (int, error) {
	return s.countStamped(ctx, "people", cycle)
}
