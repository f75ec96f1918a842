package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"curator/internal/services"
)

// TMDBClient is a minimal client for the provider endpoints enrichment needs:
// movie/tv details with credits, person details, and the changes feeds. All
// requests share one rate limiter so concurrent callers stay within the
// provider's request budget.
type TMDBClient struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTMDBClient builds a client. requestsPerSecond caps outbound request rate;
// zero or negative falls back to a conservative default.
func NewTMDBClient(baseURL, apiKey, language string, requestsPerSecond float64) *TMDBClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 4
	}
	return &TMDBClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		language:   language,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// ContentDetails is the subset of provider movie/tv fields the catalog stores.
type ContentDetails struct {
	ID               int64   `json:"id"`
	IMDBID           string  `json:"imdb_id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	Tagline          string  `json:"tagline"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	Runtime          int     `json:"runtime"`
	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	Status           string  `json:"status"`
	OriginalLanguage string  `json:"original_language"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	Genres           []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	Credits CreditsPayload `json:"credits"`
}

// DisplayTitle returns the movie title or series name, whichever is set.
func (d ContentDetails) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Released returns the movie release date or series first air date.
func (d ContentDetails) Released() string {
	if d.ReleaseDate != "" {
		return d.ReleaseDate
	}
	return d.FirstAirDate
}

// CreditsPayload is the provider's cast and crew listing.
type CreditsPayload struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember is one provider cast entry.
type CastMember struct {
	PersonID  int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember is one provider crew entry.
type CrewMember struct {
	PersonID   int64  `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// PersonDetails is the subset of provider person fields the catalog stores.
type PersonDetails struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Biography          string  `json:"biography"`
	Birthday           string  `json:"birthday"`
	Deathday           string  `json:"deathday"`
	PlaceOfBirth       string  `json:"place_of_birth"`
	Gender             int     `json:"gender"`
	ProfilePath        string  `json:"profile_path"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

// ChangesPage is one page of the provider's changed-ids feed.
type ChangesPage struct {
	Results []struct {
		ID int64 `json:"id"`
	} `json:"results"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// MovieDetails fetches a movie with credits appended.
func (c *TMDBClient) MovieDetails(ctx context.Context, tmdbID int64) (*ContentDetails, error) {
	var details ContentDetails
	query := url.Values{"append_to_response": {"credits"}}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), query, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// TVDetails fetches a series with credits appended.
func (c *TMDBClient) TVDetails(ctx context.Context, tmdbID int64) (*ContentDetails, error) {
	var details ContentDetails
	query := url.Values{"append_to_response": {"credits"}}
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", tmdbID), query, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// PersonDetails fetches one person.
func (c *TMDBClient) PersonDetails(ctx context.Context, tmdbID int64) (*PersonDetails, error) {
	var details PersonDetails
	if err := c.get(ctx, fmt.Sprintf("/person/%d", tmdbID), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// Changes fetches one page of the changed-ids feed for a media kind
// ("movie", "tv", or "person").
func (c *TMDBClient) Changes(ctx context.Context, kind string, page int) (*ChangesPage, error) {
	var changes ChangesPage
	query := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.get(ctx, fmt.Sprintf("/%s/changes", kind), query, &changes); err != nil {
		return nil, err
	}
	return &changes, nil
}

func (c *TMDBClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "rate wait", "limiter interrupted", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	if c.language != "" {
		query.Set("language", c.language)
	}

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "tmdb", "build request", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "request", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "tmdb", "request", path, nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "tmdb", "request", path, nil)
	case resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "tmdb", "request",
			fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	default:
		return services.Wrap(services.ErrValidation, "tmdb", "request",
			fmt.Sprintf("%s returned %d", path, resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "tmdb", "decode", path, err)
	}
	return nil
}
