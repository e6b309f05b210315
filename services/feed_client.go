package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/metrics"
	"nfl-pickem/models"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

// Feed document formats
const (
	FeedFormatNative = "native"
	FeedFormatESPN   = "espn"
)

// FeedConfig points the client at the schedule/result feed
type FeedConfig struct {
	BaseURL    string
	Format     string
	Timeout    time.Duration
	MaxRetries int
}

// feedFormat knows a feed's URL layout and document shape
type feedFormat interface {
	seasonPath(season int) string
	weekPath(season, week int) string
	decode(body []byte) ([]*models.Game, error)
}

// feedResponse is the native feed's games document
type feedResponse struct {
	Games []*models.Game `json:"games"`
}

type nativeFormat struct{}

func (nativeFormat) seasonPath(season int) string {
	return fmt.Sprintf("/seasons/%d/games", season)
}

func (nativeFormat) weekPath(season, week int) string {
	return fmt.Sprintf("/seasons/%d/weeks/%d/games", season, week)
}

func (nativeFormat) decode(body []byte) ([]*models.Game, error) {
	var decoded feedResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, errors.Wrap(err, "decode games")
	}
	return decoded.Games, nil
}

// FeedClient fetches games from the schedule/result feed. Every call is
// bounded by the client timeout and retried with exponential backoff;
// concurrent fetches of the same resource share one request.
type FeedClient struct {
	client     *http.Client
	baseURL    string
	format     feedFormat
	maxRetries uint
	group      singleflight.Group
	logger     *logging.Logger

	// initialInterval is the first backoff delay, shortened in tests
	initialInterval time.Duration
}

// NewFeedClient creates a new feed client
func NewFeedClient(config FeedConfig) *FeedClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	var format feedFormat = nativeFormat{}
	if strings.EqualFold(config.Format, FeedFormatESPN) {
		format = espnFormat{}
	}
	return &FeedClient{
		client:          &http.Client{Timeout: config.Timeout},
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		format:          format,
		maxRetries:      uint(config.MaxRetries),
		logger:          logging.WithPrefix("FeedClient"),
		initialInterval: 500 * time.Millisecond,
	}
}

// FetchSeason returns every game the feed knows for the season
func (c *FeedClient) FetchSeason(ctx context.Context, season int) ([]*models.Game, error) {
	return c.fetch(ctx, c.format.seasonPath(season), season, 0)
}

// FetchWeek returns the feed's games for one week
func (c *FeedClient) FetchWeek(ctx context.Context, season, week int) ([]*models.Game, error) {
	return c.fetch(ctx, c.format.weekPath(season, week), season, week)
}

func (c *FeedClient) fetch(ctx context.Context, path string, season, week int) ([]*models.Game, error) {
	result, err, shared := c.group.Do(path, func() (interface{}, error) {
		games, err := c.fetchWithRetry(ctx, path)
		if err != nil {
			return nil, err
		}
		return c.validate(games, season, week), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debugf("Shared in-flight fetch of %s", path)
	}
	return copyGames(result.([]*models.Game)), nil
}

// copyGames gives each caller of a shared fetch its own games
func copyGames(games []*models.Game) []*models.Game {
	copied := make([]*models.Game, len(games))
	for i, game := range games {
		clone := *game
		clone.ScoringPlays = append([]models.ScoringPlay(nil), game.ScoringPlays...)
		clone.PlayerStats = append([]models.PlayerStatLine(nil), game.PlayerStats...)
		copied[i] = &clone
	}
	return copied
}

func (c *FeedClient) fetchWithRetry(ctx context.Context, path string) ([]*models.Game, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval

	attempt := 0
	games, err := backoff.Retry(ctx, func() ([]*models.Game, error) {
		attempt++
		games, err := c.get(ctx, path)
		if err != nil {
			c.logger.Warnf("Feed request %s failed (attempt %d/%d): %v", path, attempt, c.maxRetries, err)
		}
		return games, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(c.maxRetries))
	if err != nil {
		metrics.FeedRequests.WithLabelValues("error").Inc()
		var upstream *models.UpstreamDataError
		if errors.As(err, &upstream) {
			return nil, upstream
		}
		return nil, &models.UpstreamDataError{Source: "result feed", Err: err}
	}
	metrics.FeedRequests.WithLabelValues("ok").Inc()
	return games, nil
}

// get performs one request. Client errors and malformed bodies are permanent.
func (c *FeedClient) get(ctx context.Context, path string) ([]*models.Game, error) {
	start := time.Now()
	defer func() { metrics.FeedDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "build feed request"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "feed request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read feed response")
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Newf("feed returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(&models.UpstreamDataError{
			Source: "result feed",
			Err:    errors.Newf("feed returned status %d for %s", resp.StatusCode, path),
		})
	}

	games, err := c.format.decode(body)
	if err != nil {
		return nil, backoff.Permanent(&models.UpstreamDataError{Source: "result feed", Err: err})
	}
	return games, nil
}

// validate drops games the engine cannot use and fills in season/week when
// the feed omits them
func (c *FeedClient) validate(games []*models.Game, season, week int) []*models.Game {
	valid := make([]*models.Game, 0, len(games))
	for _, game := range games {
		if game == nil {
			continue
		}
		game.HomeTeam = models.NormalizeTeamCode(game.HomeTeam)
		game.AwayTeam = models.NormalizeTeamCode(game.AwayTeam)
		if game.ID == "" || game.HomeTeam == "" || game.AwayTeam == "" || game.HomeTeam == game.AwayTeam {
			c.logger.Warnf("Dropping malformed game from feed: %v",
				&models.UpstreamDataError{Source: "result feed", GameID: game.ID, Err: errors.New("missing or duplicate teams")})
			continue
		}
		if game.Season == 0 {
			game.Season = season
		}
		if game.Week == 0 && week > 0 {
			game.Week = week
		}
		if game.Season != season || (week > 0 && game.Week != week) || game.Week == 0 {
			c.logger.Warnf("Dropping game %s: feed placed it in %d/%d", game.ID, game.Season, game.Week)
			continue
		}
		for _, code := range []string{game.HomeTeam, game.AwayTeam} {
			if _, known := models.LookupTeam(code); !known {
				c.logger.Warnf("Game %s has unrecognized team code %q", game.ID, code)
			}
		}
		if game.SpreadCoverageWinner != "" {
			game.SpreadCoverageWinner = models.NormalizeTeamCode(game.SpreadCoverageWinner)
		}
		for i := range game.ScoringPlays {
			game.ScoringPlays[i].Team = models.NormalizeTeamCode(game.ScoringPlays[i].Team)
		}
		valid = append(valid, game)
	}
	return valid
}
