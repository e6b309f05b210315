package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weekTwoFeed = `{"games":[
 {"gameId":"g1","season":2025,"week":2,"homeTeam":"KC","awayTeam":"BUF","scheduledDate":"20250914","scheduledTime":"1:00p",
  "status":"final","homeScore":27,"awayScore":20,"spread":-3,
  "scoringPlays":[{"playerId":"kelce","team":"KC","type":"touchdown"}]},
 {"gameId":"g2","homeTeam":"dal","awayTeam":"WSH","scheduledDate":"20250915","scheduledTime":"8:15 pm"},
 {"gameId":"bad","season":2025,"week":2,"homeTeam":"SF","awayTeam":"SF"},
 {"gameId":"g9","season":2025,"week":9,"homeTeam":"SEA","awayTeam":"LAR"}
]}`

func testFeed(t *testing.T, handler http.HandlerFunc) *FeedClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewFeedClient(FeedConfig{BaseURL: server.URL + "/", Timeout: time.Second, MaxRetries: 3})
	client.initialInterval = time.Millisecond
	return client
}

func TestFetchWeekDecodesAndValidates(t *testing.T) {
	client := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/seasons/2025/weeks/2/games", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(weekTwoFeed))
	})

	games, err := client.FetchWeek(context.Background(), 2025, 2)
	require.NoError(t, err)
	require.Len(t, games, 2)

	g1 := games[0]
	assert.Equal(t, "g1", g1.ID)
	require.NotNil(t, g1.HomeScore)
	assert.Equal(t, 27, *g1.HomeScore)
	assert.Equal(t, -3.0, *g1.Spread)
	assert.True(t, g1.ScoredTouchdown("kelce"))

	g2 := games[1]
	assert.Equal(t, 2025, g2.Season, "missing season filled from the request")
	assert.Equal(t, 2, g2.Week)
	assert.Nil(t, g2.HomeScore)
	assert.Equal(t, "DAL", g2.HomeTeam)
	assert.Equal(t, "WAS", g2.AwayTeam, "feed aliases are normalized")
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := testFeed(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(weekTwoFeed))
	})

	games, err := client.FetchWeek(context.Background(), 2025, 2)
	require.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := testFeed(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchSeason(context.Background(), 2025)
	var upstream *models.UpstreamDataError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := testFeed(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchWeek(context.Background(), 2025, 2)
	var upstream *models.UpstreamDataError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMalformedBody(t *testing.T) {
	var calls atomic.Int32
	client := testFeed(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"games":[{`))
	})

	_, err := client.FetchWeek(context.Background(), 2025, 2)
	var upstream *models.UpstreamDataError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchSharesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := testFeed(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(weekTwoFeed))
	})

	results := make([][]*models.Game, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			games, err := client.FetchSeason(context.Background(), 2025)
			assert.NoError(t, err)
			results[i] = games
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, games := range results {
		require.Len(t, games, 2, "season fetch keeps g1 and g9")
		assert.Equal(t, "KC", games[0].HomeTeam)
		assert.Equal(t, "LAR", games[1].AwayTeam)
	}
	assert.NotSame(t, results[0][0], results[1][0], "callers must not share game pointers")
}
