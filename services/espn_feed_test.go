package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const espnWeekTwo = `{"events":[
 {"id":"401772510","date":"2025-09-14T17:00Z","season":{"year":2025,"type":2},"week":{"number":2},
  "status":{"type":{"name":"STATUS_FINAL","state":"post","completed":true}},
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"27","team":{"abbreviation":"KC"}},
    {"homeAway":"away","score":"20","team":{"abbreviation":"BUF"}}],
   "odds":[{"details":"KC -3.5"}]}]},
 {"id":"401772511","date":"2025-09-16T00:15Z","season":{"year":2025,"type":2},"week":{"number":2},
  "status":{"type":{"name":"STATUS_SCHEDULED","state":"pre","completed":false}},
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"0","team":{"abbreviation":"DAL"}},
    {"homeAway":"away","score":"0","team":{"abbreviation":"WSH"}}],
   "odds":[{"details":"WSH -1"}]}]},
 {"id":"401700001","date":"2025-08-10T23:00Z","season":{"year":2025,"type":1},"week":{"number":1},
  "status":{"type":{"name":"STATUS_FINAL","state":"post","completed":true}},
  "competitions":[{"competitors":[
    {"homeAway":"home","score":"10","team":{"abbreviation":"SEA"}},
    {"homeAway":"away","score":"3","team":{"abbreviation":"LV"}}]}]}
]}`

func TestESPNFormatDecode(t *testing.T) {
	games, err := espnFormat{}.decode([]byte(espnWeekTwo))
	require.NoError(t, err)
	require.Len(t, games, 2, "preseason event is skipped")

	final := games[0]
	assert.Equal(t, "401772510", final.ID)
	assert.Equal(t, "KC", final.HomeTeam)
	assert.Equal(t, "BUF", final.AwayTeam)
	assert.Equal(t, "20250914", final.ScheduledDate)
	assert.Equal(t, "1:00 pm", final.ScheduledTime)
	assert.Equal(t, "STATUS_FINAL", final.RawStatus)
	require.NotNil(t, final.HomeScore)
	assert.Equal(t, 27, *final.HomeScore)
	require.NotNil(t, final.Spread)
	assert.Equal(t, -3.5, *final.Spread)

	monday := games[1]
	assert.Equal(t, "WAS", monday.AwayTeam)
	assert.Equal(t, "20250915", monday.ScheduledDate, "late kickoff stays on the Eastern calendar day")
	assert.Equal(t, "8:15 pm", monday.ScheduledTime)
	assert.Nil(t, monday.HomeScore, "scores are ignored before kickoff")
	require.NotNil(t, monday.Spread)
	assert.Equal(t, 1.0, *monday.Spread)

	kickoff, err := ParseKickoff(monday.ScheduledDate, monday.ScheduledTime)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 16, 0, 15, 0, 0, time.UTC), kickoff)
}

func TestParseESPNLine(t *testing.T) {
	tests := []struct {
		details string
		want    float64
		ok      bool
	}{
		{"KC -3.5", -3.5, true},
		{"BUF -7", 7, true},
		{"EVEN", 0, true},
		{"", 0, false},
		{"KC abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseESPNLine(tt.details, "KC")
		assert.Equal(t, tt.ok, ok, tt.details)
		assert.Equal(t, tt.want, got, tt.details)
	}
}

func TestFeedClientESPNFormat(t *testing.T) {
	client := testFeed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025", r.URL.Query().Get("dates"))
		assert.Equal(t, "2", r.URL.Query().Get("week"))
		_, _ = w.Write([]byte(espnWeekTwo))
	})
	client.format = espnFormat{}

	games, err := client.FetchWeek(context.Background(), 2025, 2)
	require.NoError(t, err)
	assert.Len(t, games, 2)
}
