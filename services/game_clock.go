package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nfl-pickem/models"
)

// EngineConfig tunes edit windows, lifecycle heuristics and scoring concurrency
type EngineConfig struct {
	LockoutBuffer    time.Duration // edits close this long before kickoff
	StartGrace       time.Duration // a game displays as started this long after kickoff
	CompletionWindow time.Duration // heuristic: a game without status is final this long after kickoff
	ResolveInterval  time.Duration
	ScoringWorkers   int
}

// DefaultEngineConfig returns the standard engine settings
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LockoutBuffer:    10 * time.Minute,
		StartGrace:       15 * time.Minute,
		CompletionWindow: 6 * time.Hour,
		ResolveInterval:  5 * time.Minute,
		ScoringWorkers:   8,
	}
}

// Classification is the derived timing view of a game
type Classification struct {
	Kickoff      time.Time
	KickoffKnown bool
	State        models.GameState
}

// GameClock turns raw schedule fields into an absolute kickoff and a lifecycle
// state. It never caches: every call reads the injected clock.
type GameClock struct {
	now              func() time.Time
	completionWindow time.Duration
}

// NewGameClock creates a clock. A nil now uses time.Now.
func NewGameClock(now func() time.Time, completionWindow time.Duration) *GameClock {
	if now == nil {
		now = time.Now
	}
	if completionWindow <= 0 {
		completionWindow = DefaultEngineConfig().CompletionWindow
	}
	return &GameClock{now: now, completionWindow: completionWindow}
}

// Now returns the current instant according to the clock
func (c *GameClock) Now() time.Time {
	return c.now()
}

// Kickoff returns the game's kickoff instant
func (c *GameClock) Kickoff(game *models.Game) (time.Time, error) {
	kickoff, err := ParseKickoff(game.ScheduledDate, game.ScheduledTime)
	if err != nil {
		return time.Time{}, &models.UpstreamDataError{Source: "schedule", GameID: game.ID, Err: err}
	}
	return kickoff, nil
}

// Classify derives kickoff and lifecycle state at the current instant
func (c *GameClock) Classify(game *models.Game) Classification {
	return c.classifyAt(game, c.now())
}

// State is shorthand for Classify(game).State
func (c *GameClock) State(game *models.Game) models.GameState {
	return c.Classify(game).State
}

func (c *GameClock) classifyAt(game *models.Game, now time.Time) Classification {
	kickoff, err := ParseKickoff(game.ScheduledDate, game.ScheduledTime)
	result := Classification{Kickoff: kickoff, KickoffKnown: err == nil}

	if state, ok := StateFromStatus(game.RawStatus); ok {
		result.State = state
		return result
	}

	switch {
	case !result.KickoffKnown:
		result.State = models.GameStateScheduled
	case now.After(kickoff.Add(c.completionWindow)):
		result.State = models.GameStateCompleted
	case now.After(kickoff):
		result.State = models.GameStateInProgress
	default:
		result.State = models.GameStateScheduled
	}
	return result
}

var (
	completedMarkers  = []string{"final", "completed", "finished"}
	inProgressMarkers = []string{"in_progress", "live", "active"}
	scheduledMarkers  = []string{"scheduled", "upcoming", "pre"}
)

// StateFromStatus maps an upstream status string to a state. ok is false when
// the status is empty or unrecognized and the caller should fall back to time.
func StateFromStatus(raw string) (models.GameState, bool) {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return "", false
	}
	if containsAny(status, completedMarkers) {
		return models.GameStateCompleted, true
	}
	if containsAny(status, inProgressMarkers) {
		return models.GameStateInProgress, true
	}
	if containsAny(status, scheduledMarkers) {
		return models.GameStateScheduled, true
	}
	return "", false
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

var timeTokenPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s*(?:m\.?)?(?:\s*e[sd]?t)?\s*$`)

// ParseTimeToken parses "1:00p", "1 pm", "01:05 PM" and similar into a 24h clock.
func ParseTimeToken(token string) (hour, minute int, err error) {
	match := timeTokenPattern.FindStringSubmatch(token)
	if match == nil {
		return 0, 0, fmt.Errorf("unrecognized time %q", token)
	}

	hour, _ = strconv.Atoi(match[1])
	if match[2] != "" {
		minute, _ = strconv.Atoi(match[2])
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", token)
	}

	pm := strings.EqualFold(match[3], "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour, minute, nil
}

// ParseKickoff combines a YYYYMMDD date and a free-form Eastern time into an
// absolute instant. An unparseable time falls back to noon.
func ParseKickoff(dateToken, timeToken string) (time.Time, error) {
	date, err := parseDateToken(dateToken)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, err := ParseTimeToken(timeToken)
	if err != nil {
		hour, minute = 12, 0
	}

	wall := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
	return wall.Add(-EasternOffset(wall)).UTC(), nil
}

func parseDateToken(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if date, err := time.Parse(layout, token); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", token)
}

// EasternOffset returns the UTC offset in effect for an Eastern wall-clock time
// (expressed in a UTC-located time.Time): -4h from the second Sunday of March
// 00:00 through the day before the first Sunday of November, -5h otherwise.
func EasternOffset(wall time.Time) time.Duration {
	year := wall.Year()
	dstStart := time.Date(year, time.March, nthSunday(year, time.March, 2), 0, 0, 0, 0, time.UTC)
	dstEnd := time.Date(year, time.November, nthSunday(year, time.November, 1), 0, 0, 0, 0, time.UTC)

	if !wall.Before(dstStart) && wall.Before(dstEnd) {
		return -4 * time.Hour
	}
	return -5 * time.Hour
}

func nthSunday(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	firstSunday := 1 + (7-int(first))%7
	return firstSunday + 7*(n-1)
}
