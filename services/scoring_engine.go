package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/metrics"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
)

// ScoringEngine converts resolved outcomes and special picks into per-game
// ScoringRecords. Every finalized pick gets one record per game of its week,
// so credit that moves after a correction overwrites the old record.
type ScoringEngine struct {
	picks     PickRepository
	games     GameRepository
	records   ScoringRepository
	clock     *GameClock
	publisher Publisher
	table     FantasyTable
	workers   int
	logger    *logging.Logger
}

// NewScoringEngine creates a scoring engine using the default fantasy table
func NewScoringEngine(picks PickRepository, games GameRepository, records ScoringRepository, clock *GameClock, publisher Publisher, workers int) *ScoringEngine {
	if workers < 1 {
		workers = 1
	}
	return &ScoringEngine{
		picks:     picks,
		games:     games,
		records:   records,
		clock:     clock,
		publisher: publisher,
		table:     DefaultFantasyTable(),
		workers:   workers,
		logger:    logging.WithPrefix("ScoringEngine"),
	}
}

// weekContext is what every record of a week needs to agree on
type weekContext struct {
	games  []*models.Game // kickoff order, unknown kickoffs last, then game ID
	anchor string         // game credited with the prop bet
}

func (e *ScoringEngine) newWeekContext(games []*models.Game) weekContext {
	type keyed struct {
		game    *models.Game
		kickoff time.Time
		known   bool
	}
	ordered := make([]keyed, 0, len(games))
	for _, game := range games {
		c := e.clock.Classify(game)
		ordered = append(ordered, keyed{game: game, kickoff: c.Kickoff, known: c.KickoffKnown})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.known != b.known {
			return a.known
		}
		if a.known && !a.kickoff.Equal(b.kickoff) {
			return a.kickoff.Before(b.kickoff)
		}
		return a.game.ID < b.game.ID
	})

	wc := weekContext{games: make([]*models.Game, len(ordered))}
	for i, k := range ordered {
		wc.games[i] = k.game
		if k.known {
			wc.anchor = k.game.ID
		}
	}
	if wc.anchor == "" && len(wc.games) > 0 {
		wc.anchor = wc.games[len(wc.games)-1].ID
	}
	return wc
}

// touchdownGame is the first game in which the player scored a touchdown
func (wc weekContext) touchdownGame(playerID string) string {
	for _, game := range wc.games {
		if game.ScoredTouchdown(playerID) {
			return game.ID
		}
	}
	return ""
}

func (e *ScoringEngine) scoreGame(pick *models.Pick, game *models.Game, wc weekContext, tdGame string) *models.ScoringRecord {
	record := &models.ScoringRecord{
		UserID:    pick.UserID,
		GameID:    game.ID,
		Season:    pick.Season,
		Week:      pick.Week,
		HomeTeam:  game.HomeTeam,
		AwayTeam:  game.AwayTeam,
		HomeScore: game.HomeScore,
		AwayScore: game.AwayScore,
		IsFinal:   e.clock.State(game) == models.GameStateCompleted,
	}

	if pick.OutcomeFor(game.ID) == models.OutcomeWon {
		record.SpreadPick = models.CategoryScore{Correct: true, Points: models.SpreadPickPoints}
		if lockGame, ok := pick.LockGameID(); ok && lockGame == game.ID {
			record.LockPick = models.CategoryScore{Correct: true, Points: models.LockBonusPoints}
		}
	}
	if tdGame != "" && tdGame == game.ID {
		record.TouchdownScorer = models.CategoryScore{Correct: true, Points: models.TouchdownScorerPoints}
	}
	if game.ID == wc.anchor && pick.PropBet.Won() {
		record.PropBet = models.CategoryScore{Correct: true, Points: models.PropBetPoints}
	}
	if pick.TouchdownScorer != "" {
		record.FantasyPoints = e.table.Points(game.StatLine(pick.TouchdownScorer))
	}

	record.Recalculate()
	return record
}

func (e *ScoringEngine) scorePick(pick *models.Pick, wc weekContext) []*models.ScoringRecord {
	tdGame := ""
	if pick.TouchdownScorer != "" {
		tdGame = wc.touchdownGame(pick.TouchdownScorer)
	}
	records := make([]*models.ScoringRecord, 0, len(wc.games))
	for _, game := range wc.games {
		records = append(records, e.scoreGame(pick, game, wc, tdGame))
	}
	return records
}

// ScoreUser computes and stores one user's record for one game
func (e *ScoringEngine) ScoreUser(ctx context.Context, userID, season, week int, gameID string) (*models.ScoringRecord, error) {
	pick, err := e.picks.FindByUserAndWeek(ctx, userID, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load pick for user %d week %d", userID, week)
	}
	if pick == nil || !pick.IsFinalized {
		return nil, models.ErrNotFound
	}
	games, err := e.games.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load games for week %d", week)
	}

	wc := e.newWeekContext(games)
	for _, game := range wc.games {
		if game.ID != gameID {
			continue
		}
		record := e.scoreGame(pick, game, wc, wc.touchdownGame(pick.TouchdownScorer))
		if err := e.records.UpsertRecords(ctx, []*models.ScoringRecord{record}); err != nil {
			return nil, errors.Wrap(err, "store scoring record")
		}
		metrics.ScoringRecordsWritten.Inc()
		return record, nil
	}
	return nil, models.ErrNotFound
}

// ScoreWeek scores every finalized pick of the week and upserts the records.
// Running it twice on unchanged input stores identical records.
func (e *ScoringEngine) ScoreWeek(ctx context.Context, season, week int) (records []*models.ScoringRecord, err error) {
	ctx, span := startSpan(ctx, "services.ScoringEngine.ScoreWeek", weekAttrs(season, week)...)
	defer func() { endSpan(span, err) }()

	games, err := e.games.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load games for week %d", week)
	}
	picks, err := e.picks.FindFinalizedByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load finalized picks for week %d", week)
	}
	previous, err := e.records.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrap(err, "load previous scoring records")
	}
	if err := e.pruneOrphans(ctx, previous, picks, season, week); err != nil {
		return nil, err
	}
	if len(games) == 0 || len(picks) == 0 {
		return []*models.ScoringRecord{}, nil
	}

	wc := e.newWeekContext(games)
	records, err = e.scoreAll(picks, wc)
	if err != nil {
		return nil, err
	}

	if err := e.records.UpsertRecords(ctx, records); err != nil {
		return nil, errors.Wrap(err, "store scoring records")
	}
	metrics.ScoringRecordsWritten.Add(float64(len(records)))
	span.SetAttributes(attribute.Int("records", len(records)))

	changed := changedUsers(previous, records)
	for _, userID := range changed {
		e.publisher.Publish(models.NewPickEvent(models.EventPickUpdate, userID, week))
	}

	e.logger.Infof("Scored week %d/%d: %d picks, %d records, %d users changed", season, week, len(picks), len(records), len(changed))
	return records, nil
}

// pruneOrphans removes records of users who no longer have a finalized pick for the week
func (e *ScoringEngine) pruneOrphans(ctx context.Context, previous []*models.ScoringRecord, picks []*models.Pick, season, week int) error {
	finalized := make(map[int]bool, len(picks))
	for _, pick := range picks {
		finalized[pick.UserID] = true
	}
	pruned := make(map[int]bool)
	for _, record := range previous {
		if finalized[record.UserID] || pruned[record.UserID] {
			continue
		}
		if err := e.records.DeleteByUserWeek(ctx, record.UserID, season, week); err != nil {
			return errors.Wrap(err, "remove orphaned scoring records")
		}
		pruned[record.UserID] = true
		e.publisher.Publish(models.NewPickEvent(models.EventPickUpdate, record.UserID, week))
		e.logger.Infof("Removed scoring records for user %d week %d/%d without a finalized pick", record.UserID, season, week)
	}
	return nil
}

// scoreAll fans the picks out over a bounded worker pool
func (e *ScoringEngine) scoreAll(picks []*models.Pick, wc weekContext) ([]*models.ScoringRecord, error) {
	pool, err := ants.NewPool(e.workers)
	if err != nil {
		return nil, errors.Wrap(err, "create scoring pool")
	}
	defer pool.Release()

	results := make([][]*models.ScoringRecord, len(picks))
	var wg sync.WaitGroup
	for i, pick := range picks {
		i, pick := i, pick
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = e.scorePick(pick, wc)
		}); err != nil {
			wg.Done()
			e.logger.Warnf("Scoring pool rejected %s, scoring inline: %v", pick.Key(), err)
			results[i] = e.scorePick(pick, wc)
		}
	}
	wg.Wait()

	var records []*models.ScoringRecord
	for _, batch := range results {
		records = append(records, batch...)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].GameID < records[j].GameID
	})
	return records, nil
}

// changedUsers lists users whose stored records differ from the new ones
func changedUsers(previous, current []*models.ScoringRecord) []int {
	type key struct {
		userID int
		gameID string
	}
	old := make(map[key]*models.ScoringRecord, len(previous))
	for _, record := range previous {
		old[key{record.UserID, record.GameID}] = record
	}

	seen := make(map[int]bool)
	var users []int
	for _, record := range current {
		before, ok := old[key{record.UserID, record.GameID}]
		if ok && before.TotalPoints == record.TotalPoints &&
			before.FantasyPoints == record.FantasyPoints && before.IsFinal == record.IsFinal {
			continue
		}
		if !seen[record.UserID] {
			seen[record.UserID] = true
			users = append(users, record.UserID)
		}
	}
	return users
}
