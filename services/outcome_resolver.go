package services

import (
	"context"
	"sync"

	"nfl-pickem/logging"
	"nfl-pickem/metrics"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"
)

// ResolveReport summarizes one resolution pass over a week
type ResolveReport struct {
	Season          int `json:"season"`
	Week            int `json:"week"`
	GamesCompleted  int `json:"gamesCompleted"`
	GamesSkipped    int `json:"gamesSkipped"`
	PicksScanned    int `json:"picksScanned"`
	PicksChanged    int `json:"picksChanged"`
	OutcomesChanged int `json:"outcomesChanged"`
	Corrections     int `json:"corrections"`
	Failures        int `json:"failures"`
}

// OutcomeResolver turns completed games into won/lost outcomes on finalized picks
type OutcomeResolver struct {
	picks     PickRepository
	games     GameRepository
	clock     *GameClock
	publisher Publisher
	workers   int
	logger    *logging.Logger
}

// NewOutcomeResolver creates a resolver writing through picks
func NewOutcomeResolver(picks PickRepository, games GameRepository, clock *GameClock, publisher Publisher, workers int) *OutcomeResolver {
	if workers < 1 {
		workers = 1
	}
	return &OutcomeResolver{
		picks:     picks,
		games:     games,
		clock:     clock,
		publisher: publisher,
		workers:   workers,
		logger:    logging.WithPrefix("OutcomeResolver"),
	}
}

// ResolveWeek runs one pass over the week's finalized picks. It is safe to
// re-run; a pass over unchanged input writes nothing. One pick failing to
// persist does not stop the others.
func (r *OutcomeResolver) ResolveWeek(ctx context.Context, season, week int) (report ResolveReport, err error) {
	ctx, span := startSpan(ctx, "services.OutcomeResolver.ResolveWeek", weekAttrs(season, week)...)
	defer func() { endSpan(span, err) }()

	report = ResolveReport{Season: season, Week: week}
	defer func() {
		result := "ok"
		switch {
		case err != nil:
			result = "error"
		case report.Failures > 0:
			result = "partial"
		}
		metrics.ResolutionPasses.WithLabelValues(result).Inc()
	}()

	games, err := r.games.FindByWeek(ctx, season, week)
	if err != nil {
		return report, errors.Wrapf(err, "load games for week %d", week)
	}
	picks, err := r.picks.FindFinalizedByWeek(ctx, season, week)
	if err != nil {
		return report, errors.Wrapf(err, "load finalized picks for week %d", week)
	}

	winners := r.spreadWinners(games, &report)
	report.PicksScanned = len(picks)
	if len(winners) == 0 || len(picks) == 0 {
		r.logger.Debugf("Week %d/%d: nothing to resolve (%d completed games, %d picks)", season, week, len(winners), len(picks))
		return report, nil
	}

	var mu sync.Mutex
	p := pool.New().WithErrors().WithMaxGoroutines(r.workers)
	for _, pick := range picks {
		pick := pick
		p.Go(func() error {
			outcomes, changed, corrections := r.resolvePick(pick, winners)
			if changed == 0 {
				return nil
			}
			if err := r.picks.UpdateOutcomes(ctx, pick.UserID, pick.Season, pick.Week, outcomes); err != nil {
				mu.Lock()
				report.Failures++
				mu.Unlock()
				return errors.Wrapf(err, "update outcomes for %s", pick.Key())
			}

			mu.Lock()
			report.PicksChanged++
			report.OutcomesChanged += changed
			report.Corrections += corrections
			mu.Unlock()

			metrics.OutcomesChanged.Add(float64(changed))
			r.publisher.Publish(models.NewPickEvent(models.EventPickUpdate, pick.UserID, pick.Week))
			return nil
		})
	}
	if poolErr := p.Wait(); poolErr != nil {
		r.logger.Errorf("Week %d/%d: %d picks failed to persist: %v", season, week, report.Failures, poolErr)
	}

	r.logger.Infof("Resolved week %d/%d: %d completed games, %d/%d picks changed, %d outcomes (%d corrections, %d failures)",
		season, week, report.GamesCompleted, report.PicksChanged, report.PicksScanned,
		report.OutcomesChanged, report.Corrections, report.Failures)
	return report, nil
}

// spreadWinners maps each completed game with a decidable result to its covering team
func (r *OutcomeResolver) spreadWinners(games []*models.Game, report *ResolveReport) map[string]string {
	winners := make(map[string]string)
	for _, game := range games {
		if r.clock.State(game) != models.GameStateCompleted {
			continue
		}
		winner, ok := game.SpreadWinner()
		if !ok {
			report.GamesSkipped++
			skipped := &models.UpstreamDataError{
				Source: "result feed",
				GameID: game.ID,
				Err:    errors.New("no spread result (push or missing scores)"),
			}
			r.logger.Warnf("Skipping %s: %v", game.Matchup(), skipped)
			continue
		}
		report.GamesCompleted++
		winners[game.ID] = winner
	}
	return winners
}

// resolvePick computes the pick's next outcomes map. Games that are not
// decided keep whatever was stored; a decided game whose stored outcome
// differs is an upstream correction.
func (r *OutcomeResolver) resolvePick(pick *models.Pick, winners map[string]string) (map[string]models.Outcome, int, int) {
	outcomes := make(map[string]models.Outcome, len(pick.Selections))
	for gameID, outcome := range pick.Outcomes {
		outcomes[gameID] = outcome
	}

	var changed, corrections int
	for gameID, team := range pick.Selections {
		winner, decided := winners[gameID]
		if !decided {
			continue
		}
		next := models.OutcomeLost
		if team == winner {
			next = models.OutcomeWon
		}

		previous, had := outcomes[gameID]
		if had && previous == next {
			continue
		}
		if had && previous != models.OutcomeUnresolved {
			corrections++
			r.logger.Warnf("Correcting %s game %s: %s -> %s", pick.Key(), gameID, previous, next)
		}
		outcomes[gameID] = next
		changed++
	}
	return outcomes, changed, corrections
}
