package services

import (
	"context"
	"sort"

	"nfl-pickem/logging"
	"nfl-pickem/metrics"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
)

// PickService owns pick submission. It gates writes on the edit windows,
// keeps frozen selections intact and relies on the repository for the
// atomic lock-of-week and touchdown scorer claims.
type PickService struct {
	picks     PickRepository
	games     GameRepository
	policy    *EditWindowPolicy
	publisher Publisher
	logger    *logging.Logger
}

// NewPickService creates a new pick service
func NewPickService(picks PickRepository, games GameRepository, policy *EditWindowPolicy, publisher Publisher) *PickService {
	return &PickService{
		picks:     picks,
		games:     games,
		policy:    policy,
		publisher: publisher,
		logger:    logging.WithPrefix("PickService"),
	}
}

// Get returns the user's pick for a week, or nil when there is none
func (s *PickService) Get(ctx context.Context, userID, season, week int) (*models.Pick, error) {
	pick, err := s.picks.FindByUserAndWeek(ctx, userID, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "get pick for user %d week %d", userID, week)
	}
	return pick, nil
}

// GetAllFinalized returns every finalized pick for the week
func (s *PickService) GetAllFinalized(ctx context.Context, season, week int) ([]*models.Pick, error) {
	picks, err := s.picks.FindFinalizedByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "list finalized picks for week %d", week)
	}
	return picks, nil
}

// RevealFinalized returns the week's finalized picks to a viewer who has
// finalized their own. Admins always see them.
func (s *PickService) RevealFinalized(ctx context.Context, viewerID int, isAdmin bool, season, week int) ([]*models.Pick, error) {
	if !isAdmin {
		own, err := s.Get(ctx, viewerID, season, week)
		if err != nil {
			return nil, err
		}
		if own == nil || !own.IsFinalized {
			return nil, models.ErrRevealForbidden
		}
	}
	return s.GetAllFinalized(ctx, season, week)
}

// ListWeeksWithFinalizedPicks lists weeks holding finalized picks, for one user when userID is set
func (s *PickService) ListWeeksWithFinalizedPicks(ctx context.Context, season int, userID *int) ([]int, error) {
	weeks, err := s.picks.FinalizedWeeks(ctx, season, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list finalized weeks")
	}
	if weeks == nil {
		weeks = []int{}
	}
	return weeks, nil
}

// Upsert applies a submission. Selections for games whose edit window has
// closed are dropped silently and previously stored frozen selections are kept.
func (s *PickService) Upsert(ctx context.Context, userID, season, week int, payload models.PickPayload) (pick *models.Pick, err error) {
	ctx, span := startSpan(ctx, "services.PickService.Upsert",
		append(weekAttrs(season, week), attribute.Int("user_id", userID))...)
	defer func() { endSpan(span, err) }()
	defer func() { metrics.PickWrites.WithLabelValues(writeResult(err)).Inc() }()

	games, err := s.games.FindByWeek(ctx, season, week)
	if err != nil {
		return nil, errors.Wrapf(err, "load games for week %d", week)
	}
	if !s.policy.CanSubmitWeek(games) {
		return nil, models.NewLockedError("week", "week %d has no games open for picks", week)
	}

	existing, err := s.picks.FindByUserAndWeek(ctx, userID, season, week)
	if err != nil {
		return nil, errors.Wrap(err, "load existing pick")
	}

	pick, err = s.merge(existing, games, userID, season, week, payload)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, pick); err != nil {
		return nil, err
	}

	eventType := models.EventPickUpdate
	if pick.IsFinalized && (existing == nil || !existing.IsFinalized) {
		eventType = models.EventPickFinalize
	}
	s.publisher.Publish(models.NewPickEvent(eventType, userID, week))

	s.logger.Infof("Saved pick for user %d season %d week %d (%d selections, finalized=%t, event=%s)",
		userID, season, week, len(pick.Selections), pick.IsFinalized, eventType)
	return pick, nil
}

// merge builds the pick to store from the existing document and the payload
func (s *PickService) merge(existing *models.Pick, games []*models.Game, userID, season, week int, payload models.PickPayload) (*models.Pick, error) {
	gamesByID := make(map[string]*models.Game, len(games))
	editable := make(map[string]bool, len(games))
	for _, game := range games {
		gamesByID[game.ID] = game
		editable[game.ID] = s.policy.CanEditGame(game)
	}

	pick := &models.Pick{
		UserID:     userID,
		Season:     season,
		Week:       week,
		Selections: make(map[string]string),
	}
	if existing != nil {
		pick.CreatedAt = existing.CreatedAt
		pick.IsFinalized = existing.IsFinalized
		pick.FinalizedAt = existing.FinalizedAt
		pick.Outcomes = existing.Clone().Outcomes
		for gameID, team := range existing.Selections {
			if !editable[gameID] {
				pick.Selections[gameID] = team
			}
		}
	}

	// Teams submitted for games that are still open
	submitted := make(map[string]bool)
	gameIDs := make([]string, 0, len(payload.Selections))
	for gameID := range payload.Selections {
		gameIDs = append(gameIDs, gameID)
	}
	sort.Strings(gameIDs)

	for _, gameID := range gameIDs {
		team := models.NormalizeTeamCode(payload.Selections[gameID])
		game, ok := gamesByID[gameID]
		if !ok {
			s.logger.Warnf("Dropping selection for unknown game %s (user %d week %d)", gameID, userID, week)
			continue
		}
		if !editable[gameID] {
			s.logger.Debugf("Dropping selection for locked game %s (user %d week %d)", gameID, userID, week)
			continue
		}
		if !game.HasTeam(team) {
			return nil, models.NewValidationError("selections", "team %q is not playing in game %s", team, gameID)
		}
		pick.Selections[gameID] = team
		submitted[team] = true
	}

	if err := s.mergeLock(pick, existing, editable, submitted, models.NormalizeTeamCode(payload.LockOfWeek)); err != nil {
		return nil, err
	}

	pick.TouchdownScorer = models.NormalizePlayerID(payload.TouchdownScorer)
	pick.PropBet = mergePropBet(existing, payload.PropBet)

	if payload.IsFinalized && !pick.IsFinalized {
		pick.IsFinalized = true
		finalizedAt := s.policy.Clock().Now().UTC()
		pick.FinalizedAt = &finalizedAt
	}
	return pick, nil
}

// mergeLock validates the lock of the week. A lock sitting on a frozen game
// can no longer move; otherwise the lock must be one of this submission's picks.
func (s *PickService) mergeLock(pick, existing *models.Pick, editable map[string]bool, submitted map[string]bool, lock string) error {
	var frozenLock string
	if existing != nil {
		if gameID, ok := existing.LockGameID(); ok && !editable[gameID] {
			frozenLock = existing.LockOfWeek
		}
	}

	switch {
	case frozenLock != "" && lock != frozenLock:
		return models.NewLockedError("lockOfWeek", "lock of the week %s is already locked in", frozenLock)
	case frozenLock != "":
		pick.LockOfWeek = frozenLock
	case lock == "":
		pick.LockOfWeek = ""
	case submitted[lock]:
		pick.LockOfWeek = lock
	default:
		return models.NewValidationError("lockOfWeek", "%q must be one of this submission's selections", lock)
	}
	return nil
}

func mergePropBet(existing *models.Pick, input *models.PropBetInput) *models.PropBet {
	if input == nil {
		return nil
	}
	if existing != nil && existing.PropBet != nil &&
		existing.PropBet.Description == input.Description && existing.PropBet.Odds == input.Odds {
		prop := *existing.PropBet
		return &prop
	}
	return &models.PropBet{
		Description: input.Description,
		Odds:        input.Odds,
		Status:      models.PropBetPending,
	}
}

// save writes the pick, retrying a transient failure once
func (s *PickService) save(ctx context.Context, pick *models.Pick) error {
	err := s.picks.Upsert(ctx, pick)
	if !models.IsTransient(err) {
		return err
	}

	s.logger.Warnf("Transient error saving %s, retrying once: %v", pick.Key(), err)
	err = s.picks.Upsert(ctx, pick)
	if models.IsTransient(err) {
		s.logger.Errorf("Retry failed saving %s: %v", pick.Key(), err)
		return &models.ConflictError{
			Reason:  models.ConflictContention,
			Message: "the pick could not be saved because of concurrent updates, try again",
		}
	}
	return err
}

// Delete removes a user's pick while nothing in it has frozen yet
func (s *PickService) Delete(ctx context.Context, userID, season, week int) error {
	games, err := s.games.FindByWeek(ctx, season, week)
	if err != nil {
		return errors.Wrapf(err, "load games for week %d", week)
	}
	if !s.policy.CanSubmitWeek(games) {
		return models.NewLockedError("week", "week %d is locked", week)
	}

	existing, err := s.picks.FindByUserAndWeek(ctx, userID, season, week)
	if err != nil {
		return errors.Wrap(err, "load existing pick")
	}
	if existing == nil {
		return models.ErrNotFound
	}

	for _, game := range games {
		if _, picked := existing.Selections[game.ID]; picked && !s.policy.CanEditGame(game) {
			return models.NewLockedError("selections", "selection for game %s is already locked in", game.ID)
		}
	}

	if err := s.picks.Delete(ctx, userID, season, week); err != nil {
		return errors.Wrap(err, "delete pick")
	}
	s.publisher.Publish(models.NewPickEvent(models.EventPickUpdate, userID, week))
	s.logger.Infof("Deleted pick for user %d season %d week %d", userID, season, week)
	return nil
}

// ModeratePropBet records the admin decision on a user's prop bet
func (s *PickService) ModeratePropBet(ctx context.Context, userID, season, week int, decision models.PropBetModeration) error {
	prop := &models.PropBet{Status: decision.Status, Outcome: decision.Outcome}
	if decision.Status != models.PropBetApproved && decision.Outcome == "" {
		prop.Outcome = models.OutcomeUnresolved
	}

	if err := s.picks.UpdatePropBet(ctx, userID, season, week, prop); err != nil {
		return errors.Wrapf(err, "moderate prop bet for user %d week %d", userID, week)
	}
	s.publisher.Publish(models.NewPickEvent(models.EventPickUpdate, userID, week))
	s.logger.Infof("Prop bet for user %d season %d week %d set to %s (%s)", userID, season, week, decision.Status, prop.Outcome)
	return nil
}

func writeResult(err error) string {
	var validation *models.ValidationError
	var conflict *models.ConflictError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &conflict):
		return string(conflict.Reason)
	default:
		return "error"
	}
}
