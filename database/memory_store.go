package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"nfl-pickem/models"
)

// The in-memory repositories back the demo mode used when MongoDB is
// unreachable, and the service tests. They honor the same uniqueness rules as
// the Mongo indexes: the claim check and the write happen under one lock.

type pickKey struct {
	userID int
	season int
	week   int
}

// MemoryPickRepository is a process-local PickRepository
type MemoryPickRepository struct {
	mu    sync.RWMutex
	picks map[pickKey]*models.Pick
	now   func() time.Time
}

func NewMemoryPickRepository() *MemoryPickRepository {
	return &MemoryPickRepository{
		picks: make(map[pickKey]*models.Pick),
		now:   time.Now,
	}
}

func (r *MemoryPickRepository) Upsert(ctx context.Context, pick *models.Pick) error {
	if err := ctx.Err(); err != nil {
		return &models.TransientStoreError{Op: "upsert pick", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pickKey{pick.UserID, pick.Season, pick.Week}
	if pick.IsFinalized {
		for other, existing := range r.picks {
			if other == key || other.season != key.season || other.week != key.week || !existing.IsFinalized {
				continue
			}
			if pick.LockOfWeek != "" && existing.LockOfWeek == pick.LockOfWeek {
				return models.NewClaimedError("lockOfWeek", pick.LockOfWeek)
			}
			if pick.TouchdownScorer != "" && existing.TouchdownScorer == pick.TouchdownScorer {
				return models.NewClaimedError("touchdownScorer", pick.TouchdownScorer)
			}
		}
	}

	now := r.now().UTC()
	pick.UpdatedAt = now
	stored := pick.Clone()
	if existing, ok := r.picks[key]; ok {
		stored.CreatedAt = existing.CreatedAt
		stored.Outcomes = existing.Clone().Outcomes
	} else {
		stored.CreatedAt = now
		stored.Outcomes = nil
	}
	pick.CreatedAt = stored.CreatedAt
	r.picks[key] = stored
	return nil
}

func (r *MemoryPickRepository) FindByUserAndWeek(_ context.Context, userID, season, week int) (*models.Pick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pick, ok := r.picks[pickKey{userID, season, week}]
	if !ok {
		return nil, nil
	}
	return pick.Clone(), nil
}

func (r *MemoryPickRepository) FindFinalizedByWeek(_ context.Context, season, week int) ([]*models.Pick, error) {
	return r.filter(func(k pickKey, p *models.Pick) bool {
		return k.season == season && k.week == week && p.IsFinalized
	}), nil
}

func (r *MemoryPickRepository) FindFinalizedBySeason(_ context.Context, season int) ([]*models.Pick, error) {
	return r.filter(func(k pickKey, p *models.Pick) bool {
		return k.season == season && p.IsFinalized
	}), nil
}

func (r *MemoryPickRepository) filter(match func(pickKey, *models.Pick) bool) []*models.Pick {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Pick
	for key, pick := range r.picks {
		if match(key, pick) {
			out = append(out, pick.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Week != out[j].Week {
			return out[i].Week < out[j].Week
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (r *MemoryPickRepository) FinalizedWeeks(_ context.Context, season int, userID *int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int]bool)
	for key, pick := range r.picks {
		if key.season != season || !pick.IsFinalized {
			continue
		}
		if userID != nil && key.userID != *userID {
			continue
		}
		seen[key.week] = true
	}

	weeks := make([]int, 0, len(seen))
	for week := range seen {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)
	return weeks, nil
}

func (r *MemoryPickRepository) UpdateOutcomes(_ context.Context, userID, season, week int, outcomes map[string]models.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pick, ok := r.picks[pickKey{userID, season, week}]
	if !ok {
		return models.ErrNotFound
	}
	pick.Outcomes = make(map[string]models.Outcome, len(outcomes))
	for gameID, outcome := range outcomes {
		pick.Outcomes[gameID] = outcome
	}
	return nil
}

func (r *MemoryPickRepository) UpdatePropBet(_ context.Context, userID, season, week int, prop *models.PropBet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pick, ok := r.picks[pickKey{userID, season, week}]
	if !ok || pick.PropBet == nil {
		return models.ErrNotFound
	}
	pick.PropBet.Status = prop.Status
	pick.PropBet.Outcome = prop.Outcome
	return nil
}

func (r *MemoryPickRepository) Delete(_ context.Context, userID, season, week int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pickKey{userID, season, week}
	if _, ok := r.picks[key]; !ok {
		return models.ErrNotFound
	}
	delete(r.picks, key)
	return nil
}

// MemoryGameRepository is a process-local GameRepository
type MemoryGameRepository struct {
	mu    sync.RWMutex
	games map[string]*models.Game
}

func NewMemoryGameRepository(games ...*models.Game) *MemoryGameRepository {
	r := &MemoryGameRepository{games: make(map[string]*models.Game)}
	_ = r.BulkUpsertGames(context.Background(), games)
	return r
}

func (r *MemoryGameRepository) FindByWeek(_ context.Context, season, week int) ([]*models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Game
	for _, game := range r.games {
		if game.Season == season && game.Week == week {
			copied := *game
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate != out[j].ScheduledDate {
			return out[i].ScheduledDate < out[j].ScheduledDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryGameRepository) FindByID(_ context.Context, gameID string) (*models.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	game, ok := r.games[gameID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *game
	return &copied, nil
}

func (r *MemoryGameRepository) BulkUpsertGames(_ context.Context, games []*models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, game := range games {
		copied := *game
		r.games[game.ID] = &copied
	}
	return nil
}

type scoringKey struct {
	userID int
	gameID string
}

// MemoryScoringRepository is a process-local ScoringRepository
type MemoryScoringRepository struct {
	mu      sync.RWMutex
	records map[scoringKey]models.ScoringRecord
}

func NewMemoryScoringRepository() *MemoryScoringRepository {
	return &MemoryScoringRepository{records: make(map[scoringKey]models.ScoringRecord)}
}

func (r *MemoryScoringRepository) UpsertRecords(_ context.Context, records []*models.ScoringRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		r.records[scoringKey{record.UserID, record.GameID}] = *record
	}
	return nil
}

func (r *MemoryScoringRepository) FindByWeek(_ context.Context, season, week int) ([]*models.ScoringRecord, error) {
	return r.filter(func(rec models.ScoringRecord) bool {
		return rec.Season == season && rec.Week == week
	}), nil
}

func (r *MemoryScoringRepository) FindBySeason(_ context.Context, season int) ([]*models.ScoringRecord, error) {
	return r.filter(func(rec models.ScoringRecord) bool {
		return rec.Season == season
	}), nil
}

func (r *MemoryScoringRepository) DeleteByUserWeek(_ context.Context, userID, season, week int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, record := range r.records {
		if record.UserID == userID && record.Season == season && record.Week == week {
			delete(r.records, key)
		}
	}
	return nil
}

func (r *MemoryScoringRepository) filter(match func(models.ScoringRecord) bool) []*models.ScoringRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ScoringRecord
	for _, record := range r.records {
		if match(record) {
			copied := record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].GameID < out[j].GameID
	})
	return out
}

// MemoryUserDirectory is a fixed UserDirectory
type MemoryUserDirectory struct {
	users map[int]models.User
}

func NewMemoryUserDirectory(users ...models.User) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[int]models.User, len(users))}
	for _, user := range users {
		d.users[user.ID] = user
	}
	return d
}

func (d *MemoryUserDirectory) FindByIDs(_ context.Context, ids []int) (map[int]models.User, error) {
	out := make(map[int]models.User, len(ids))
	for _, id := range ids {
		if user, ok := d.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}
