package services

import (
	"context"
	"sync"

	"nfl-pickem/logging"

	"github.com/cockroachdb/errors"
)

// WeekReport is the result of resolving and scoring one week
type WeekReport struct {
	Resolve ResolveReport `json:"resolve"`
	Records int           `json:"records"`
}

// WeekPipeline resolves outcomes then scores the week. Passes over the same
// week are serialized; different weeks run independently.
type WeekPipeline struct {
	resolver *OutcomeResolver
	engine   *ScoringEngine
	logger   *logging.Logger

	mu    sync.Mutex
	weeks map[[2]int]*sync.Mutex
}

// NewWeekPipeline creates a pipeline over resolver and engine
func NewWeekPipeline(resolver *OutcomeResolver, engine *ScoringEngine) *WeekPipeline {
	return &WeekPipeline{
		resolver: resolver,
		engine:   engine,
		logger:   logging.WithPrefix("WeekPipeline"),
		weeks:    make(map[[2]int]*sync.Mutex),
	}
}

func (p *WeekPipeline) weekLock(season, week int) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := [2]int{season, week}
	lock, ok := p.weeks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.weeks[key] = lock
	}
	return lock
}

// Run resolves and scores one week from scratch
func (p *WeekPipeline) Run(ctx context.Context, season, week int) (WeekReport, error) {
	lock := p.weekLock(season, week)
	lock.Lock()
	defer lock.Unlock()

	var report WeekReport
	resolved, err := p.resolver.ResolveWeek(ctx, season, week)
	report.Resolve = resolved
	if err != nil {
		return report, errors.Wrapf(err, "resolve week %d/%d", season, week)
	}

	records, err := p.engine.ScoreWeek(ctx, season, week)
	if err != nil {
		return report, errors.Wrapf(err, "score week %d/%d", season, week)
	}
	report.Records = len(records)
	p.logger.Debugf("Week %d/%d processed: %d outcomes changed, %d records", season, week, resolved.OutcomesChanged, report.Records)
	return report, nil
}
