// Package client follows the live event stream the way a UI should: it treats
// events as hints, coalesces bursts into one refetch and degrades to polling
// when the stream cannot be reached.
package client

import (
	"bufio"
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nfl-pickem/logging"
	"nfl-pickem/models"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/cockroachdb/errors"
)

// RefreshFunc re-fetches state for the given weeks. A nil slice means a full refetch.
type RefreshFunc func(ctx context.Context, weeks []int) error

// FollowerConfig tunes the follower
type FollowerConfig struct {
	URL            string
	Token          string
	Debounce       time.Duration
	MaxReconnects  uint
	InitialBackoff time.Duration
	PollInterval   time.Duration
	QuietPeriod    time.Duration
	// StableAfter is how long a connection must stay open without events
	// before it counts as established
	StableAfter time.Duration
}

// DefaultFollowerConfig returns the standard client settings for url
func DefaultFollowerConfig(url string) FollowerConfig {
	return FollowerConfig{
		URL:            url,
		Debounce:       750 * time.Millisecond,
		MaxReconnects:  6,
		InitialBackoff: 500 * time.Millisecond,
		PollInterval:   30 * time.Second,
		QuietPeriod:    60 * time.Second,
		StableAfter:    5 * time.Second,
	}
}

// errStreamClosed ends a connection that was established and then dropped
var errStreamClosed = errors.New("live stream closed")

// errStreamDropped ends a connection that closed before it was established
var errStreamDropped = errors.New("live stream dropped before any event")

// Follower keeps a local view fresh from the live stream
type Follower struct {
	config  FollowerConfig
	client  *http.Client
	refresh RefreshFunc
	logger  *logging.Logger
	now     func() time.Time

	lastEvent atomic.Int64
	degraded  atomic.Bool

	mu      sync.Mutex
	pending map[int]struct{}
	timer   *time.Timer
}

// NewFollower creates a follower. Zero config fields take their defaults.
func NewFollower(config FollowerConfig, refresh RefreshFunc) *Follower {
	defaults := DefaultFollowerConfig(config.URL)
	if config.Debounce <= 0 {
		config.Debounce = defaults.Debounce
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = defaults.MaxReconnects
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.QuietPeriod <= 0 {
		config.QuietPeriod = defaults.QuietPeriod
	}
	if config.StableAfter <= 0 {
		config.StableAfter = defaults.StableAfter
	}

	return &Follower{
		config:  config,
		client:  &http.Client{},
		refresh: refresh,
		logger:  logging.WithPrefix("Follower"),
		now:     time.Now,
		pending: make(map[int]struct{}),
	}
}

// Degraded reports whether the follower has given up on the stream and is polling
func (f *Follower) Degraded() bool {
	return f.degraded.Load()
}

// Run follows the stream until ctx is cancelled
func (f *Follower) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.pollLoop(ctx)
	}()

	f.streamLoop(ctx)
	wg.Wait()

	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.mu.Unlock()
	return ctx.Err()
}

// streamLoop reconnects with a fresh attempt budget after every established
// connection. A connection that drops before delivering an event or staying
// up for StableAfter spends an attempt like a failed dial. An exhausted budget
// switches the follower to polling until the next poll interval.
func (f *Follower) streamLoop(ctx context.Context) {
	for ctx.Err() == nil {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = f.config.InitialBackoff

		attempt := 0
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			attempt++
			err := f.stream(ctx)
			if errors.Is(err, errStreamClosed) {
				return struct{}{}, nil
			}
			if err != nil && ctx.Err() == nil {
				f.logger.Debugf("Live stream attempt %d/%d failed: %v", attempt, f.config.MaxReconnects, err)
			}
			return struct{}{}, err
		}, backoff.WithBackOff(policy), backoff.WithMaxTries(f.config.MaxReconnects), backoff.WithMaxElapsedTime(0))

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}

		if !f.degraded.Swap(true) {
			f.logger.Warnf("Live stream unavailable after %d attempts, polling every %s: %v", attempt, f.config.PollInterval, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.config.PollInterval):
		}
	}
}

// stream holds one connection open and feeds its events to the debouncer.
// It returns errStreamClosed when an established connection ends and
// errStreamDropped when the server closed it early.
func (f *Follower) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "build stream request"))
	}
	req.Header.Set("Accept", "text/event-stream")
	if f.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.config.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "connect live stream")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.Newf("live stream returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(err)
		}
		return err
	}

	if f.degraded.Swap(false) {
		f.logger.Infof("Live stream restored")
	}
	// Nothing is replayed, so a fresh connection always starts from a full refetch
	f.runRefresh(ctx, nil)

	opened := f.now()
	received := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event models.LiveEvent
		if err := sonic.UnmarshalString(strings.TrimSpace(strings.TrimPrefix(line, "data:")), &event); err != nil {
			f.logger.Debugf("Ignoring malformed event: %v", err)
			continue
		}
		received = true
		f.lastEvent.Store(f.now().UnixNano())
		f.schedule(ctx, event.Payload.Week)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		f.logger.Debugf("Live stream read failed: %v", err)
	}
	if !received && f.now().Sub(opened) < f.config.StableAfter {
		return errStreamDropped
	}
	return errStreamClosed
}

// schedule records a week for the next refetch. The first event of a burst
// starts the debounce window; later events in the window join the same refetch.
func (f *Follower) schedule(ctx context.Context, week int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending[week] = struct{}{}
	if f.timer != nil {
		return
	}
	f.timer = time.AfterFunc(f.config.Debounce, func() {
		f.mu.Lock()
		weeks := make([]int, 0, len(f.pending))
		for w := range f.pending {
			weeks = append(weeks, w)
		}
		f.pending = make(map[int]struct{})
		f.timer = nil
		f.mu.Unlock()

		sort.Ints(weeks)
		f.runRefresh(ctx, weeks)
	})
}

// pollLoop refetches while the stream is down and nothing has arrived recently
func (f *Follower) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.degraded.Load() && f.quiet() {
				f.runRefresh(ctx, nil)
			}
		}
	}
}

func (f *Follower) quiet() bool {
	last := f.lastEvent.Load()
	return last == 0 || f.now().Sub(time.Unix(0, last)) >= f.config.QuietPeriod
}

func (f *Follower) runRefresh(ctx context.Context, weeks []int) {
	if ctx.Err() != nil {
		return
	}
	if err := f.refresh(ctx, weeks); err != nil {
		f.logger.Warnf("Refresh of weeks %v failed: %v", weeks, err)
	}
}
