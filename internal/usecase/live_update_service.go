package usecase

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	ants "github.com/panjf2000/ants/v2"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
)

// Publisher fans one event out to subscribers of a topic and reports how many
// connections were targeted.
type Publisher interface {
	Publish(topic string, evt stream.Event) int
}

// LiveUpdateConfig carries the poll loop tunables.
type LiveUpdateConfig struct {
	// Sports is the set of topics polled each tick.
	Sports []string
	// Interval is the time between scheduled ticks.
	Interval time.Duration
	// MaxConcurrentTopics bounds how many sports are fetched in parallel
	// within one tick.
	MaxConcurrentTopics int
	// TopicTimeout bounds the total fetch time for a single sport.
	TopicTimeout time.Duration
}

func (c LiveUpdateConfig) withDefaults() LiveUpdateConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MaxConcurrentTopics <= 0 {
		c.MaxConcurrentTopics = 10
	}
	if c.TopicTimeout <= 0 {
		c.TopicTimeout = 10 * time.Second
	}
	return c
}

// LiveUpdateStatus is a point-in-time health snapshot of the poll loop.
type LiveUpdateStatus struct {
	Running             bool      `json:"running"`
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	TrackedSports       []string  `json:"trackedSports"`
}

// LiveUpdateService is the server-side poll loop: every interval it fetches
// each tracked sport's snapshot, compares it byte-for-byte against the last
// broadcast payload, and publishes one game_update batch per topic that
// actually changed. Topic failures are isolated; one sport's storage error
// never blocks the others.
type LiveUpdateService struct {
	queries   *GameQueryService
	publisher Publisher
	logger    *logging.Logger
	cfg       LiveUpdateConfig

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu sync.Mutex
	// lastPayload holds the serialized payload most recently broadcast per
	// topic. Comparing serialized bytes suppresses republication of
	// identical snapshots.
	lastPayload map[string][]byte
	started     bool
	running     bool
	status      LiveUpdateStatus
}

func NewLiveUpdateService(queries *GameQueryService, publisher Publisher, cfg LiveUpdateConfig, logger *logging.Logger) *LiveUpdateService {
	if logger == nil {
		logger = logging.Default()
	}
	cfg = cfg.withDefaults()

	sports := make([]string, 0, len(cfg.Sports))
	for _, sport := range cfg.Sports {
		sport = strings.ToLower(strings.TrimSpace(sport))
		if sport != "" && sport != stream.TopicAll {
			sports = append(sports, sport)
		}
	}
	cfg.Sports = sports

	return &LiveUpdateService{
		queries:     queries,
		publisher:   publisher,
		logger:      logger,
		cfg:         cfg,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		lastPayload: make(map[string][]byte),
	}
}

// Start runs the poll loop until ctx is cancelled or Stop is called. The
// first tick fires immediately so subscribers see data without waiting a
// full interval. The service is one-shot: calling Start again, including
// after Stop, is a no-op.
func (s *LiveUpdateService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.running = true
	s.status.Running = true
	s.status.TrackedSports = s.cfg.Sports
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop terminates the poll loop and waits for the in-flight tick to finish.
// Safe to call more than once, and before Start.
func (s *LiveUpdateService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.mu.Unlock()
}

// Status reports the loop's current health for readiness checks.
func (s *LiveUpdateService) Status() LiveUpdateStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsReady reports whether the loop has completed at least one successful tick
// and has not accumulated a failure streak.
func (s *LiveUpdateService) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.status.LastSuccess.IsZero() && s.status.ConsecutiveFailures < 3
}

func (s *LiveUpdateService) loop(ctx context.Context) {
	defer func() {
		close(s.done)
		s.mu.Lock()
		s.running = false
		s.status.Running = false
		s.mu.Unlock()
	}()

	s.logger.Info("live update loop started",
		"interval", s.cfg.Interval.String(),
		"sports", strings.Join(s.cfg.Sports, ","),
		"max_concurrent_topics", s.cfg.MaxConcurrentTopics,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("live update loop stopped", "reason", "context cancelled")
			return
		case <-s.stop:
			s.logger.Info("live update loop stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

type topicResult struct {
	topic string
	games []game.Game
	err   error
}

// Tick fetches every tracked sport concurrently, publishes the changed
// topics, and records the cycle outcome. It never panics out and never
// returns an error; failures land in Status.
func (s *LiveUpdateService) Tick(ctx context.Context) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LiveUpdateService.Tick")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.recordFailure(fmt.Sprintf("tick panicked: %v", r))
			s.logger.ErrorContext(ctx, "live update tick panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()

	s.mu.Lock()
	s.status.LastAttempt = time.Now()
	s.mu.Unlock()

	if len(s.cfg.Sports) == 0 {
		s.recordSuccess()
		return
	}

	pool, err := ants.NewPool(s.cfg.MaxConcurrentTopics)
	if err != nil {
		s.recordFailure(fmt.Sprintf("create worker pool: %v", err))
		s.logger.ErrorContext(ctx, "live update worker pool unavailable", "error", err)
		return
	}
	defer pool.Release()

	results := make(chan topicResult, len(s.cfg.Sports))
	var wg sync.WaitGroup
	for _, sport := range s.cfg.Sports {
		sport := sport
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			games, err := s.fetchTopic(ctx, sport)
			results <- topicResult{topic: sport, games: games, err: err}
		})
		if submitErr != nil {
			wg.Done()
			results <- topicResult{topic: sport, err: fmt.Errorf("submit topic fetch: %w", submitErr)}
		}
	}
	wg.Wait()
	close(results)

	failed := 0
	var lastErr error
	for res := range results {
		if res.err != nil {
			failed++
			lastErr = res.err
			s.logger.WarnContext(ctx, "live update topic failed", "sport", res.topic, "error", res.err)
			continue
		}
		s.publishIfChanged(ctx, res.topic, res.games)
	}

	if failed == len(s.cfg.Sports) {
		s.recordFailure(lastErr.Error())
		return
	}
	s.recordSuccess()
	if failed > 0 {
		s.logger.InfoContext(ctx, "live update tick partially failed", "failed_topics", failed, "total_topics", len(s.cfg.Sports))
	}
}

// fetchTopic gathers one sport's full snapshot under the per-topic timeout.
func (s *LiveUpdateService) fetchTopic(ctx context.Context, sport string) ([]game.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TopicTimeout)
	defer cancel()

	return s.queries.Snapshot(ctx, sport)
}

// publishIfChanged serializes the topic payload and broadcasts only when the
// bytes differ from the last published snapshot. The comparison covers the
// payload alone, not the event envelope, so the per-event timestamp never
// forces a republish.
func (s *LiveUpdateService) publishIfChanged(ctx context.Context, sport string, games []game.Game) {
	payload := stream.GameUpdatePayload{Sport: sport, Games: games}
	data, err := sonic.ConfigDefault.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "live update payload serialization failed", "sport", sport, "error", err)
		return
	}

	s.mu.Lock()
	unchanged := bytes.Equal(s.lastPayload[sport], data)
	if !unchanged {
		s.lastPayload[sport] = data
	}
	s.mu.Unlock()

	if unchanged {
		s.logger.DebugContext(ctx, "live update unchanged, broadcast skipped", "sport", sport)
		return
	}

	delivered := s.publisher.Publish(sport, stream.NewGameUpdate(sport, games))
	s.logger.InfoContext(ctx, "live update broadcast",
		"sport", sport,
		"games", len(games),
		"subscribers", delivered,
	)
}

func (s *LiveUpdateService) recordSuccess() {
	s.mu.Lock()
	s.status.LastSuccess = time.Now()
	s.status.ConsecutiveFailures = 0
	s.status.LastError = ""
	s.mu.Unlock()
}

func (s *LiveUpdateService) recordFailure(message string) {
	s.mu.Lock()
	s.status.ConsecutiveFailures++
	s.status.LastError = message
	s.mu.Unlock()
}
