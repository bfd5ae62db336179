package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
)

func TestNextDelay_DoublesAndCaps(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxRetries: 10}

	wants := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for retry, want := range wants {
		if got := nextDelay(cfg, retry); got != want {
			t.Fatalf("nextDelay(retry=%d) = %s, want %s", retry, got, want)
		}
	}
}

func TestNextDelay_NonDecreasing(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}

	prev := time.Duration(0)
	for retry := 0; retry < 20; retry++ {
		got := nextDelay(cfg, retry)
		if got < prev {
			t.Fatalf("delay decreased at retry %d: %s < %s", retry, got, prev)
		}
		if got > cfg.MaxDelay {
			t.Fatalf("delay exceeded cap at retry %d: %s", retry, got)
		}
		prev = got
	}
}

func TestNextDelay_NegativeRetryClamped(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	if got := nextDelay(cfg, -3); got != time.Second {
		t.Fatalf("expected base delay for negative retry, got %s", got)
	}
}

// scriptedReader hands out a fixed sequence of lines, then blocks until
// closed.
type scriptedReader struct {
	mu     sync.Mutex
	lines  [][]byte
	closed chan struct{}
	once   sync.Once
}

func newScriptedReader(lines ...string) *scriptedReader {
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		out = append(out, []byte(line))
	}
	return &scriptedReader{lines: out, closed: make(chan struct{})}
}

func (r *scriptedReader) Next() ([]byte, error) {
	r.mu.Lock()
	if len(r.lines) > 0 {
		line := r.lines[0]
		r.lines = r.lines[1:]
		r.mu.Unlock()
		return line, nil
	}
	r.mu.Unlock()

	<-r.closed
	return nil, io.EOF
}

func (r *scriptedReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

type failingTransport struct {
	mu    sync.Mutex
	dials int
}

func (t *failingTransport) Dial(context.Context, string) (MessageReader, error) {
	t.mu.Lock()
	t.dials++
	t.mu.Unlock()
	return nil, errors.New("connection refused")
}

func (t *failingTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func TestClient_RunStopsAfterRetriesExhausted(t *testing.T) {
	transport := &failingTransport{}
	c := NewClient(transport, ClientConfig{
		Topic: "basketball",
		Backoff: BackoffConfig{
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
			MaxRetries: 3,
		},
		Logger: logging.NewNop(),
	})

	err := c.Run(context.Background())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if got := c.State(); got != StateTerminated {
		t.Fatalf("expected terminated state, got %s", got)
	}
	// Initial attempt plus MaxRetries reconnects.
	if got := transport.dialCount(); got != 4 {
		t.Fatalf("expected 4 dial attempts, got %d", got)
	}
}

func TestClient_RunReturnsOnContextCancel(t *testing.T) {
	transport := &failingTransport{}
	c := NewClient(transport, ClientConfig{
		Topic:   "basketball",
		Backoff: BackoffConfig{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxRetries: 100},
		Logger:  logging.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestClient_HandleLine_GameUpdateReplacesLocalList(t *testing.T) {
	c := NewClient(nil, ClientConfig{Topic: "basketball", Logger: logging.NewNop()})

	line := `{"type":"game_update","data":{"sport":"basketball","games":[` +
		`{"id":"gm-1","sport":"basketball","homeTeam":{"name":"Lakers"},"awayTeam":{"name":"Celtics"},"status":"live"},` +
		`{"id":"gm-1","sport":"basketball","homeTeam":{"name":"Lakers"},"awayTeam":{"name":"Celtics"},"status":"live"}` +
		`]}}`
	c.handleLine(context.Background(), 0, []byte(line))

	games := c.Games()
	if len(games) != 1 {
		t.Fatalf("expected deduplicated single game, got %d", len(games))
	}
	if games[0].ID != "gm-1" || !games[0].Status.IsLive() {
		t.Fatalf("unexpected game: %+v", games[0])
	}
}

func TestClient_HandleLine_EmptyBatchIsNoOp(t *testing.T) {
	c := NewClient(nil, ClientConfig{Topic: "basketball", Logger: logging.NewNop()})

	seed := `{"type":"game_update","data":{"sport":"basketball","games":[` +
		`{"id":"gm-1","sport":"basketball","homeTeam":{"name":"Lakers"},"awayTeam":{"name":"Celtics"},"status":"live"}]}}`
	c.handleLine(context.Background(), 0, []byte(seed))

	empty := `{"type":"game_update","data":{"sport":"basketball","games":[]}}`
	c.handleLine(context.Background(), 0, []byte(empty))

	if games := c.Games(); len(games) != 1 {
		t.Fatalf("empty batch must not wipe local state, got %d games", len(games))
	}
}

func TestClient_HandleLine_MalformedMessageIsNonFatal(t *testing.T) {
	c := NewClient(nil, ClientConfig{Topic: "basketball", Logger: logging.NewNop()})

	c.handleLine(context.Background(), 0, []byte("{not json"))

	if c.LastError() == "" {
		t.Fatalf("expected last error to be recorded")
	}
	if got := c.State(); got == StateTerminated {
		t.Fatalf("malformed message must not terminate the client")
	}
}

func TestClient_HandleLine_HeartbeatUpdatesTimestamp(t *testing.T) {
	c := NewClient(nil, ClientConfig{Topic: "basketball", Logger: logging.NewNop()})

	if !c.LastHeartbeat().IsZero() {
		t.Fatalf("expected zero heartbeat before any message")
	}
	c.handleLine(context.Background(), 0, []byte(`{"type":"heartbeat"}`))
	if c.LastHeartbeat().IsZero() {
		t.Fatalf("expected heartbeat timestamp to be set")
	}
}

func TestClient_HandleLine_ErrorEventInvokesCallback(t *testing.T) {
	var mu sync.Mutex
	var got string
	c := NewClient(nil, ClientConfig{
		Topic:  "basketball",
		Logger: logging.NewNop(),
		OnStreamError: func(message string) {
			mu.Lock()
			got = message
			mu.Unlock()
		},
	})

	c.handleLine(context.Background(), 0, []byte(`{"type":"error","data":{"message":"poll failed"}}`))

	mu.Lock()
	defer mu.Unlock()
	if got != "poll failed" {
		t.Fatalf("unexpected callback message: %q", got)
	}
	if c.lastError != "poll failed" {
		t.Fatalf("unexpected last error: %q", c.lastError)
	}
}

// switchingTransport serves the first topic with a blocked reader, then
// records the topic of the second dial.
type switchingTransport struct {
	mu     sync.Mutex
	topics []string
	dialed chan string
}

func (t *switchingTransport) Dial(ctx context.Context, topic string) (MessageReader, error) {
	t.mu.Lock()
	t.topics = append(t.topics, topic)
	t.mu.Unlock()
	t.dialed <- topic

	reader := newScriptedReader()
	go func() {
		<-ctx.Done()
		_ = reader.Close()
	}()
	return reader, nil
}

func TestClient_SetTopicReconnectsWithNewTopic(t *testing.T) {
	transport := &switchingTransport{dialed: make(chan string, 4)}
	c := NewClient(transport, ClientConfig{
		Topic:   "basketball",
		Backoff: BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxRetries: 100},
		Logger:  logging.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if topic := <-transport.dialed; topic != "basketball" {
		t.Fatalf("expected first dial for basketball, got %q", topic)
	}

	c.SetTopic("hockey")

	select {
	case topic := <-transport.dialed:
		if topic != "hockey" {
			t.Fatalf("expected redial for hockey, got %q", topic)
		}
	case <-time.After(time.Second):
		t.Fatalf("no redial after topic switch")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestClient_SetTopicClearsGamesAndRetries(t *testing.T) {
	c := NewClient(nil, ClientConfig{Topic: "basketball", Logger: logging.NewNop()})

	seed := `{"type":"game_update","data":{"sport":"basketball","games":[` +
		`{"id":"gm-1","sport":"basketball","homeTeam":{"name":"Lakers"},"awayTeam":{"name":"Celtics"},"status":"live"}]}}`
	c.handleLine(context.Background(), 0, []byte(seed))
	if len(c.Games()) != 1 {
		t.Fatalf("seed game missing")
	}

	c.SetTopic("hockey")

	if games := c.Games(); len(games) != 0 {
		t.Fatalf("topic switch must clear the local list, got %d games", len(games))
	}

	// A late update from the old stream epoch must be discarded.
	c.handleLine(context.Background(), 0, []byte(seed))
	if games := c.Games(); len(games) != 0 {
		t.Fatalf("stale-epoch update must be discarded, got %d games", len(games))
	}
}
