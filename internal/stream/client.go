package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
)

// ErrRetriesExhausted is terminal: the driver stops scheduling reconnects and
// the caller must restart it explicitly (the manual-refresh path).
var ErrRetriesExhausted = crerr.New("stream reconnect attempts exhausted")

var errTopicChanged = crerr.New("stream topic changed")

// ClientState is the reconnection state machine's current position.
type ClientState int32

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateOpen
	StateTerminated
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateTerminated:
		return "terminated"
	default:
		return "disconnected"
	}
}

// BackoffConfig parameterizes reconnect scheduling.
type BackoffConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	return c
}

// nextDelay computes the backoff before reconnect attempt retry (0-based):
// base doubled per retry, capped at MaxDelay. Pure so it is testable without
// real timers.
func nextDelay(cfg BackoffConfig, retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	delay := cfg.BaseDelay
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// MessageReader delivers one serialized event per Next call. Close unblocks a
// pending Next.
type MessageReader interface {
	Next() ([]byte, error)
	Close() error
}

// Transport opens a subscribed stream for a topic.
type Transport interface {
	Dial(ctx context.Context, topic string) (MessageReader, error)
}

// ClientConfig configures a reconnecting stream subscriber.
type ClientConfig struct {
	Topic   string
	Backoff BackoffConfig
	Logger  *logging.Logger
	// OnStreamError receives user-visible messages from error events. The
	// connection stays open; only the reported condition failed.
	OnStreamError func(message string)
}

// Client is the subscriber-side reconnection driver: it opens a stream,
// parses typed events, maintains a local canonical game list, and reconnects
// with bounded exponential backoff on failure.
type Client struct {
	transport     Transport
	backoff       BackoffConfig
	logger        *logging.Logger
	onStreamError func(string)

	topicBump chan struct{}

	mu            sync.Mutex
	topic         string
	state         ClientState
	retries       int
	epoch         int
	reader        MessageReader
	games         []game.Game
	lastHeartbeat time.Time
	lastError     string
}

func NewClient(transport Transport, cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = TopicAll
	}

	return &Client{
		transport:     transport,
		backoff:       cfg.Backoff.withDefaults(),
		logger:        logger,
		onStreamError: cfg.OnStreamError,
		topicBump:     make(chan struct{}, 1),
		topic:         topic,
		state:         StateDisconnected,
	}
}

// Run drives the state machine until ctx is cancelled or retries are
// exhausted. It returns ErrRetriesExhausted on terminal failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		epoch, topic := c.snapshot()
		c.setState(StateConnecting)

		reader, err := c.transport.Dial(ctx, topic)
		if err != nil {
			if terminal := c.scheduleReconnect(ctx, err); terminal != nil {
				return terminal
			}
			continue
		}

		if !c.attachReader(epoch, reader) {
			// Topic switched while dialing; this stream is already stale.
			_ = reader.Close()
			continue
		}

		c.setState(StateOpen)
		c.resetRetries()
		c.logger.Info("stream open", "sport", topic)

		readErr := c.readLoop(ctx, epoch, reader)
		c.detachReader(reader)
		_ = reader.Close()

		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}
		if crerr.Is(readErr, errTopicChanged) {
			continue
		}
		if terminal := c.scheduleReconnect(ctx, readErr); terminal != nil {
			return terminal
		}
	}
}

// SetTopic switches the subscription. The current stream is torn down, the
// local game list cleared, and the retry counter reset.
func (c *Client) SetTopic(topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = TopicAll
	}

	c.mu.Lock()
	if topic == c.topic {
		c.mu.Unlock()
		return
	}
	c.topic = topic
	c.epoch++
	c.retries = 0
	c.games = nil
	reader := c.reader
	c.reader = nil
	c.mu.Unlock()

	if reader != nil {
		_ = reader.Close()
	}
	select {
	case c.topicBump <- struct{}{}:
	default:
	}
}

// Games returns a copy of the local canonical game list.
func (c *Client) Games() []game.Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]game.Game, len(c.games))
	copy(out, c.games)
	return out
}

func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Client) readLoop(ctx context.Context, epoch int, reader MessageReader) error {
	for {
		line, err := reader.Next()
		if err != nil {
			if c.epochChanged(epoch) {
				return errTopicChanged
			}
			return crerr.Wrap(err, "read stream event")
		}
		if c.epochChanged(epoch) {
			return errTopicChanged
		}
		c.handleLine(ctx, epoch, line)
	}
}

func (c *Client) handleLine(ctx context.Context, epoch int, line []byte) {
	evt, err := DecodeEvent(line)
	if err != nil {
		// Malformed inbound messages are non-fatal; the stream stays up.
		c.logger.WarnContext(ctx, "stream message malformed", "error", err)
		c.setLastError("malformed stream message")
		return
	}

	switch evt.Type {
	case EventConnected:
		c.logger.DebugContext(ctx, "stream connected event received")
	case EventHeartbeat:
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
	case EventError:
		var body struct {
			Message string `json:"message"`
		}
		_ = sonic.ConfigDefault.Unmarshal(evt.Data, &body)
		if body.Message == "" {
			body.Message = "stream reported an error"
		}
		c.setLastError(body.Message)
		if c.onStreamError != nil {
			c.onStreamError(body.Message)
		}
	case EventGameUpdate:
		c.applyGameUpdate(ctx, epoch, evt.Data)
	default:
		c.logger.DebugContext(ctx, "stream event ignored", "type", string(evt.Type))
	}
}

// applyGameUpdate replaces the local game list with the broadcast batch,
// run through the same normalization and dedup rules as the server so both
// sides agree on canonical shape. An empty batch is a no-op, not a wipe.
func (c *Client) applyGameUpdate(ctx context.Context, epoch int, data []byte) {
	var payload GameUpdatePayload
	if err := sonic.ConfigDefault.Unmarshal(data, &payload); err != nil {
		c.logger.WarnContext(ctx, "game update payload malformed", "error", err)
		c.setLastError("malformed game update")
		return
	}
	if len(payload.Games) == 0 {
		return
	}

	next := make([]game.Game, 0, len(payload.Games))
	for _, g := range payload.Games {
		next = append(next, game.Canonicalize(g))
	}
	next = game.Dedup(next)

	c.mu.Lock()
	if epoch == c.epoch {
		c.games = next
	}
	c.mu.Unlock()
}

// scheduleReconnect applies backoff after a failure. It returns a terminal
// error once the retry budget is spent, otherwise nil after the delay.
func (c *Client) scheduleReconnect(ctx context.Context, cause error) error {
	c.setState(StateDisconnected)

	c.mu.Lock()
	retry := c.retries
	c.retries++
	c.mu.Unlock()

	if retry >= c.backoff.MaxRetries {
		c.setState(StateTerminated)
		c.logger.Error("stream retries exhausted", "attempts", retry, "error", cause)
		return crerr.WithSecondaryError(ErrRetriesExhausted, cause)
	}

	delay := nextDelay(c.backoff, retry)
	c.logger.Warn("stream disconnected, reconnecting",
		"retry", retry+1,
		"delay", delay.String(),
		"error", cause,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-c.topicBump:
		return nil
	case <-timer.C:
		return nil
	}
}

func (c *Client) snapshot() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.topic
}

func (c *Client) epochChanged(epoch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch != c.epoch
}

func (c *Client) attachReader(epoch int, reader MessageReader) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	c.reader = reader
	return true
}

func (c *Client) detachReader(reader MessageReader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == reader {
		c.reader = nil
	}
}

func (c *Client) setState(state ClientState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) resetRetries() {
	c.mu.Lock()
	c.retries = 0
	c.mu.Unlock()
}

func (c *Client) setLastError(message string) {
	c.mu.Lock()
	c.lastError = message
	c.mu.Unlock()
}
