package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/SolanaSergio/apexbets-live/internal/platform/id"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
)

var ErrHubClosed = fmt.Errorf("stream hub is closed")

// HubConfig carries the tunable fan-out and eviction parameters. These are
// operational constants, not protocol requirements.
type HubConfig struct {
	// HeartbeatInterval is how often every connection receives a heartbeat
	// control event regardless of data changes.
	HeartbeatInterval time.Duration
	// SweepInterval is how often idle connections are scanned for eviction.
	SweepInterval time.Duration
	// IdleTimeout is the inactivity threshold after which a connection is
	// forcibly removed, independent of transport state.
	IdleTimeout time.Duration
	// SendBuffer is the per-connection event channel depth. Sends are
	// best-effort: an event to a full buffer is dropped, not blocked on.
	SendBuffer int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
	return c
}

// Connection is the subscriber-side handle for one registered stream.
type Connection struct {
	ID     string
	Topic  string
	Events <-chan Event
}

type connState struct {
	id       string
	topic    string
	lastSeen time.Time
	events   chan Event
}

// Hub owns the connection registry and fans topic-scoped events out to
// subscribers. All registry mutations are serialized through a single
// coordinator goroutine, so fan-out iteration never races register or
// unregister and no per-connection locking is needed.
type Hub struct {
	cfg    HubConfig
	logger *logging.Logger
	idgen  id.Generator
	now    func() time.Time

	ops  chan func()
	quit chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	wg        conc.WaitGroup

	// Owned exclusively by the coordinator goroutine.
	conns   map[string]*connState
	byTopic map[string]map[string]*connState
	dropped uint64
}

func NewHub(cfg HubConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		idgen:   id.NewRandomGenerator(),
		now:     time.Now,
		ops:     make(chan func()),
		quit:    make(chan struct{}),
		conns:   make(map[string]*connState),
		byTopic: make(map[string]map[string]*connState),
	}
}

// Start launches the coordinator loop. Safe to call once; subsequent calls
// are no-ops.
func (h *Hub) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		h.wg.Go(func() { h.run(ctx) })
	})
}

// Close stops the coordinator and evicts every connection. Idempotent.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
	h.wg.Wait()
}

// Subscribe registers a connection under topic and immediately queues a
// connected control message on its event channel.
func (h *Hub) Subscribe(ctx context.Context, topic string) (Connection, error) {
	connID, err := h.idgen.NewID()
	if err != nil {
		return Connection{}, fmt.Errorf("generate connection id: %w", err)
	}

	events := make(chan Event, h.cfg.SendBuffer)
	err = h.do(ctx, func() {
		conn := &connState{
			id:       connID,
			topic:    topic,
			lastSeen: h.now(),
			events:   events,
		}
		h.conns[connID] = conn
		if h.byTopic[topic] == nil {
			h.byTopic[topic] = make(map[string]*connState)
		}
		h.byTopic[topic][connID] = conn
		h.send(conn, NewConnected(topic))
	})
	if err != nil {
		return Connection{}, err
	}

	h.logger.DebugContext(ctx, "stream subscribed", "connection_id", connID, "sport", topic)
	return Connection{ID: connID, Topic: topic, Events: events}, nil
}

// Unsubscribe removes a connection and closes its event channel. Removing an
// unknown id is a no-op, not an error, so transport-failure cleanup and
// client-initiated closes can race safely.
func (h *Hub) Unsubscribe(connID string) {
	_ = h.do(context.Background(), func() {
		h.remove(connID)
	})
}

// Publish fans an event out to every connection whose topic matches exactly.
// It returns the number of connections targeted.
func (h *Hub) Publish(topic string, evt Event) int {
	delivered := 0
	_ = h.do(context.Background(), func() {
		for _, conn := range h.byTopic[topic] {
			h.send(conn, evt)
			delivered++
		}
	})
	return delivered
}

// Touch refreshes a connection's last-activity timestamp. Invoked on every
// inbound client liveness signal.
func (h *Hub) Touch(connID string) {
	_ = h.do(context.Background(), func() {
		if conn, ok := h.conns[connID]; ok {
			conn.lastSeen = h.now()
		}
	})
}

// Counts returns the current subscriber count per topic.
func (h *Hub) Counts() map[string]int {
	out := make(map[string]int)
	_ = h.do(context.Background(), func() {
		for topic, conns := range h.byTopic {
			if len(conns) > 0 {
				out[topic] = len(conns)
			}
		}
	})
	return out
}

func (h *Hub) run(ctx context.Context) {
	heartbeat := time.NewTicker(h.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	sweep := time.NewTicker(h.cfg.SweepInterval)
	defer sweep.Stop()

	h.logger.Info("stream hub started",
		"heartbeat_interval", h.cfg.HeartbeatInterval.String(),
		"sweep_interval", h.cfg.SweepInterval.String(),
		"idle_timeout", h.cfg.IdleTimeout.String(),
	)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-h.quit:
			h.shutdown()
			return
		case op := <-h.ops:
			op()
		case <-heartbeat.C:
			evt := NewHeartbeat()
			for _, conn := range h.conns {
				h.send(conn, evt)
			}
		case <-sweep.C:
			h.sweepIdle()
		}
	}
}

// do runs op on the coordinator goroutine and waits for it to complete.
func (h *Hub) do(ctx context.Context, op func()) error {
	done := make(chan struct{})
	wrapped := func() {
		op()
		close(done)
	}

	select {
	case h.ops <- wrapped:
	case <-h.quit:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.quit:
		return ErrHubClosed
	}
}

// send queues an event without blocking the coordinator. A full buffer means
// the subscriber's writer is stalled; the event is dropped and the client
// catches up from the next snapshot broadcast.
func (h *Hub) send(conn *connState, evt Event) {
	select {
	case conn.events <- evt:
	default:
		h.dropped++
		h.logger.Debug("stream event dropped", "connection_id", conn.id, "sport", conn.topic, "type", string(evt.Type))
	}
}

func (h *Hub) remove(connID string) {
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	if topicConns, ok := h.byTopic[conn.topic]; ok {
		delete(topicConns, connID)
		if len(topicConns) == 0 {
			delete(h.byTopic, conn.topic)
		}
	}
	close(conn.events)
}

func (h *Hub) sweepIdle() {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)
	var stale []string
	for connID, conn := range h.conns {
		if conn.lastSeen.Before(cutoff) {
			stale = append(stale, connID)
		}
	}
	for _, connID := range stale {
		h.remove(connID)
	}
	if len(stale) > 0 {
		h.logger.Info("stream pruned idle connections", "count", len(stale))
	}
}

func (h *Hub) shutdown() {
	for connID := range h.conns {
		h.remove(connID)
	}
	h.logger.Info("stream hub stopped", "dropped_events", h.dropped)
}
