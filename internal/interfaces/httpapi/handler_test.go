package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/SolanaSergio/apexbets-live/internal/infrastructure/repository/memory"
	"github.com/SolanaSergio/apexbets-live/internal/platform/cache"
	"github.com/SolanaSergio/apexbets-live/internal/platform/logging"
	"github.com/SolanaSergio/apexbets-live/internal/stream"
	"github.com/SolanaSergio/apexbets-live/internal/usecase"
)

const testBroadcastToken = "test-broadcast-token"

type testServer struct {
	srv  *httptest.Server
	hub  *stream.Hub
	live *usecase.LiveUpdateService
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	repo := memory.NewGameRepository(memory.SeedGames(time.Now()))
	queries := usecase.NewGameQueryService(repo, cache.NewStore(time.Minute), usecase.GameQueryConfig{})

	hub := stream.NewHub(stream.HubConfig{
		HeartbeatInterval: time.Hour,
		SweepInterval:     time.Hour,
	}, logging.NewNop())
	hub.Start(context.Background())
	t.Cleanup(hub.Close)

	live := usecase.NewLiveUpdateService(queries, hub, usecase.LiveUpdateConfig{
		Sports:   []string{"basketball", "hockey"},
		Interval: time.Hour,
	}, logging.NewNop())
	t.Cleanup(live.Stop)

	handler := NewHandler(queries, live, hub, logging.NewNop())
	router := NewRouter(handler, logging.NewNop(), []string{"*"}, testBroadcastToken)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return testServer{srv: srv, hub: hub, live: live}
}

func TestHandler_Healthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestHandler_ReadyzReflectsPollerState(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the first poll cycle, got %d", resp.StatusCode)
	}

	ts.live.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for !ts.live.IsReady() {
		if time.Now().After(deadline) {
			t.Fatalf("poller never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err = http.Get(ts.srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after a successful poll cycle, got %d", resp.StatusCode)
	}
}

func TestHandler_ListGames(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/v1/games?sport=basketball")
	if err != nil {
		t.Fatalf("get games: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var envelope struct {
		Data gameListDTO `json:"data"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Sport != "basketball" {
		t.Fatalf("unexpected sport: %q", envelope.Data.Sport)
	}
	if len(envelope.Data.Games) == 0 {
		t.Fatalf("expected seeded games")
	}
	for _, g := range envelope.Data.Games {
		if g.HomeTeam.Name == "" || g.AwayTeam.Name == "" {
			t.Fatalf("team names must never be empty: %+v", g)
		}
	}
}

func TestHandler_ListGamesRequiresSport(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/v1/games")
	if err != nil {
		t.Fatalf("get games: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without sport, got %d", resp.StatusCode)
	}
}

func TestHandler_ListLiveGamesOnlyLive(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/v1/games/live?sport=basketball")
	if err != nil {
		t.Fatalf("get live games: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data gameListDTO `json:"data"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data.Games) == 0 {
		t.Fatalf("expected a seeded live game")
	}
	for _, g := range envelope.Data.Games {
		if !g.Status.IsLive() {
			t.Fatalf("non-live game in live list: %+v", g)
		}
	}
}

func TestHandler_StreamDeliversEvents(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.srv.URL+"/v1/stream?sport=basketball", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	types := make(map[stream.EventType]bool)
	for i := 0; i < 2 && scanner.Scan(); i++ {
		evt, err := stream.DecodeEvent(scanner.Bytes())
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		types[evt.Type] = true
	}
	if !types[stream.EventConnected] || !types[stream.EventGameUpdate] {
		t.Fatalf("expected connected and snapshot events, got %v", types)
	}

	if delivered := ts.hub.Publish("basketball", stream.NewHeartbeat()); delivered != 1 {
		t.Fatalf("expected 1 stream subscriber, got %d", delivered)
	}
	if !scanner.Scan() {
		t.Fatalf("expected heartbeat line: %v", scanner.Err())
	}
	evt, err := stream.DecodeEvent(scanner.Bytes())
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if evt.Type != stream.EventHeartbeat {
		t.Fatalf("expected heartbeat, got %q", evt.Type)
	}
}

func TestHandler_ClientFollowsStream(t *testing.T) {
	ts := newTestServer(t)

	transport := stream.NewHTTPTransport(ts.srv.Client(), ts.srv.URL)
	client := stream.NewClient(transport, stream.ClientConfig{
		Topic: "basketball",
		Backoff: stream.BackoffConfig{
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   50 * time.Millisecond,
			MaxRetries: 3,
		},
		Logger: logging.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(client.Games()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never received the initial snapshot")
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, g := range client.Games() {
		if g.HomeTeam.Name == "" || g.AwayTeam.Name == "" {
			t.Fatalf("client game missing team name: %+v", g)
		}
	}
	if state := client.State(); state != stream.StateOpen {
		t.Fatalf("expected open stream, got %v", state)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not stop on cancel")
	}
}

func TestHandler_BroadcastRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	body := `{"sport":"basketball","games":[{"id":"gm-x","sport":"basketball","homeTeam":{"name":"A"},"awayTeam":{"name":"B"},"status":"live"}]}`
	resp, err := http.Post(ts.srv.URL+"/v1/internal/broadcast", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post broadcast: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestHandler_BroadcastValidatesAndPublishes(t *testing.T) {
	ts := newTestServer(t)

	conn, err := ts.hub.Subscribe(context.Background(), "basketball")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-conn.Events // connected

	doBroadcast := func(body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/v1/internal/broadcast", strings.NewReader(body))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Internal-Broadcast-Token", testBroadcastToken)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post broadcast: %v", err)
		}
		return resp
	}

	resp := doBroadcast(`{"sport":"basketball","games":[]}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty batch, got %d", resp.StatusCode)
	}

	resp = doBroadcast(`{"sport":"all","games":[{"id":"gm-x","sport":"basketball","homeTeam":{"name":"A"},"awayTeam":{"name":"B"},"status":"live"}]}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wildcard broadcast, got %d", resp.StatusCode)
	}

	resp = doBroadcast(`{"sport":"basketball","games":[{"id":"gm-x","sport":"basketball","homeTeam":{"name":"A"},"awayTeam":{"name":"B"},"status":"live"}]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var envelope struct {
		Data broadcastResponseDTO `json:"data"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Subscribers != 1 {
		t.Fatalf("expected 1 subscriber, got %d", envelope.Data.Subscribers)
	}

	select {
	case evt := <-conn.Events:
		if evt.Type != stream.EventGameUpdate {
			t.Fatalf("expected game update, got %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("broadcast never reached the subscriber")
	}
}

func TestHandler_BroadcastNormalizesGames(t *testing.T) {
	ts := newTestServer(t)

	conn, err := ts.hub.Subscribe(context.Background(), "basketball")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-conn.Events // connected

	body := `{"sport":"basketball","games":[{"id":" gm-raw ","sport":"Basketball","homeTeam":{},"awayTeam":{"name":"Boston Celtics"},"status":"in_progress"}]}`
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/v1/internal/broadcast", strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Broadcast-Token", testBroadcastToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post broadcast: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	select {
	case evt := <-conn.Events:
		payload, ok := evt.Data.(stream.GameUpdatePayload)
		if !ok {
			t.Fatalf("unexpected event data: %T", evt.Data)
		}
		if len(payload.Games) != 1 {
			t.Fatalf("unexpected batch: %+v", payload.Games)
		}
		g := payload.Games[0]
		if g.ID != "gm-raw" || g.Sport != "basketball" {
			t.Fatalf("fields not canonical: %+v", g)
		}
		if g.HomeTeam.Name != "Home Team" {
			t.Fatalf("missing team must get the placeholder, got %q", g.HomeTeam.Name)
		}
		if !g.Status.IsLive() {
			t.Fatalf("raw status must fold to live, got %q", g.Status)
		}
	case <-time.After(time.Second):
		t.Fatalf("broadcast never reached the subscriber")
	}
}
