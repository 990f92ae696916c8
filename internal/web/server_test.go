package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tyemill/snowline-agent/internal/agent"
	"github.com/tyemill/snowline-agent/internal/llm"
	"github.com/tyemill/snowline-agent/internal/memory"
	"github.com/tyemill/snowline-agent/internal/noaa"
	"github.com/tyemill/snowline-agent/internal/notify"
	"github.com/tyemill/snowline-agent/internal/tools"
)

// stubGateway replays canned responses in order, recording every prompt.
// A non-zero delay simulates a slow local model.
type stubGateway struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	calls     int
	delay     time.Duration
	pingErr   error
}

func (g *stubGateway) next(prompt string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.calls >= len(g.responses) {
		return "out of responses"
	}
	r := g.responses[g.calls]
	g.calls++
	return r
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGateway) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *stubGateway) Generate(ctx context.Context, prompt string) (string, error) {
	time.Sleep(g.delay)
	return g.next(prompt), nil
}

func (g *stubGateway) GenerateStream(ctx context.Context, prompt string, cb llm.StreamCallback) (string, error) {
	time.Sleep(g.delay)
	resp := g.next(prompt)
	if cb != nil {
		for i := 0; i < len(resp); i += 4 {
			end := i + 4
			if end > len(resp) {
				end = len(resp)
			}
			cb(resp[i:end])
		}
	}
	return resp, nil
}

func (g *stubGateway) Ping(ctx context.Context) error { return g.pingErr }

func newTestServer(t *testing.T, gateway *stubGateway, registry *tools.Registry) *httptest.Server {
	t.Helper()
	if registry == nil {
		registry = tools.NewRegistry()
	}
	s := NewServer(Options{
		Loop:     agent.NewLoop(nil, gateway, registry),
		Gateway:  gateway,
		Registry: registry,
		Dedup:    notify.NewDedup(64),
		Provider: "ollama",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) serverEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev serverEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

// readUntil collects events until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) []serverEvent {
	t.Helper()
	var events []serverEvent
	for {
		ev := readEvent(t, conn)
		events = append(events, ev)
		if ev.Type == typ {
			return events
		}
	}
}

func sendMessage(t *testing.T, conn *websocket.Conn, id, text string) {
	t.Helper()
	if err := conn.WriteJSON(clientMessage{ID: id, Text: text}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestIndexServed(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "Snowline") {
		t.Error("index page missing app shell")
	}
}

func TestStatusEndpoint(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{Name: "search", Description: "kb", Handler: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})

	srv := newTestServer(t, &stubGateway{}, registry)
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["provider"] != "ollama" {
		t.Errorf("provider = %v", status["provider"])
	}
	if status["model"] != "ok" {
		t.Errorf("model = %v", status["model"])
	}
	toolNames, _ := status["tools"].([]any)
	if len(toolNames) != 1 || toolNames[0] != "search" {
		t.Errorf("tools = %v", status["tools"])
	}
}

func TestStatusModelUnreachable(t *testing.T) {
	srv := newTestServer(t, &stubGateway{pingErr: errors.New("refused")}, nil)
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var status map[string]any
	json.NewDecoder(resp.Body).Decode(&status)
	if status["model"] != "unreachable" {
		t.Errorf("model = %v", status["model"])
	}
}

func TestChatStreamsAndRendersMarkdown(t *testing.T) {
	gateway := &stubGateway{responses: []string{"Expect **9 inches** tonight."}}
	srv := newTestServer(t, gateway, nil)
	conn := dialWS(t, srv)

	if ev := readEvent(t, conn); ev.Type != "status" {
		t.Fatalf("first event = %+v, want status banner", ev)
	}

	sendMessage(t, conn, "m1", "how much snow tonight?")
	events := readUntil(t, conn, "message")

	var streamed strings.Builder
	sawStart := false
	for _, ev := range events {
		switch ev.Type {
		case "start":
			sawStart = true
		case "token":
			streamed.WriteString(ev.Data)
		}
	}
	if !sawStart {
		t.Error("missing start event")
	}
	if streamed.String() != "Expect **9 inches** tonight." {
		t.Errorf("streamed = %q", streamed.String())
	}

	final := events[len(events)-1]
	if final.Text != "Expect **9 inches** tonight." {
		t.Errorf("final text = %q", final.Text)
	}
	if !strings.Contains(final.HTML, "<strong>9 inches</strong>") {
		t.Errorf("markdown not rendered: %q", final.HTML)
	}
}

func TestChatToolCallPushesCharts(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{
		Name:        "stevens_pass_comprehensive_weather",
		Description: "weather",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			v := 50.8
			tools.Emit(ctx, "weather_grid", &noaa.GridData{
				SnowfallAmount: noaa.GridParam{Values: []noaa.GridValue{
					{ValidTime: "2026-01-10T12:00:00+00:00/PT6H", Value: &v},
				}},
			})
			return "grid fetched", nil
		},
	})

	gateway := &stubGateway{responses: []string{
		`{"action": "stevens_pass_comprehensive_weather", "input": {}}`,
		"Snow is coming.",
	}}
	srv := newTestServer(t, gateway, registry)
	conn := dialWS(t, srv)
	readEvent(t, conn) // banner

	sendMessage(t, conn, "m1", "whats the weather")
	readUntil(t, conn, "message")

	ev := readEvent(t, conn)
	if ev.Type != "charts" {
		t.Fatalf("event after message = %+v, want charts", ev)
	}
	if ev.Charts == nil || len(ev.Charts.Series) != 1 {
		t.Fatalf("charts = %+v", ev.Charts)
	}
	if ev.Charts.Series[0].Name != "Snowfall" {
		t.Errorf("series = %+v", ev.Charts.Series[0])
	}
}

func TestChatProviderUnreachable(t *testing.T) {
	gateway := &stubGateway{pingErr: errors.New("connection refused")}
	srv := newTestServer(t, gateway, nil)
	conn := dialWS(t, srv)
	readEvent(t, conn) // banner

	sendMessage(t, conn, "m1", "hello")
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("event = %+v, want error", ev)
	}
	if !strings.Contains(ev.Data, "ollama") {
		t.Errorf("error should name the provider: %q", ev.Data)
	}
}

func TestChatSurvivesSlowGeneration(t *testing.T) {
	restorePong, restorePing := pongWait, pingPeriod
	pongWait, pingPeriod = 400*time.Millisecond, 100*time.Millisecond
	defer func() { pongWait, pingPeriod = restorePong, restorePing }()

	// Generation outlasts the pong window; the read loop must keep
	// pumping so the keepalive exchange refreshes the read deadline.
	gateway := &stubGateway{
		responses: []string{"first answer", "second answer"},
		delay:     3 * pongWait,
	}
	srv := newTestServer(t, gateway, nil)
	conn := dialWS(t, srv)
	readEvent(t, conn) // banner

	sendMessage(t, conn, "m1", "slow question")
	events := readUntil(t, conn, "message")
	if events[len(events)-1].Text != "first answer" {
		t.Fatalf("first reply = %q", events[len(events)-1].Text)
	}

	// The session must still accept a follow-up.
	sendMessage(t, conn, "m2", "and tomorrow?")
	events = readUntil(t, conn, "message")
	if events[len(events)-1].Text != "second answer" {
		t.Fatalf("follow-up reply = %q", events[len(events)-1].Text)
	}
}

func TestChatResumesConversationAcrossReconnects(t *testing.T) {
	store, err := memory.NewStore(filepath.Join(t.TempDir(), "snowline.db"), 50)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gateway := &stubGateway{responses: []string{"three inches", "as I said, three inches"}}
	registry := tools.NewRegistry()
	s := NewServer(Options{
		Loop:     agent.NewLoop(nil, gateway, registry),
		Gateway:  gateway,
		Registry: registry,
		Store:    store,
		Provider: "ollama",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?conversation=" + uuid.NewString()

	conn1, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readEvent(t, conn1) // banner
	sendMessage(t, conn1, "m1", "how much snow fell?")
	readUntil(t, conn1, "message")
	conn1.Close()

	conn2, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("redial: %v", err)
	}
	t.Cleanup(func() { conn2.Close() })
	readEvent(t, conn2) // banner
	sendMessage(t, conn2, "m2", "repeat that")
	readUntil(t, conn2, "message")

	prompt := gateway.lastPrompt()
	if !strings.Contains(prompt, "how much snow fell?") || !strings.Contains(prompt, "three inches") {
		t.Errorf("stored history not replayed into the prompt:\n%s", prompt)
	}
	if stats := store.Stats(); stats["conversations"] != 1 {
		t.Errorf("conversations = %v, want 1", stats["conversations"])
	}
}

func TestChatPersistsTurns(t *testing.T) {
	store, err := memory.NewStore(filepath.Join(t.TempDir(), "snowline.db"), 50)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gateway := &stubGateway{responses: []string{"bring skis"}}
	registry := tools.NewRegistry()
	s := NewServer(Options{
		Loop:     agent.NewLoop(nil, gateway, registry),
		Gateway:  gateway,
		Registry: registry,
		Store:    store,
		Provider: "ollama",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv)
	readEvent(t, conn) // banner
	sendMessage(t, conn, "m1", "should I bring skis?")
	readUntil(t, conn, "message")
	conn.Close()

	stats := store.Stats()
	if stats["conversations"] != 1 {
		t.Errorf("conversations = %v", stats["conversations"])
	}
	if stats["turns"] != 2 {
		t.Errorf("turns = %v, want user + assistant", stats["turns"])
	}
}

func TestChatDuplicateMessagesDropped(t *testing.T) {
	gateway := &stubGateway{responses: []string{"first answer", "second answer"}}
	srv := newTestServer(t, gateway, nil)
	conn := dialWS(t, srv)
	readEvent(t, conn) // banner

	sendMessage(t, conn, "same-id", "hello")
	readUntil(t, conn, "message")

	// Replay with the same ID, then a fresh message.
	sendMessage(t, conn, "same-id", "hello")
	sendMessage(t, conn, "fresh-id", "hello again")
	events := readUntil(t, conn, "message")

	if gateway.callCount() != 2 {
		t.Errorf("gateway calls = %d, want 2 (duplicate dropped)", gateway.callCount())
	}
	final := events[len(events)-1]
	if final.Text != "second answer" {
		t.Errorf("final = %q", final.Text)
	}
}
