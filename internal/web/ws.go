package web

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"github.com/tyemill/snowline-agent/internal/agent"
	"github.com/tyemill/snowline-agent/internal/charts"
	"github.com/tyemill/snowline-agent/internal/noaa"
)

// Keepalive tuning. Variables so tests can shrink the windows.
var (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// maxInboundBytes bounds a single chat message.
const maxInboundBytes = 8 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is what the browser sends.
type clientMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// serverEvent is what the server pushes. Exactly one payload field is set
// per type: token/status/error carry Data, message carries Text and HTML,
// charts carries Charts.
type serverEvent struct {
	Type   string         `json:"type"`
	Data   string         `json:"data,omitempty"`
	Text   string         `json:"text,omitempty"`
	HTML   string         `json:"html,omitempty"`
	Charts *charts.Bundle `json:"charts,omitempty"`
}

// session is one websocket connection. Writes are serialized; the token
// stream, chart pushes, and keepalive pings share the connection.
type session struct {
	conn   *websocket.Conn
	logger *slog.Logger
	convID string

	mu sync.Mutex
}

func (sess *session) send(ev serverEvent) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sess.conn.WriteJSON(ev)
}

func (sess *session) ping() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// A returning client supplies its conversation id so stored history
	// survives reconnects; anything unparseable starts a fresh conversation.
	convID := r.URL.Query().Get("conversation")
	if _, err := uuid.Parse(convID); err != nil {
		convID = uuid.NewString()
	}

	sess := &session{
		conn:   conn,
		logger: s.logger,
		convID: convID,
	}
	s.logger.Info("chat session opened", "conversation", sess.convID, "remote", r.RemoteAddr)

	conn.SetReadLimit(maxInboundBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sess.ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Responses run off the read loop so pongs keep arriving while a
	// local model spends minutes on a turn; a single worker per session
	// keeps turns serialized within the conversation.
	msgs := make(chan clientMessage, 8)
	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		for msg := range msgs {
			// Browsers retry sends after reconnect hiccups; drop replays.
			if s.dedup.Seen(sess.convID + ":" + msg.ID) {
				s.logger.Debug("duplicate message dropped", "conversation", sess.convID, "id", msg.ID)
				continue
			}
			s.respond(ctx, sess, msg.Text)
		}
	}()
	defer func() {
		cancel()
		close(msgs)
		worker.Wait()
	}()

	sess.send(serverEvent{Type: "status", Data: "Connected to Snowline. Ask about Stevens Pass conditions."})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("chat session read failed", "conversation", sess.convID, "error", err)
			}
			return
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		select {
		case msgs <- msg:
		default:
			sess.send(serverEvent{Type: "status", Data: "Still answering earlier questions; send that again in a moment."})
		}
	}
}

// respond runs one user message through the agent loop and streams the
// outcome back over the session.
func (s *Server) respond(ctx context.Context, sess *session, text string) {
	if err := s.gateway.Ping(ctx); err != nil {
		s.logger.Error("model provider unreachable", "provider", s.provider, "error", err)
		sess.send(serverEvent{
			Type: "error",
			Data: fmt.Sprintf("The %s model provider is unreachable right now. Check that it is running and try again.", s.provider),
		})
		return
	}

	history := s.history(sess.convID)

	sess.send(serverEvent{Type: "start"})

	// Local models can sit silent for a while, especially mid tool chain
	// where the stream gate holds tokens back. Keep the user informed.
	runCtx, done := context.WithCancel(ctx)
	defer done()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sess.send(serverEvent{Type: "status", Data: "Still working on it..."})
			case <-runCtx.Done():
				return
			}
		}
	}()

	result, err := s.loop.Run(ctx, text, history, func(token string) {
		sess.send(serverEvent{Type: "token", Data: token})
	})
	done()
	if err != nil {
		s.logger.Error("agent run failed", "conversation", sess.convID, "error", err)
		sess.send(serverEvent{
			Type: "error",
			Data: "Something went wrong while generating a response. Please try again.",
		})
		return
	}

	sess.send(serverEvent{
		Type: "message",
		Text: result.FinalText,
		HTML: renderMarkdown(result.FinalText),
	})

	for _, effect := range result.SideEffects {
		if effect.Kind != "weather_grid" {
			continue
		}
		grid, ok := effect.Payload.(*noaa.GridData)
		if !ok {
			continue
		}
		if bundle := charts.Build(grid); bundle != nil {
			sess.send(serverEvent{Type: "charts", Charts: bundle})
		}
	}

	s.persist(sess.convID, len(history), result)
}

// history loads stored turns; without a store each run starts fresh.
func (s *Server) history(convID string) []agent.Turn {
	if s.store == nil {
		return nil
	}
	turns, err := s.store.History(convID)
	if err != nil {
		s.logger.Warn("history load failed", "conversation", convID, "error", err)
		return nil
	}
	return turns
}

// persist appends the turns this run added beyond the replayed history.
func (s *Server) persist(convID string, priorLen int, result *agent.Result) {
	if s.store == nil || len(result.Turns) <= priorLen {
		return
	}
	if err := s.store.AppendTurns(convID, result.Turns[priorLen:]); err != nil {
		s.logger.Warn("history save failed", "conversation", convID, "error", err)
	}
}

func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return buf.String()
}
