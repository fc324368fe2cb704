// Package control exposes the voice controller to other processes as MCP
// tools over a websocket, next to /health and /metrics.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/voice"
)

// Controller is the part of *voice.Controller the tools call.
type Controller interface {
	Toggle()
	Start() error
	Stop()
	SendVoiceCommand(ctx context.Context, text string) voice.Outcome
	Speak(text string)
	StopVoiceSpeaking()
	Status() voice.Status
}

// Tool names.
const (
	ToolToggle           = "toggle"
	ToolStart            = "start"
	ToolStop             = "stop"
	ToolSendVoiceCommand = "send_voice_command"
	ToolSpeak            = "speak"
	ToolStopSpeaking     = "stop_speaking"
	ToolStatus           = "status"
)

// OutcomeResult is the JSON form of a voice.Outcome.
type OutcomeResult struct {
	Intent  string `json:"intent,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message,omitempty"`
	Spoken  string `json:"spoken,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// StatusResult is the JSON form of a voice.Status.
type StatusResult struct {
	State     string         `json:"state"`
	Supported bool           `json:"supported"`
	SessionID string         `json:"session_id,omitempty"`
	Speaking  bool           `json:"speaking"`
	Last      *OutcomeResult `json:"last,omitempty"`
}

func outcomeResult(o voice.Outcome) OutcomeResult {
	r := OutcomeResult{
		Phase:   string(o.Phase),
		Message: o.Message,
		Spoken:  o.Spoken,
		Status:  o.StatusLabel(),
	}
	if o.Intent.Kind != voice.KindUnknown || o.Intent.RawType != "" {
		r.Intent = o.Intent.Kind.String()
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

func statusResult(s voice.Status) StatusResult {
	r := StatusResult{
		State:     s.State.String(),
		Supported: s.Supported,
		SessionID: s.SessionID,
		Speaking:  s.Speaking,
	}
	if s.Last.Phase != "" {
		last := outcomeResult(s.Last)
		r.Last = &last
	}
	return r
}

type commandArgs struct {
	Command string `json:"command" jsonschema:"the command text, as it would be spoken"`
}

type speakArgs struct {
	Text string `json:"text" jsonschema:"text to speak"`
}

type noArgs struct{}

// Server serves the control surface.
type Server struct {
	ctl      Controller
	mcp      *sdk.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*sdk.ServerSession]struct{}
}

func NewServer(ctl Controller, version string) *Server {
	s := &Server{
		ctl:      ctl,
		mcp:      sdk.NewServer(&sdk.Implementation{Name: "inbox-voice-assistant", Version: version}, nil),
		mux:      http.NewServeMux(),
		sessions: make(map[*sdk.ServerSession]struct{}),
	}
	s.registerTools()
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/mcp/ws", s.serveWS)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func jsonResult(v any) (*sdk.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(b)}}}, nil, nil
}

func toolError(msg string) (*sdk.CallToolResult, any, error) {
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: msg}},
	}, nil, nil
}

func (s *Server) status() (*sdk.CallToolResult, any, error) {
	return jsonResult(statusResult(s.ctl.Status()))
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolToggle, Description: "Start listening when idle, stop when listening"},
		func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
			s.ctl.Toggle()
			return s.status()
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStart, Description: "Open a recognition session"},
		func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
			if err := s.ctl.Start(); err != nil {
				return toolError(err.Error())
			}
			return s.status()
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStop, Description: "Stop listening, cancel any request in flight and silence speech"},
		func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
			s.ctl.Stop()
			return s.status()
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolSendVoiceCommand, Description: "Classify a command as if it had been spoken and run it"},
		func(ctx context.Context, req *sdk.CallToolRequest, args commandArgs) (*sdk.CallToolResult, any, error) {
			if strings.TrimSpace(args.Command) == "" {
				return toolError("command is required")
			}
			logging.InfowCtx(ctx, "control: voice command", "command", args.Command)
			return jsonResult(outcomeResult(s.ctl.SendVoiceCommand(ctx, args.Command)))
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolSpeak, Description: "Speak text, interrupting any current speech"},
		func(ctx context.Context, req *sdk.CallToolRequest, args speakArgs) (*sdk.CallToolResult, any, error) {
			if strings.TrimSpace(args.Text) == "" {
				return toolError("text is required")
			}
			s.ctl.Speak(args.Text)
			return s.status()
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStopSpeaking, Description: "Cancel any speech in progress"},
		func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
			s.ctl.StopVoiceSpeaking()
			return s.status()
		})
	sdk.AddTool(s.mcp, &sdk.Tool{Name: ToolStatus, Description: "Report controller state and the last outcome"},
		func(ctx context.Context, req *sdk.CallToolRequest, _ noArgs) (*sdk.CallToolResult, any, error) {
			return s.status()
		})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("control: websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	t := newWebSocketTransport(conn)
	go func() {
		session, err := s.mcp.Connect(context.Background(), t, nil)
		if err != nil {
			logging.Warnw("control: mcp connect failed", "err", err)
			_ = conn.Close()
			return
		}
		s.track(session, true)
		defer s.track(session, false)
		logging.Debugw("control: session opened", "session_id", t.id, "remote", r.RemoteAddr)
		if err := session.Wait(); err != nil {
			logging.Debugw("control: session ended", "session_id", t.id, "err", err)
			return
		}
		logging.Debugw("control: session ended", "session_id", t.id)
	}()
}

func (s *Server) track(ss *sdk.ServerSession, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.sessions[ss] = struct{}{}
	} else {
		delete(s.sessions, ss)
	}
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	open := make([]*sdk.ServerSession, 0, len(s.sessions))
	for ss := range s.sessions {
		open = append(open, ss)
	}
	s.mu.Unlock()
	for _, ss := range open {
		_ = ss.Close()
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	logging.Infow("control: listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.closeSessions()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
