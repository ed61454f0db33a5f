// Package fakeserver implements a scripted stand-in for the analysis
// service, for demos and integration tests.
package fakeserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Run is the scripted outcome of one analysis run.
type Run struct {
	ID     triage.RunID
	Ticket string

	// Payloads are pushed on the run's event channel in order, after
	// which the channel ends.
	Payloads []string
	RCA      string
	Files    triage.DiffBundle
}

// Scripter builds the run started for a ticket. The run's ID is assigned
// by the server.
type Scripter func(ticket string) Run

// Server serves the analysis API from scripted runs.
type Server struct {
	echo     *echo.Echo
	upgrader websocket.Upgrader
	logger   *log.Logger
	script   Scripter
	interval time.Duration

	mu    sync.Mutex
	runs  map[triage.RunID]Run
	creds *triage.Credentials
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithScripter replaces DefaultScript.
func WithScripter(fn Scripter) Option {
	return func(s *Server) { s.script = fn }
}

// WithInterval sets the pause between pushed payloads.
func WithInterval(d time.Duration) Option {
	return func(s *Server) { s.interval = d }
}

// New creates a Server with its routes registered.
func New(opts ...Option) *Server {
	s := &Server{
		echo: echo.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		script: DefaultScript,
		runs:   make(map[triage.RunID]Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "request_id", v.RequestID)
			return nil
		},
	}))

	api := e.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/config", s.handleConfig)
	api.GET("/rca/:runId", s.handleRCA)
	api.POST("/suggest-changes/:runId", s.handleSuggest)
	api.GET("/events/:runId/stream", s.handleStream)
	api.GET("/events/:runId/ws", s.handleWebSocket)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// AddRun registers run under its ID, replacing any existing one.
func (s *Server) AddRun(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// Credentials returns the last saved credentials, if any.
func (s *Server) Credentials() (triage.Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return triage.Credentials{}, false
	}
	return *s.creds, true
}

func (s *Server) run(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[triage.RunID(id)]
	return run, ok
}

type analyzeRequest struct {
	JiraID string `json:"jiraId"`
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body")
	}
	ticket := strings.TrimSpace(req.JiraID)
	if ticket == "" {
		return c.String(http.StatusBadRequest, "jiraId is required")
	}

	run := s.script(ticket)
	run.ID = triage.RunID("run_" + uuid.NewString()[:8])
	run.Ticket = ticket
	s.AddRun(run)
	s.logger.Info("run started", "run", run.ID, "ticket", ticket)

	return c.JSON(http.StatusOK, map[string]string{"runId": string(run.ID)})
}

func (s *Server) handleConfig(c echo.Context) error {
	var creds triage.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body")
	}
	if err := creds.Validate(); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	creds = creds.Trimmed()

	s.mu.Lock()
	s.creds = &creds
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRCA(c echo.Context) error {
	run, ok := s.run(c.Param("runId"))
	if !ok {
		return c.String(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"rca": run.RCA})
}

func (s *Server) handleSuggest(c echo.Context) error {
	run, ok := s.run(c.Param("runId"))
	if !ok {
		return c.String(http.StatusNotFound, "run not found")
	}
	files := run.Files
	if files == nil {
		files = triage.DiffBundle{}
	}
	return c.JSON(http.StatusOK, map[string]triage.DiffBundle{"files": files})
}

func (s *Server) handleStream(c echo.Context) error {
	run, ok := s.run(c.Param("runId"))
	if !ok {
		return c.String(http.StatusNotFound, "run not found")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	for i, payload := range run.Payloads {
		if i > 0 && !s.pause(ctx) {
			return nil
		}
		for _, line := range strings.Split(payload, "\n") {
			if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
				return nil
			}
		}
		if _, err := fmt.Fprint(w, "\n"); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}

func (s *Server) handleWebSocket(c echo.Context) error {
	run, ok := s.run(c.Param("runId"))
	if !ok {
		return c.String(http.StatusNotFound, "run not found")
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return nil
	}
	defer conn.Close()

	// Reader only notices the client going away.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i, payload := range run.Payloads {
		if i > 0 && !s.pause(ctx) {
			return nil
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return nil
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return nil
}

// pause waits the configured interval, reporting false if ctx ends first.
func (s *Server) pause(ctx context.Context) bool {
	if s.interval <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.interval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DefaultScript plays a short investigation ending in one suggested fix.
func DefaultScript(ticket string) Run {
	msg := func(kind triage.EventKind, text string) string {
		data, _ := json.Marshal(triage.StreamEvent{Kind: kind, Text: text})
		return string(data)
	}
	return Run{
		Payloads: []string{
			msg(triage.KindMessage, "Fetching "+ticket),
			msg(triage.KindMessage, "Collecting logs for the last 24h"),
			"heartbeat",
			msg(triage.KindError, "Log source payments-api timed out, continuing without it"),
			msg(triage.KindMessage, "Correlating stack traces"),
			msg(triage.KindMessage, "Root cause identified"),
		},
		RCA: ticket + ": the retry loop in the order worker re-reads a stale cache entry, " +
			"so a failed payment is retried with the old amount.",
		Files: triage.DiffBundle{
			"internal/order/worker.go": {Changes: strings.Join([]string{
				"func (w *Worker) retry(ctx context.Context, id string) error {",
				"-\torder := w.cache.Get(id)",
				"+\torder, err := w.store.Load(ctx, id)",
				"+\tif err != nil {",
				"+\t\treturn err",
				"+\t}",
				"\treturn w.charge(ctx, order)",
				"}",
				"",
			}, "\n")},
			"internal/order/cache.go": {Changes: strings.Join([]string{
				"-const ttl = 24 * time.Hour",
				"+const ttl = 5 * time.Minute",
				"",
			}, "\n")},
		},
	}
}
