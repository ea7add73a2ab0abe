package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nemaniarjun/storyengine/internal/dispatch"
	"github.com/nemaniarjun/storyengine/internal/eventlog"
	"github.com/nemaniarjun/storyengine/internal/storymodel"
	"github.com/nemaniarjun/storyengine/internal/storyrun"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wires the dispatch core and story walker into an HTTP process:
// the inbound gateway (one route per bootstrapped app/story), the
// subscription callback endpoint, and the metrics endpoint.
type Server struct {
	Executor *dispatch.Executor
	Metrics  *Metrics
	EventLog *eventlog.Log
	ZL       zerolog.Logger
	Sink     storyrun.ResultSink

	mu   sync.RWMutex
	apps map[string]*storymodel.Application
}

// NewServer returns a Server with no applications registered yet.
func NewServer(executor *dispatch.Executor, metrics *Metrics, log *eventlog.Log, zl zerolog.Logger, sink storyrun.ResultSink) *Server {
	return &Server{
		Executor: executor,
		Metrics:  metrics,
		EventLog: log,
		ZL:       zl,
		Sink:     sink,
		apps:     make(map[string]*storymodel.Application),
	}
}

// RegisterApp makes app available to the gateway and event endpoints under
// its own AppID.
func (s *Server) RegisterApp(app *storymodel.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.AppID] = app
}

func (s *Server) app(id string) (*storymodel.Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	return app, ok
}

func (s *Server) loggerFor(story string) storymodel.Logger {
	return eventlog.NewLogger(s.EventLog, s.ZL, story)
}

// Mux builds the HTTP routing table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/gateway/", s.handleGateway)
	mux.HandleFunc("/story/event", s.handleEvent)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// handleGateway serves an inbound request that triggers a story whose
// `http` service line never completes its own dispatch — it stays open
// until the story issues a `finish` (the inline transport, spec.md §4.5).
// Path shape: /gateway/{appID}/{storyName}.
func (s *Server) handleGateway(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/gateway/"), "/", 2)
	if len(parts) != 2 {
		http.Error(w, "expected /gateway/{app}/{story}", http.StatusBadRequest)
		return
	}
	appID, storyName := parts[0], parts[1]

	app, ok := s.app(appID)
	if !ok {
		http.Error(w, "unknown app", http.StatusNotFound)
		return
	}
	tree, ok := app.GetStory(storyName)
	if !ok {
		http.Error(w, "unknown story", http.StatusNotFound)
		return
	}

	conn := NewGatewayConn(w)
	story := storyrun.NewStory(storyName, tree, app, s.loggerFor(storyName))
	story.Context().Set(storymodel.ServerRequestKey, dispatch.ServerRequest(conn))
	story.Context().Set(storymodel.ServerIOLoopKey, dispatch.IOLoop(conn))

	walker := storyrun.NewWalker(s.Executor, s.Sink)

	start := time.Now()
	go func() {
		err := walker.Run(r.Context(), story)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			s.ZL.Error().Err(err).Str("story", storyName).Msg("story run failed")
			conn.Schedule(conn.Finish)
		}
		if s.Metrics != nil {
			s.Metrics.DispatchTotal.WithLabelValues(outcome).Inc()
			s.Metrics.DispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		}
	}()
	conn.Wait()
}

// handleEvent is the Subscription Manager's callback target
// (asyncy/processing/Services.py:when's sub_body.endpoint): a streaming
// service POSTs an event payload here once it fires, identified by the
// query params a subscription was registered with (story, block, app).
// The walker resumes from the `when` line's declared successor with the
// posted payload recorded as that line's result.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	appID, storyName, block := q.Get("app"), q.Get("story"), q.Get("block")
	if appID == "" || storyName == "" || block == "" {
		http.Error(w, "missing story/block/app query parameters", http.StatusBadRequest)
		return
	}

	app, ok := s.app(appID)
	if !ok {
		http.Error(w, "unknown app", http.StatusNotFound)
		return
	}
	tree, ok := app.GetStory(storyName)
	if !ok {
		http.Error(w, "unknown story", http.StatusNotFound)
		return
	}
	line, ok := tree.Lines[block]
	if !ok {
		http.Error(w, "unknown line", http.StatusNotFound)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	story := storyrun.NewStory(storyName, tree, app, s.loggerFor(storyName))
	story.RecordResult(block, payload)

	walker := storyrun.NewWalker(s.Executor, s.Sink)
	if line.Next != "" {
		go func() {
			if err := walker.ContinueFrom(r.Context(), story, line.Next); err != nil {
				s.ZL.Error().Err(err).Str("story", storyName).Msg("event continuation failed")
			}
		}()
	}

	w.WriteHeader(http.StatusNoContent)
}
