// Package web provides the kiosk HTTP surface for the diagnostics daemon:
// status pages, the export document, and the input endpoints that feed the
// event loop.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sweeney/phone-diagnostics/internal/logic"
	"github.com/sweeney/phone-diagnostics/internal/report"
	"github.com/sweeney/phone-diagnostics/internal/status"
)

// Command is a request for the event loop. Exactly one of Input or Reset is meaningful.
type Command struct {
	Input logic.Input
	Reset bool
}

// maxBody caps request bodies on the input endpoints.
const maxBody = 4 << 10

// enqueueTimeout bounds how long a handler waits for the event loop.
const enqueueTimeout = 2 * time.Second

// Server serves the status page and accepts input over HTTP.
// Handlers only read the tracker; every mutation goes through commands.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- Command
	now        func() time.Time
}

// New creates a Server that reads state from the given tracker and sends
// input to commands.
func New(addr string, tracker *status.Tracker, commands chan<- Command) *Server {
	s := &Server{tracker: tracker, commands: commands, now: time.Now}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/export.json", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/touch/layout", s.handleLayout).Methods(http.MethodPost)
	r.HandleFunc("/touch", s.handlePointer).Methods(http.MethodPost)
	r.HandleFunc("/action/{name}", s.handleAction).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	return r
}

// Handler returns the routed handler, for embedding in tests or other servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	data, err := report.FormatExport(snap.Hardware, snap.Results)
	if err != nil {
		log.Printf("web: %v", err)
		http.Error(w, "export unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `inline; filename="diagnostics.json"`)
	w.Write(data)
}

type layoutRequest struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.X == nil || req.Y == nil || req.Width == nil || req.Height == nil {
		http.Error(w, "layout: x, y, width and height are required", http.StatusBadRequest)
		return
	}
	layout := logic.Layout{X: *req.X, Y: *req.Y, Width: *req.Width, Height: *req.Height}
	if err := layout.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.accept(w, r, Command{Input: logic.Input{Kind: logic.InputLayout, Time: s.now(), Layout: layout}})
}

type pointerRequest struct {
	Phase string   `json:"phase"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.X == nil || req.Y == nil {
		http.Error(w, "pointer: x and y are required", http.StatusBadRequest)
		return
	}
	ev, err := logic.NewPointerEvent(req.Phase, *req.X, *req.Y)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.accept(w, r, Command{Input: logic.Input{Kind: logic.InputPointer, Time: s.now(), Pointer: ev}})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action, err := logic.ParseAction(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.accept(w, r, Command{Input: logic.Input{Kind: logic.InputAction, Time: s.now(), Action: action}})
}

// handleReset restarts the session. The status page posts a form, so browsers
// are sent back to it.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.enqueue(w, r, Command{Reset: true}) {
		return
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// enqueue hands cmd to the event loop. On failure the error response is
// already written.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, cmd Command) bool {
	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()
	select {
	case s.commands <- cmd:
		return true
	case <-timer.C:
		http.Error(w, "event loop busy", http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
	return false
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request, cmd Command) {
	if s.enqueue(w, r, cmd) {
		w.WriteHeader(http.StatusAccepted)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("body larger than %d bytes", maxBody)
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}
