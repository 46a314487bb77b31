// Package api serves the race control surface: start, reset, live status,
// and the stored race history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/dragtree/internal/db"
	"github.com/banshee-data/dragtree/internal/httputil"
	"github.com/banshee-data/dragtree/internal/monitoring"
	"github.com/banshee-data/dragtree/internal/race"
	"github.com/banshee-data/dragtree/internal/results"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultRaceLimit caps /api/races without a limit parameter.
const defaultRaceLimit = 50

// RaceControl is the running race loop as seen from HTTP handlers.
type RaceControl interface {
	StartRace(ctx context.Context) error
	ResetRace(ctx context.Context) error
	PressButton(ctx context.Context, lane int) error
	Status() race.Status
	Subscribe() (<-chan race.Status, func())
}

// RaceStore is the race history. It may be absent.
type RaceStore interface {
	Races(limit int) ([]results.Race, error)
	Race(id string) (results.Race, error)
	LaneStats() ([]db.LaneStat, error)
}

type Server struct {
	race  RaceControl
	store RaceStore
}

// NewServer builds the API. A nil store disables the history endpoints.
func NewServer(rc RaceControl, store RaceStore) *Server {
	return &Server{race: rc, store: store}
}

// commandResponse is the body of start, reset and button replies.
type commandResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.index)
	mux.HandleFunc("/api/start", s.startRace)
	mux.HandleFunc("/api/reset", s.resetRace)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/events", s.streamStatus)
	mux.HandleFunc("/api/lanes/{lane}/button", s.pressButton)
	mux.HandleFunc("/api/races", s.listRaces)
	mux.HandleFunc("/api/races/{id}", s.showRace)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/charts/reaction", s.reactionChart)
	return mux
}

// commandAllowed accepts GET for the buttons of the bundled page.
func commandAllowed(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

func writeCommandError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, race.ErrRaceInProgress), errors.Is(err, race.ErrNotReset), errors.Is(err, race.ErrCoolingDown),
		errors.Is(err, race.ErrRaceNotRunning):
		status = http.StatusConflict
	case errors.Is(err, race.ErrRunnerStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, commandResponse{Status: "error", Message: err.Error()})
}

func (s *Server) startRace(w http.ResponseWriter, r *http.Request) {
	if !commandAllowed(w, r) {
		return
	}
	if err := s.race.StartRace(r.Context()); err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSONOK(w, commandResponse{Status: "success", Message: "Race started"})
}

func (s *Server) resetRace(w http.ResponseWriter, r *http.Request) {
	if !commandAllowed(w, r) {
		return
	}
	if err := s.race.ResetRace(r.Context()); err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSONOK(w, commandResponse{Status: "success", Message: "Race reset"})
}

func (s *Server) pressButton(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	laneID, err := strconv.Atoi(r.PathValue("lane"))
	if err != nil || laneID < 1 || laneID > len(s.race.Status().Lanes) {
		httputil.BadRequest(w, fmt.Sprintf("invalid lane %q", r.PathValue("lane")))
		return
	}
	if err := s.race.PressButton(r.Context(), laneID-1); err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSONOK(w, commandResponse{Status: "success", Message: fmt.Sprintf("Lane %d button pressed", laneID)})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.race.Status())
}

// streamStatus pushes a status snapshot as a server-sent event whenever it
// changes.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	updates, cancel := s.race.Subscribe()
	defer cancel()

	for {
		select {
		case st := <-updates:
			payload, err := json.Marshal(st)
			if err != nil {
				monitoring.Logf("failed to encode status: %v", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) storeAvailable(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return false
	}
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "race history disabled")
		return false
	}
	return true
}

func (s *Server) listRaces(w http.ResponseWriter, r *http.Request) {
	if !s.storeAvailable(w, r) {
		return
	}
	limit := defaultRaceLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	races, err := s.store.Races(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve races: %v", err))
		return
	}
	if races == nil {
		races = []results.Race{}
	}
	httputil.WriteJSONOK(w, races)
}

func (s *Server) showRace(w http.ResponseWriter, r *http.Request) {
	if !s.storeAvailable(w, r) {
		return
	}
	rec, err := s.store.Race(r.PathValue("id"))
	if errors.Is(err, db.ErrRaceNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve race: %v", err))
		return
	}
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !s.storeAvailable(w, r) {
		return
	}
	stats, err := s.store.LaneStats()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to compute stats: %v", err))
		return
	}
	if stats == nil {
		stats = []db.LaneStat{}
	}
	httputil.WriteJSONOK(w, stats)
}
