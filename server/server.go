// Package server exposes session history, progress and pipeline runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/pridepath/session-pipeline/clients"
	"github.com/pridepath/session-pipeline/mastery"
	"github.com/pridepath/session-pipeline/orchestrator"
	"github.com/pridepath/session-pipeline/store"
)

const (
	defaultListLimit = 20
	maxAudioBytes    = 64 << 20
)

// ClientHeader names the recorder a session upload comes from. Uploads from the same
// client supersede each other; uploads from different clients run independently.
const ClientHeader = "X-Client-ID"

// Runner runs one recording through the pipeline. scope identifies the recorder.
type Runner interface {
	RunAs(ctx context.Context, scope string, mode mastery.Mode, a clients.Audio) (*orchestrator.Report, error)
}

// Sessions is the read side of the session store.
type Sessions interface {
	List(ctx context.Context, mode string, limit int) ([]store.Record, error)
	Latest(ctx context.Context, mode string) (*store.Record, error)
	LatestScored(ctx context.Context, mode string) (*store.Record, error)
}

type Service struct {
	version  string
	runner   Runner
	sessions Sessions
	scorer   *mastery.Scorer
	router   chi.Router
}

func New(version string, runner Runner, sessions Sessions, scorer *mastery.Scorer) *Service {
	s := &Service{
		version:  version,
		runner:   runner,
		sessions: sessions,
		scorer:   scorer,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/sessions", s.handleListSessions)
	s.router.Post("/api/sessions", s.handleCreateSession)
	s.router.Get("/api/progress/{mode}", s.handleProgress)
}

func (s *Service) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithField("addr", addr).Info("http server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"elapsed": time.Since(start),
			"req_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode != "" {
		if _, err := mastery.ParseMode(mode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.sessions.List(r.Context(), mode, limit)
	if err != nil {
		log.WithError(err).Error("list sessions")
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": recs, "count": len(recs)})
}

// handleProgress recomputes the snapshot from the latest trustworthy tally so target
// changes apply to old sessions too. Sessions flagged for review carry no usable
// tally; a newer flagged session is reported but never scored.
func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	mode, err := mastery.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	latest, err := s.sessions.Latest(r.Context(), string(mode))
	if err != nil {
		log.WithError(err).Error("latest session")
		writeError(w, http.StatusInternalServerError, "could not load progress")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "no sessions recorded for "+string(mode))
		return
	}

	rec := latest
	if latest.Flagged {
		if rec, err = s.sessions.LatestScored(r.Context(), string(mode)); err != nil {
			log.WithError(err).Error("latest scored session")
			writeError(w, http.StatusInternalServerError, "could not load progress")
			return
		}
	}
	resp := map[string]any{"latest_session_id": latest.ID, "flagged_for_review": latest.Flagged}
	if rec == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	snap := s.scorer.Score(mode, rec.Tally, rec.Effectiveness)
	resp["session_id"] = rec.ID
	resp["recorded_at"] = rec.CreatedAt
	resp["tally"] = rec.Tally
	resp["snapshot"] = snap
	resp["mastery_achieved"] = snap.Achieved()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	mode, err := mastery.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "audio body too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio body")
		return
	}

	audio := clients.Audio{Data: data, MIMEType: r.Header.Get("Content-Type")}
	audio.Filename = audio.FileName("upload")
	report, err := s.runner.RunAs(r.Context(), clientScope(r), mode, audio)
	switch {
	case errors.Is(err, orchestrator.ErrStaleRun):
		writeError(w, http.StatusConflict, "a newer recording from this client superseded this one")
		return
	case errors.Is(err, orchestrator.ErrTranscriptionUnavailable):
		writeError(w, http.StatusServiceUnavailable, "transcription unavailable, record again to retry")
		return
	case err != nil:
		log.WithError(err).Error("pipeline run")
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// clientScope is the client ID header, then the client query parameter, then the
// caller's host.
func clientScope(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(ClientHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("client")); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
