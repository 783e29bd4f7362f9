package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"sheetsync/internal/triggers"
)

// Dispatcher hands edit events to the installed edit trigger.
type Dispatcher interface {
	EditEnabled(ctx context.Context) bool
	FireEditAsync(ctx context.Context, ev triggers.EditEvent)
}

// StatusReader reports which sync triggers are installed.
type StatusReader interface {
	Status(ctx context.Context) (triggers.Status, error)
}

// Server wires the daemon's HTTP handlers.
type Server struct {
	baseCtx    context.Context
	dispatcher Dispatcher
	status     StatusReader
}

// NewServer creates the router. Edit handlers run under baseCtx so they
// outlive the request that triggered them.
func NewServer(baseCtx context.Context, dispatcher Dispatcher, status StatusReader) *chi.Mux {
	r := chi.NewRouter()

	srv := &Server{baseCtx: baseCtx, dispatcher: dispatcher, status: status}

	r.Post("/hooks/edit", srv.handleEdit)
	r.Get("/status", srv.handleStatus)
	r.Get("/healthz", srv.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var ev triggers.EditEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&ev); err != nil {
		http.Error(w, "invalid edit event", http.StatusBadRequest)
		return
	}
	if ev.Sheet == "" || ev.Row <= 0 {
		http.Error(w, "sheet and row are required", http.StatusBadRequest)
		return
	}

	if !s.dispatcher.EditEnabled(r.Context()) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.dispatcher.FireEditAsync(s.baseCtx, ev)
	log.Debug().Str("sheet", ev.Sheet).Int("row", ev.Row).Msg("Accepted edit event")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status.Status(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read trigger status")
		http.Error(w, "failed to read trigger status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Listening for edit events")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
