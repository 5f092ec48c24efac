package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/services/store"
	"github.com/voiceline/gateway/services/transcript"
)

// Backend is the slice of the diarizer client the monitor polls.
type Backend interface {
	Status(ctx context.Context, sessionID string) (*diarizer.StatusResponse, error)
	RawResults(ctx context.Context, sessionID string) (json.RawMessage, error)
}

// Monitor polls the backend for every active session until it reaches a
// terminal status. One goroutine per session; Cancel waits for the loop
// to exit, so once it returns no write from that watch can land and a
// reset cannot be overwritten by a stale poll.
type Monitor struct {
	backend   Backend
	store     *store.Store
	interval  time.Duration
	maxErrors int
	log       *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
	wg      sync.WaitGroup
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func New(backend Backend, st *store.Store, cfg *config.PollConfig, log *slog.Logger) *Monitor {
	log.Debug("creating processing monitor",
		slog.Duration("interval", cfg.Interval),
		slog.Int("max_errors", cfg.MaxErrors))
	return &Monitor{
		backend:   backend,
		store:     st,
		interval:  cfg.Interval,
		maxErrors: cfg.MaxErrors,
		watches:   make(map[string]*watch),
		log:       log,
	}
}

// Watch starts polling a session. Calling it again for the same session is
// a no-op, so there is never more than one poll loop per session.
func (m *Monitor) Watch(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.watches[sessionID]; exists {
		m.log.Debug("watch already active", slog.String("session_id", sessionID))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{cancel: cancel, done: make(chan struct{})}
	m.watches[sessionID] = w
	m.wg.Add(1)

	m.log.Info("watching session", slog.String("session_id", sessionID))
	go m.run(ctx, sessionID, w.done)
}

// Cancel stops the watch for a session, if one is active, and waits for
// its loop to exit so no in-flight poll can write after the return.
func (m *Monitor) Cancel(sessionID string) {
	m.mu.Lock()
	w, exists := m.watches[sessionID]
	if exists {
		delete(m.watches, sessionID)
	}
	m.mu.Unlock()

	if exists {
		m.log.Info("cancelling watch", slog.String("session_id", sessionID))
		w.cancel()
		<-w.done
	}
}

// ActiveWatches lists the sessions currently being polled.
func (m *Monitor) ActiveWatches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.watches))
	for id := range m.watches {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown cancels every watch and waits for the loops to finish.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	for id, w := range m.watches {
		delete(m.watches, id)
		w.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context, sessionID string, done chan struct{}) {
	defer m.wg.Done()
	defer m.remove(sessionID)
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := m.backend.Status(ctx, sessionID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			consecutiveErrors++
			m.log.Warn("status poll failed",
				slog.String("session_id", sessionID),
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.String("error", err.Error()))
			if consecutiveErrors >= m.maxErrors {
				m.store.UpdateStatus(sessionID, store.StatusFailed, 0, "lost contact with processing backend")
				m.log.Error("giving up on session", slog.String("session_id", sessionID))
				return
			}
			continue
		}
		consecutiveErrors = 0

		if err := m.store.UpdateStatus(sessionID, status.Status, status.Progress, status.Message); err != nil {
			// Session was deleted out from under the watch.
			m.log.Warn("status update failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			return
		}

		switch status.Status {
		case store.StatusCompleted:
			m.fetchResults(ctx, sessionID)
			return
		case store.StatusFailed:
			m.log.Info("session failed",
				slog.String("session_id", sessionID),
				slog.String("message", status.Message))
			return
		}
	}
}

func (m *Monitor) fetchResults(ctx context.Context, sessionID string) {
	raw, err := m.backend.RawResults(ctx, sessionID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.log.Error("results fetch failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		m.store.UpdateStatus(sessionID, store.StatusCompleted, 100, "completed, but results could not be fetched")
		return
	}

	results := transcript.Normalize(raw)
	if results == nil {
		m.log.Error("results payload in unrecognized shape", slog.String("session_id", sessionID))
		m.store.UpdateStatus(sessionID, store.StatusCompleted, 100, "completed, but results were in an unrecognized format")
		return
	}

	canonical, err := json.Marshal(results)
	if err != nil {
		m.log.Error("marshal normalized results", slog.String("error", err.Error()))
		return
	}
	if err := m.store.AttachResults(sessionID, canonical); err != nil {
		m.log.Warn("attach results failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}

	m.log.Info("results stored",
		slog.String("session_id", sessionID),
		slog.Int("segments", len(results.Segments)))
}

func (m *Monitor) remove(sessionID string) {
	m.mu.Lock()
	delete(m.watches, sessionID)
	m.mu.Unlock()
}
