package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/pkg/logger"
	"github.com/voiceline/gateway/services/store"
)

type fakeBackend struct {
	statusCalls  atomic.Int64
	processing   int64 // polls that report processing before completing
	statusErr    error
	results      string
	resultsCalls atomic.Int64
}

func (f *fakeBackend) Status(ctx context.Context, sessionID string) (*diarizer.StatusResponse, error) {
	n := f.statusCalls.Add(1)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if n <= f.processing {
		return &diarizer.StatusResponse{Status: store.StatusProcessing, Progress: int(n) * 20, Message: "working"}, nil
	}
	return &diarizer.StatusResponse{Status: store.StatusCompleted, Progress: 100, Message: "done"}, nil
}

func (f *fakeBackend) RawResults(ctx context.Context, sessionID string) (json.RawMessage, error) {
	f.resultsCalls.Add(1)
	if f.results == "" {
		return nil, errors.New("no results")
	}
	return json.RawMessage(f.results), nil
}

func newTestMonitor(t *testing.T, backend Backend) (*Monitor, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.PollConfig{Interval: 10 * time.Millisecond, MaxErrors: 3}
	m := New(backend, st, cfg, logger.Default())
	t.Cleanup(m.Shutdown)
	return m, st
}

func saveSession(t *testing.T, st *store.Store, id string) {
	t.Helper()
	if err := st.SaveSession(&store.Session{ID: id, UserID: "u", Filename: "a.wav", Status: store.StatusQueued}); err != nil {
		t.Fatalf("save session: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestWatchStopsOnCompleted(t *testing.T) {
	backend := &fakeBackend{
		processing: 3,
		results:    `{"segments": [{"speaker": "SPEAKER_00", "start": 0, "end": 5, "text": "hi"}]}`,
	}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")

	waitFor(t, func() bool {
		sess, err := st.GetSession("s1")
		return err == nil && sess.Status == store.StatusCompleted && sess.HasResults()
	})

	// Once terminal, no further status requests are issued.
	settled := backend.statusCalls.Load()
	time.Sleep(100 * time.Millisecond)
	if got := backend.statusCalls.Load(); got != settled {
		t.Errorf("poll count kept growing after completion: %d -> %d", settled, got)
	}
	if len(m.ActiveWatches()) != 0 {
		t.Errorf("watch still registered: %v", m.ActiveWatches())
	}

	sess, err := st.GetSession("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Progress != 100 {
		t.Errorf("progress = %d, want 100", sess.Progress)
	}
}

func TestWatchIsIdempotent(t *testing.T) {
	backend := &fakeBackend{processing: 1000}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")
	m.Watch("s1")
	m.Watch("s1")

	if got := len(m.ActiveWatches()); got != 1 {
		t.Errorf("expected 1 active watch, got %d", got)
	}
}

func TestCancelStopsPolling(t *testing.T) {
	backend := &fakeBackend{processing: 1000}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")
	waitFor(t, func() bool { return backend.statusCalls.Load() > 0 })

	m.Cancel("s1")
	time.Sleep(30 * time.Millisecond)
	settled := backend.statusCalls.Load()
	time.Sleep(100 * time.Millisecond)
	if got := backend.statusCalls.Load(); got != settled {
		t.Errorf("poll count kept growing after cancel: %d -> %d", settled, got)
	}
}

// blockingBackend parks Status calls until released, to exercise a
// cancel racing an in-flight poll.
type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Status(ctx context.Context, sessionID string) (*diarizer.StatusResponse, error) {
	b.entered <- struct{}{}
	<-b.release
	return &diarizer.StatusResponse{Status: store.StatusProcessing, Progress: 50, Message: "working"}, nil
}

func (b *blockingBackend) RawResults(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return nil, errors.New("not expected")
}

func TestCancelWaitsForInflightPoll(t *testing.T) {
	backend := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")
	<-backend.entered // poll is now in flight

	cancelled := make(chan struct{})
	go func() {
		m.Cancel("s1")
		close(cancelled)
	}()

	select {
	case <-cancelled:
		t.Fatal("Cancel returned while a poll was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(backend.release)
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel never returned")
	}

	// The cancelled poll's result must not have been written.
	sess, err := st.GetSession("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != store.StatusQueued || sess.Progress != 0 {
		t.Errorf("cancelled watch wrote to the store: %+v", sess)
	}
}

func TestConsecutiveErrorsMarkFailed(t *testing.T) {
	backend := &fakeBackend{statusErr: errors.New("connection refused")}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")

	waitFor(t, func() bool {
		sess, err := st.GetSession("s1")
		return err == nil && sess.Status == store.StatusFailed
	})

	if got := backend.statusCalls.Load(); got != 3 {
		t.Errorf("expected exactly 3 polls before giving up, got %d", got)
	}
}

func TestUnrecognizedResultsShapeStillCompletes(t *testing.T) {
	backend := &fakeBackend{results: `{"transcript": "no segments here"}`}
	m, st := newTestMonitor(t, backend)
	saveSession(t, st, "s1")

	m.Watch("s1")

	waitFor(t, func() bool {
		sess, err := st.GetSession("s1")
		return err == nil && sess.Status == store.StatusCompleted
	})

	sess, _ := st.GetSession("s1")
	if sess.HasResults() {
		t.Error("unrecognized payload should not be stored as results")
	}
	if sess.Message == "" {
		t.Error("expected explanatory message")
	}
	if backend.resultsCalls.Load() != 1 {
		t.Errorf("expected one results fetch, got %d", backend.resultsCalls.Load())
	}
}
