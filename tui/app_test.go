package tui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voiceline/gateway/services/store"
	"github.com/voiceline/gateway/services/transcript"
)

func testSessions() []Session {
	mk := func(id, filename, status string, hasResults bool) Session {
		s := Session{HasResults: hasResults}
		s.ID = id
		s.Filename = filename
		s.Status = status
		return s
	}
	return []Session{
		mk("sess-1", "standup.wav", store.StatusCompleted, true),
		mk("sess-2", "retro.mp3", store.StatusProcessing, false),
		mk("sess-3", "planning.m4a", store.StatusFailed, false),
	}
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil)
	if m.mode != modeList {
		t.Error("new model should start on the session list")
	}
	if len(m.sessions) != 0 {
		t.Error("new model should have no sessions")
	}
}

func TestSessionsMsgReplacesList(t *testing.T) {
	m := NewModel(nil)
	m.cursor = 5

	updated, _ := m.Update(sessionsMsg(testSessions()))
	model := updated.(Model)

	if len(model.sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(model.sessions))
	}
	if model.cursor != 2 {
		t.Errorf("cursor = %d, want clamped to 2", model.cursor)
	}
}

func TestCursorMovement(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.height = 24

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	model := updated.(Model)
	if model.cursor != 1 {
		t.Errorf("cursor after j = %d, want 1", model.cursor)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	model = updated.(Model)
	if model.cursor != 2 {
		t.Errorf("cursor after G = %d, want 2", model.cursor)
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	model = updated.(Model)
	if model.cursor != 1 {
		t.Errorf("cursor after k = %d, want 1", model.cursor)
	}
}

func TestResultsMsgOpensTranscript(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.cursor = 0

	results := &transcript.Results{
		Segments: []transcript.Segment{{Speaker: "SPEAKER_00", Start: 0, End: 2, Text: "morning everyone"}},
	}
	updated, _ := m.Update(resultsMsg{sessionID: "sess-1", results: results})
	model := updated.(Model)

	if model.mode != modeTranscript {
		t.Error("results should switch to the transcript view")
	}
	if !strings.Contains(model.View(), "morning everyone") {
		t.Error("transcript view should render segment text")
	}
}

func TestStaleResultsIgnored(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.cursor = 1

	// Results for a session the cursor has moved away from.
	updated, _ := m.Update(resultsMsg{sessionID: "sess-1", results: &transcript.Results{}})
	model := updated.(Model)

	if model.mode != modeList {
		t.Error("stale results should not change the view")
	}
}

func TestErrMsgShowsInStatusBar(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.height = 24

	updated, _ := m.Update(errMsg{fmt.Errorf("gateway unreachable")})
	model := updated.(Model)

	if !strings.Contains(model.View(), "gateway unreachable") {
		t.Error("status bar should surface the last error")
	}
}

func TestEscReturnsToList(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	m.mode = modeTranscript
	m.results = &transcript.Results{}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model := updated.(Model)

	if model.mode != modeList {
		t.Error("esc should return to the session list")
	}
}

func TestAnyPending(t *testing.T) {
	m := NewModel(nil)
	m.sessions = testSessions()
	if !m.anyPending() {
		t.Error("a processing session should count as pending")
	}

	m.sessions[1].Status = store.StatusCompleted
	if m.anyPending() {
		t.Error("all-terminal sessions should not count as pending")
	}
}
