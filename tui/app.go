package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/voiceline/gateway/services/store"
	"github.com/voiceline/gateway/services/transcript"
)

type mode int

const (
	modeList mode = iota
	modeTranscript
	modeAnalyses
	modeChat
)

// refreshInterval drives the session list refresh while anything is
// still processing.
const refreshInterval = 3 * time.Second

type sessionsMsg []Session

type resultsMsg struct {
	sessionID string
	results   *transcript.Results
}

type analysesMsg struct {
	sessionID string
	analyses  []store.AnalysisResult
}

type chatHistoryMsg struct {
	sessionID string
	messages  []store.ChatMessage
}

type chatReplyMsg struct {
	sessionID string
	message   *store.ChatMessage
}

type errMsg struct{ err error }

type tickMsg time.Time

type Model struct {
	client *Client

	sessions []Session
	cursor   int
	offset   int
	width    int
	height   int
	mode     mode

	results  *transcript.Results
	analyses []store.AnalysisResult
	chat     []store.ChatMessage

	chatInput textinput.Model
	waiting   bool

	lastErr  error
	quitting bool
}

func NewModel(client *Client) Model {
	ci := textinput.New()
	ci.Placeholder = "ask about this transcript..."
	ci.CharLimit = 500

	return Model{
		client:    client,
		chatInput: ci,
		width:     120,
		height:    30,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchSessions(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sessions, err := m.client.Sessions(ctx)
		if err != nil {
			return errMsg{err}
		}
		return sessionsMsg(sessions)
	}
}

func (m Model) fetchResults(sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		results, err := m.client.Results(ctx, sessionID)
		if err != nil {
			return errMsg{err}
		}
		return resultsMsg{sessionID: sessionID, results: results}
	}
}

func (m Model) fetchAnalyses(sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		analyses, err := m.client.Analyses(ctx, sessionID)
		if err != nil {
			return errMsg{err}
		}
		return analysesMsg{sessionID: sessionID, analyses: analyses}
	}
}

func (m Model) fetchChat(sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		messages, err := m.client.ChatHistory(ctx, sessionID)
		if err != nil {
			return errMsg{err}
		}
		return chatHistoryMsg{sessionID: sessionID, messages: messages}
	}
}

func (m Model) sendChat(sessionID, message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		reply, err := m.client.Chat(ctx, sessionID, message)
		if err != nil {
			return errMsg{err}
		}
		return chatReplyMsg{sessionID: sessionID, message: reply}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case sessionsMsg:
		m.sessions = msg
		m.lastErr = nil
		if m.cursor >= len(m.sessions) {
			m.cursor = max(0, len(m.sessions)-1)
		}
		m.clampOffset()
		return m, nil

	case resultsMsg:
		if s := m.selected(); s != nil && s.ID == msg.sessionID {
			m.results = msg.results
			m.mode = modeTranscript
			m.offset = 0
		}
		return m, nil

	case analysesMsg:
		if s := m.selected(); s != nil && s.ID == msg.sessionID {
			m.analyses = msg.analyses
			m.mode = modeAnalyses
			m.offset = 0
		}
		return m, nil

	case chatHistoryMsg:
		if s := m.selected(); s != nil && s.ID == msg.sessionID {
			m.chat = msg.messages
			m.mode = modeChat
			m.chatInput.Focus()
		}
		return m, nil

	case chatReplyMsg:
		m.waiting = false
		if s := m.selected(); s != nil && s.ID == msg.sessionID && msg.message != nil {
			m.chat = append(m.chat, *msg.message)
		}
		return m, nil

	case errMsg:
		m.lastErr = msg.err
		m.waiting = false
		return m, nil

	case tickMsg:
		// Only poll while the list view is up and something is pending.
		if m.mode == modeList && m.anyPending() {
			return m, tea.Batch(m.fetchSessions(), tick())
		}
		return m, tick()

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.updateList(msg)
		case modeChat:
			return m.updateChat(msg)
		default:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "g", "home":
		m.cursor = 0
		m.clampOffset()

	case "G", "end":
		m.cursor = max(0, len(m.sessions)-1)
		m.clampOffset()

	case "r":
		return m, m.fetchSessions()

	case "enter", "t":
		if s := m.selected(); s != nil && s.HasResults {
			return m, m.fetchResults(s.ID)
		}

	case "a":
		if s := m.selected(); s != nil && s.HasResults {
			return m, m.fetchAnalyses(s.ID)
		}

	case "c":
		if s := m.selected(); s != nil && s.HasResults {
			return m, m.fetchChat(s.ID)
		}
	}

	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc", "backspace":
		m.mode = modeList
		m.offset = 0
		m.clampOffset()

	case "up", "k":
		if m.offset > 0 {
			m.offset--
		}

	case "down", "j":
		m.offset++
	}

	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.chatInput.Blur()
		m.chatInput.SetValue("")
		m.mode = modeList
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.chatInput.Value())
		s := m.selected()
		if text == "" || s == nil || m.waiting {
			return m, nil
		}
		m.chat = append(m.chat, store.ChatMessage{Role: "user", Content: text})
		m.chatInput.SetValue("")
		m.waiting = true
		return m, m.sendChat(s.ID, text)
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m *Model) selected() *Session {
	if m.cursor < 0 || m.cursor >= len(m.sessions) {
		return nil
	}
	return &m.sessions[m.cursor]
}

func (m *Model) anyPending() bool {
	for _, s := range m.sessions {
		if s.Status == store.StatusQueued || s.Status == store.StatusProcessing {
			return true
		}
	}
	return false
}

func (m *Model) visibleRows() int {
	// title + header + status bar
	rows := m.height - 3
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.mode {
	case modeTranscript:
		return m.viewTranscript()
	case modeAnalyses:
		return m.viewAnalyses()
	case modeChat:
		return m.viewChat()
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	title := titleStyle.Render("Voiceline")
	b.WriteString(title + dimStyle.Render(fmt.Sprintf("  %d sessions", len(m.sessions))) + "\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-28s %-12s %9s  %s", "FILE", "STATUS", "PROGRESS", "UPLOADED")) + "\n")

	visible := m.visibleRows()
	end := m.offset + visible
	if end > len(m.sessions) {
		end = len(m.sessions)
	}

	for i := m.offset; i < end; i++ {
		s := m.sessions[i]
		row := fmt.Sprintf("%-28s %-12s %8d%%  %s",
			truncate(s.Filename, 28),
			s.Status,
			s.Progress,
			s.CreatedAt.Local().Format("Jan 02 15:04"))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(row) + "\n")
		} else {
			b.WriteString(normalStyle.Render(row) + "\n")
		}
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}

	b.WriteString(m.statusBar("enter: transcript  a: analyses  c: chat  r: refresh  q: quit"))
	return b.String()
}

func (m Model) viewTranscript() string {
	var b strings.Builder

	s := m.selected()
	if s == nil || m.results == nil {
		return dimStyle.Render("no transcript loaded") + "\n"
	}

	b.WriteString(titleStyle.Render(s.Filename) +
		dimStyle.Render(fmt.Sprintf("  %d segments, %d speakers",
			m.results.Metadata.NumSegments, m.results.Metadata.NumSpeakers)) + "\n")

	lines := make([]string, 0, len(m.results.Segments))
	for _, seg := range m.results.Segments {
		ts := timestampStyle.Render(fmt.Sprintf("[%s - %s]",
			transcript.FormatTimestamp(seg.Start), transcript.FormatTimestamp(seg.End)))
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, speakerStyle.Render(seg.Speaker+":"), seg.Text))
	}
	b.WriteString(m.scrollWindow(lines))

	b.WriteString(m.statusBar("j/k: scroll  esc: back  q: quit"))
	return b.String()
}

func (m Model) viewAnalyses() string {
	var b strings.Builder

	s := m.selected()
	if s == nil {
		return dimStyle.Render("no session selected") + "\n"
	}

	b.WriteString(titleStyle.Render(s.Filename) + dimStyle.Render("  analyses") + "\n")

	if len(m.analyses) == 0 {
		b.WriteString(dimStyle.Render("no analyses yet") + "\n")
	}

	var lines []string
	for _, a := range m.analyses {
		lines = append(lines, headerStyle.Render(a.PromptKey)+dimStyle.Render("  "+a.Model))
		lines = append(lines, strings.Split(a.Response, "\n")...)
		lines = append(lines, "")
	}
	b.WriteString(m.scrollWindow(lines))

	b.WriteString(m.statusBar("j/k: scroll  esc: back  q: quit"))
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder

	s := m.selected()
	if s == nil {
		return dimStyle.Render("no session selected") + "\n"
	}

	b.WriteString(titleStyle.Render(s.Filename) + dimStyle.Render("  chat") + "\n")

	var lines []string
	for _, msg := range m.chat {
		role := userRoleStyle.Render(" you ")
		if msg.Role == "assistant" {
			role = assistantRoleStyle.Render(" ai ")
		}
		lines = append(lines, role)
		lines = append(lines, strings.Split(msg.Content, "\n")...)
		lines = append(lines, "")
	}
	if m.waiting {
		lines = append(lines, dimStyle.Render("thinking..."))
	}

	// Keep the latest exchange on screen.
	visible := m.visibleRows() - 1
	start := 0
	if len(lines) > visible {
		start = len(lines) - visible
	}
	for _, line := range lines[start:] {
		b.WriteString(line + "\n")
	}
	for i := len(lines) - start; i < visible; i++ {
		b.WriteString("\n")
	}

	b.WriteString(inputStyle.Render("> "+m.chatInput.View()) + "\n")
	b.WriteString(m.statusBar("enter: send  esc: back"))
	return b.String()
}

func (m Model) scrollWindow(lines []string) string {
	var b strings.Builder

	visible := m.visibleRows()
	offset := m.offset
	if offset > max(0, len(lines)-1) {
		offset = max(0, len(lines)-1)
	}
	end := offset + visible
	if end > len(lines) {
		end = len(lines)
	}
	for _, line := range lines[offset:end] {
		b.WriteString(line + "\n")
	}
	for i := end - offset; i < visible; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) statusBar(help string) string {
	if m.lastErr != nil {
		return errStyle.Render("error: "+m.lastErr.Error()) + "  " + helpStyle.Render(help)
	}
	return helpStyle.Render(help)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
