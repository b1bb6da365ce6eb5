package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// Session is the TUI-facing subset of service.Session.
type Session interface {
	Load(ctx context.Context, ref domain.SourceRef) (*service.LoadResult, error)
	Ask(ctx context.Context, query string) (*domain.Answer, error)
	Close() error
}

// Config describes one chat app: its texts, how it builds a session for a
// key and how it turns the source input into a reference.
type Config struct {
	Title             string
	Subtitle          string
	SourcePrompt      string
	SourcePlaceholder string
	LoadingText       string
	HowTo             []string
	About             string
	// APIKey pre-fills the key field.
	APIKey     string
	NewSession func(apiKey string) (Session, error)
	Resolve    func(input string) (domain.SourceRef, error)
}

type focus int

const (
	focusKey focus = iota
	focusSource
	focusQuery
	focusCount
)

type loadedMsg struct {
	res *service.LoadResult
	err error
}

type answeredMsg struct {
	ans *domain.Answer
	err error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	cfg     Config
	session Session

	key      textinput.Model
	source   textinput.Model
	query    textinput.Model
	focus    focus
	spinner  spinner.Model
	viewport viewport.Model

	busy      bool
	busyText  string
	quitting  bool
	loaded    *service.LoadResult
	answer    *domain.Answer
	lastQuery string
	status    string
	errText   string
	width     int
	ready     bool
}

// New creates a new TUI model instance.
func New(cfg Config) Model {
	key := textinput.New()
	key.Prompt = ""
	key.Placeholder = "Gemini API key"
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'
	key.SetValue(cfg.APIKey)

	src := textinput.New()
	src.Prompt = "> "
	src.Placeholder = cfg.SourcePlaceholder
	src.CharLimit = 0

	q := textinput.New()
	q.Prompt = "? "
	q.Placeholder = "Ask a question and press Enter"
	q.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		cfg:      cfg,
		key:      key,
		source:   src,
		query:    q,
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
	if cfg.APIKey == "" {
		m.status = "Welcome! Please enter your Gemini API key in the sidebar to get started."
	} else {
		m.status = "API key loaded from environment."
		m.focus = focusSource
	}
	m.applyFocus()
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, ah := answerBoxStyle.GetFrameSize()
		// heading, subtitle, two input boxes, status, summary, error box
		reserved := 16 + ah
		m.viewport.Width = max(20, msg.Width-sidebarWidth-6)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.busy = false
		if m.quitting {
			m.closeSession()
			return m, tea.Quit
		}
		if msg.err != nil {
			m.loaded = nil
			m.answer = nil
			m.errText = service.UserMessage(msg.err)
			m.status = ""
		} else {
			m.loaded = msg.res
			m.answer = nil
			m.errText = ""
			m.status = fmt.Sprintf("Source loaded (%d chunks). Ask your questions below.", len(msg.res.Chunks))
			m.focus = focusQuery
			m.applyFocus()
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answeredMsg:
		m.busy = false
		if m.quitting {
			m.closeSession()
			return m, tea.Quit
		}
		if msg.err != nil {
			m.errText = service.UserMessage(msg.err)
		} else {
			m.answer = msg.ans
			m.errText = ""
			m.query.SetValue("")
		}
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if !m.busy {
				m.closeSession()
				return m, tea.Quit
			}
			// The session is still in use by a running command.
			// A second press quits without closing it.
			if m.quitting {
				return m, tea.Quit
			}
			m.quitting = true
			m.busyText = "Finishing current request, press Ctrl+C again to force quit..."
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyTab:
			m.focus = (m.focus + 1) % focusCount
			m.applyFocus()
			return m, nil
		case tea.KeyShiftTab:
			m.focus = (m.focus + focusCount - 1) % focusCount
			m.applyFocus()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusKey:
		m.key, cmd = m.key.Update(msg)
	case focusSource:
		m.source, cmd = m.source.Update(msg)
	case focusQuery:
		m.query, cmd = m.query.Update(msg)
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusKey:
		// A new key starts a new session; the old index goes with the old key.
		m.closeSession()
		m.loaded = nil
		m.answer = nil
		m.errText = ""
		if strings.TrimSpace(m.key.Value()) == "" {
			m.status = "Welcome! Please enter your Gemini API key in the sidebar to get started."
			return m, nil
		}
		m.status = "API key set. " + m.cfg.SourcePrompt
		m.focus = focusSource
		m.applyFocus()
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case focusSource:
		input := strings.TrimSpace(m.source.Value())
		if input == "" {
			return m, nil
		}
		if err := m.ensureSession(); err != nil {
			m.errText = service.UserMessage(err)
			return m, nil
		}
		ref, err := m.cfg.Resolve(input)
		if err != nil {
			m.errText = service.UserMessage(err)
			return m, nil
		}
		m.loaded = nil
		m.answer = nil
		m.errText = ""
		m.status = ""
		return m.startBusy(m.cfg.LoadingText, loadCmd(m.session, ref))

	case focusQuery:
		q := strings.TrimSpace(m.query.Value())
		if q == "" {
			return m, nil
		}
		if m.session == nil {
			m.errText = service.UserMessage(domain.ErrEmptyIndex)
			return m, nil
		}
		m.lastQuery = q
		m.errText = ""
		return m.startBusy("Thinking...", askCmd(m.session, q))
	}
	return m, nil
}

func (m Model) startBusy(text string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.busyText = text
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) ensureSession() error {
	if m.session != nil {
		return nil
	}
	key := strings.TrimSpace(m.key.Value())
	if key == "" {
		m.focus = focusKey
		m.applyFocus()
		return fmt.Errorf("%w: enter your Gemini API key in the sidebar", domain.ErrInvalidConfig)
	}
	s, err := m.cfg.NewSession(key)
	if err != nil {
		return err
	}
	m.session = s
	return nil
}

func (m *Model) closeSession() {
	if m.session != nil {
		_ = m.session.Close()
		m.session = nil
	}
}

func (m *Model) applyFocus() {
	m.key.Blur()
	m.source.Blur()
	m.query.Blur()
	switch m.focus {
	case focusKey:
		m.key.Focus()
	case focusSource:
		m.source.Focus()
	case focusQuery:
		m.query.Focus()
	}
}

func loadCmd(s Session, ref domain.SourceRef) tea.Cmd {
	return func() tea.Msg {
		res, err := s.Load(context.Background(), ref)
		return loadedMsg{res: res, err: err}
	}
}

func askCmd(s Session, q string) tea.Cmd {
	return func() tea.Msg {
		ans, err := s.Ask(context.Background(), q)
		return answeredMsg{ans: ans, err: err}
	}
}

// View renders the sidebar and the chat column side by side.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.renderMain())
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Settings") + "\n")
	b.WriteString(sectionStyle.Render("Gemini API key") + "\n")
	b.WriteString(m.box(focusKey, m.key.View()) + "\n")
	b.WriteString(dimStyle.Render("Get a key at https://aistudio.google.com/app/apikey") + "\n")
	b.WriteString(sectionStyle.Render("How to use") + "\n")
	for i, step := range m.cfg.HowTo {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	b.WriteString(sectionStyle.Render("About") + "\n")
	b.WriteString(m.cfg.About + "\n\n")
	b.WriteString(dimStyle.Render("tab: switch field  enter: submit\npgup/pgdn: scroll  ctrl+c: quit"))
	return sidebarStyle.Render(b.String())
}

func (m Model) renderMain() string {
	parts := []string{
		headingStyle.Render(m.cfg.Title),
		dimStyle.Render(m.cfg.Subtitle),
		m.box(focusSource, m.source.View()),
	}
	switch {
	case m.busy:
		parts = append(parts, m.spinner.View()+" "+m.busyText)
	case m.status != "":
		parts = append(parts, statusStyle.Render(m.status))
	}
	if m.loaded != nil && m.loaded.Summary != "" {
		parts = append(parts, dimStyle.Render("Preview: "+m.loaded.Summary))
	}
	parts = append(parts, m.box(focusQuery, m.query.View()))
	parts = append(parts, answerBoxStyle.Render(m.viewport.View()))
	if m.errText != "" {
		parts = append(parts, errorBoxStyle.Width(max(20, m.width-sidebarWidth-6)).Render(m.errText))
	}
	return lipgloss.NewStyle().PaddingLeft(1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) box(f focus, content string) string {
	if m.focus == f && !m.busy {
		return focusedBoxStyle.Render(content)
	}
	return inputBoxStyle.Render(content)
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		if m.loaded == nil {
			return "No source loaded yet."
		}
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Answer:") + "\n")
	b.WriteString(m.answer.Text + "\n")
	if len(m.answer.Sources) > 0 {
		b.WriteString(sectionStyle.Render("Sources:") + "\n")
		for i, r := range m.answer.Sources {
			b.WriteString(fmt.Sprintf("\n[%d] chunk %d  score=%.3f\n", i+1, r.Chunk.Index, r.Score))
			b.WriteString(highlightBestSentence(r.Chunk.Text, m.lastQuery) + "\n")
		}
	}
	return b.String()
}

var (
	unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe    = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]|[^.!?]+$)`)
)

// highlightBestSentence marks the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
