package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/script-runner/pkg/state"
)

const maxLevelUps = 5

// ConsoleUI is the BubbleTea model that runs the monitor.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	streamClient *http.Client
	character    string
	execState    *state.ExecutionState
	logViewport  viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	notice       string
	levelUps     []string
	events       chan SSEEvent

	// Character selection state
	showCharacterModal bool
	characters         []string
	selectedCharacter  int
	loadingCharacters  bool

	// Quit confirmation state
	showQuitModal bool
}

type charactersLoadedMsg struct {
	characters []string
	err        error
}

type stateMsg struct {
	execState *state.ExecutionState
	err       error
}

type actionDoneMsg struct {
	action string
	err    error
}

type copiedMsg struct {
	line string
	err  error
}

type sseEventMsg struct {
	event SSEEvent
}

type sseClosedMsg struct {
	err error
}

type pollTickMsg struct{}

type reconnectMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(0).
			PaddingLeft(2).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")). // yellow
			Bold(true)

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")). // dark grey
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	levelUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	logVp := viewport.New(60, 20)
	logVp.MouseWheelEnabled = true

	metaVp := viewport.New(30, 20)

	return ConsoleUI{
		config:             cfg,
		client:             client,
		streamClient:       &http.Client{}, // no timeout for the long-lived stream
		character:          cfg.Character,
		logViewport:        logVp,
		metaViewport:       metaVp,
		events:             make(chan SSEEvent, 16),
		showCharacterModal: cfg.Character == "",
		loadingCharacters:  cfg.Character == "",
	}
}

func statusStyle(s state.Status) lipgloss.Style {
	switch s {
	case state.StatusRunning:
		return runningStyle
	case state.StatusPaused:
		return pausedStyle
	case state.StatusError:
		return errorStyle.Bold(true)
	default:
		return stoppedStyle
	}
}

// formatLogLine wraps a log line to width and colors warnings and errors.
func formatLogLine(line string, width int) string {
	wrapped := wordwrap.String(line, width)
	switch {
	case strings.Contains(line, "ERROR: "):
		return errorStyle.Render(wrapped)
	case strings.Contains(line, "WARNING: "):
		return warningStyle.Render(wrapped)
	default:
		return wrapped
	}
}

func writeLog(st *state.ExecutionState, width int) string {
	if width < 10 {
		width = 10
	}
	var content strings.Builder
	if st == nil || len(st.Log) == 0 {
		content.WriteString(promptStyle.Render("No log output yet.") + "\n")
		return content.String()
	}
	for _, line := range st.Log {
		content.WriteString(formatLogLine(line, width) + "\n")
	}
	return content.String()
}

func writeMetadata(character string, st *state.ExecutionState, levelUps []string) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("CHARACTER") + "\n\n")
	content.WriteString(character + "\n\n")

	if st == nil {
		content.WriteString("No stored script.\n")
		return content.String()
	}

	content.WriteString("Status:\n")
	content.WriteString(statusStyle(st.Status).Render(strings.ToUpper(string(st.Status))) + "\n\n")

	if st.CurrentLine > 0 {
		content.WriteString(fmt.Sprintf("Line: %d\n\n", st.CurrentLine))
	}
	if st.Error != "" {
		content.WriteString(errorStyle.Render(st.Error) + "\n\n")
	}

	content.WriteString("Actions:\n")
	content.WriteString(fmt.Sprintf("%d executed\n", st.Metrics.ActionsExecuted))
	content.WriteString(fmt.Sprintf("%d gold\n\n", st.Metrics.GoldGained))

	writeCounts(&content, "XP gained:", st.Metrics.XPGained)
	writeCounts(&content, "Items:", st.Metrics.ItemsGathered)

	if len(levelUps) > 0 {
		content.WriteString("Level ups:\n")
		for _, l := range levelUps {
			content.WriteString(levelUpStyle.Render("• "+l) + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Keys:\n")
	content.WriteString("• s: Stop\n")
	content.WriteString("• p: Pause\n")
	content.WriteString("• r: Resume\n")
	content.WriteString("• f: Restart\n")
	content.WriteString("• c: Copy last line\n")
	content.WriteString("• q: Quit\n")

	return content.String()
}

func writeCounts(content *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	content.WriteString(title + "\n")
	for _, k := range keys {
		content.WriteString(fmt.Sprintf("• %s: %d\n", k, counts[k]))
	}
	content.WriteString("\n")
}

// layout sizes the two panels from the window size.
func (m *ConsoleUI) layout() {
	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6
	m.logViewport.Width = logWidth - 2
	m.logViewport.Height = m.height - 5
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 3
}

// render refreshes both viewports from the current state.
func (m *ConsoleUI) render() {
	atBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(writeLog(m.execState, m.logViewport.Width-2))
	if atBottom || !m.ready {
		m.logViewport.GotoBottom()
	}
	m.metaViewport.SetContent(writeMetadata(m.character, m.execState, m.levelUps))
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showCharacterModal {
		return m.loadCharacters()
	}
	return m.startMonitoring()
}

func (m ConsoleUI) startMonitoring() tea.Cmd {
	return tea.Batch(m.refreshState(), pollTick(m.config.PollInterval), m.startStream(), m.waitForEvent())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showCharacterModal {
		return m.updateCharacterModal(msg)
	}

	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.render()
		m.ready = true

	case stateMsg:
		if msg.err != nil {
			// Nothing stored yet is normal right after selecting a character.
			m.notice = msg.err.Error()
			return m, nil
		}
		m.execState = msg.execState
		m.notice = ""
		m.render()

	case pollTickMsg:
		return m, tea.Batch(m.refreshState(), pollTick(m.config.PollInterval))

	case sseEventMsg:
		switch msg.event.Type {
		case "script.level_up":
			m.levelUps = append(m.levelUps, formatLevelUp(msg.event.Data))
			if len(m.levelUps) > maxLevelUps {
				m.levelUps = m.levelUps[len(m.levelUps)-maxLevelUps:]
			}
			m.render()
			return m, tea.Batch(m.refreshState(), m.waitForEvent())
		case "script.log", "script.state":
			return m, tea.Batch(m.refreshState(), m.waitForEvent())
		}
		return m, m.waitForEvent()

	case sseClosedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Event stream lost: %v", msg.err)
		}
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.startStream()

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("%s requested", msg.action)
		}
		return m, m.refreshState()

	case copiedMsg:
		switch {
		case msg.err != nil:
			m.notice = fmt.Sprintf("Copy failed: %v", msg.err)
		case msg.line == "":
			m.notice = "Nothing to copy"
		default:
			m.notice = "Copied last log line"
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		switch msg.String() {
		case "q":
			m.showQuitModal = true
			return m, nil
		case "s":
			return m, m.sendAction("stop", nil)
		case "p":
			return m, m.sendAction("pause", nil)
		case "r":
			return m, m.sendAction("run", nil)
		case "f":
			return m, m.sendAction("run", map[string]any{"fresh": true})
		case "c":
			return m, m.copyLastLine()
		}
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func formatLevelUp(data map[string]any) string {
	skill, _ := data["skill"].(string)
	from, _ := data["from"].(float64)
	to, _ := data["to"].(float64)
	return fmt.Sprintf("%s %d → %d", skill, int(from), int(to))
}

func (m ConsoleUI) refreshState() tea.Cmd {
	return func() tea.Msg {
		st, err := getState(m.client, m.config.APIBaseURL, m.character)
		return stateMsg{st, err}
	}
}

func (m ConsoleUI) loadCharacters() tea.Cmd {
	return func() tea.Msg {
		names, err := listCharacters(m.client, m.config.APIBaseURL)
		return charactersLoadedMsg{names, err}
	}
}

func (m ConsoleUI) sendAction(action string, body any) tea.Cmd {
	return func() tea.Msg {
		err := postAction(m.client, m.config.APIBaseURL, m.character, action, body)
		return actionDoneMsg{action, err}
	}
}

func (m ConsoleUI) copyLastLine() tea.Cmd {
	var line string
	if m.execState != nil {
		line = m.execState.LastLog()
	}
	return func() tea.Msg {
		if line == "" {
			return copiedMsg{}
		}
		return copiedMsg{line, clipboard.WriteAll(line)}
	}
}

// startStream runs the SSE reader until the connection drops.
func (m ConsoleUI) startStream() tea.Cmd {
	return func() tea.Msg {
		err := listenToSSE(context.Background(), m.streamClient, m.config.APIBaseURL, m.character, m.events)
		return sseClosedMsg{err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return sseEventMsg{<-m.events}
	}
}

func (m ConsoleUI) updateCharacterModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case charactersLoadedMsg:
		m.loadingCharacters = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.characters = msg.characters
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		if m.loadingCharacters || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedCharacter > 0 {
				m.selectedCharacter--
			}
		case tea.KeyDown:
			if m.selectedCharacter < len(m.characters)-1 {
				m.selectedCharacter++
			}
		case tea.KeyEnter:
			if len(m.characters) > 0 {
				m.character = m.characters[m.selectedCharacter]
				m.showCharacterModal = false
				if m.width > 0 && m.height > 0 {
					m.layout()
					m.render()
					m.ready = true
				}
				return m, m.startMonitoring()
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.render()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		}
		switch msg.String() {
		case "y", "Y", "q":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
		}
	}

	// Keep the monitor fed while the modal is open.
	switch msg.(type) {
	case stateMsg, pollTickMsg, sseEventMsg, sseClosedMsg, reconnectMsg, actionDoneMsg:
		m.showQuitModal = false
		next, cmd := m.Update(msg)
		ui := next.(ConsoleUI)
		ui.showQuitModal = true
		return ui, cmd
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Monitor?"))
	content.WriteString("\n\n")
	content.WriteString("The script keeps running on the worker.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderCharacterModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingCharacters:
		content.WriteString(modalTitleStyle.Render("Loading Characters..."))
		content.WriteString("\n\n")
		content.WriteString(warningStyle.Render("Please wait while we fetch characters with stored scripts..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load characters: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case len(m.characters) == 0:
		content.WriteString(modalTitleStyle.Render("No Characters"))
		content.WriteString("\n\n")
		content.WriteString("No character has a stored script yet. Start one with the runner or the API.")
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	default:
		content.WriteString(modalTitleStyle.Render("Select a Character"))
		content.WriteString("\n\n")

		for i, name := range m.characters {
			if i == m.selectedCharacter {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showCharacterModal {
		return m.renderCharacterModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - logWidth - 6

	status := titleStyle.Render("SCRIPT LOG")
	if m.notice != "" {
		status += "  " + promptStyle.Render(m.notice)
	}

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			status,
			separatorStyle.Render(strings.Repeat("─", max(logWidth-4, 1))),
			m.logViewport.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 1).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

func pollTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}
