package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/script-runner/pkg/state"
)

type postLog struct {
	mu    sync.Mutex
	lines []string
}

func (p *postLog) add(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
}

func (p *postLog) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func newTestAPI(t *testing.T) (*httptest.Server, *postLog) {
	t.Helper()
	posted := &postLog{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/characters", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"characters":["zed","hero"]}`)
	})
	mux.HandleFunc("/v1/characters/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/characters/hero/state":
			st := state.NewExecutionState("hero", "rest")
			st.Status = state.StatusRunning
			st.AppendLog("Script started")
			_ = json.NewEncoder(w).Encode(st)
		case "/v1/characters/ghost/state":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"No execution state for ghost"}`)
		default:
			body, _ := io.ReadAll(r.Body)
			posted.add(r.Method + " " + r.URL.Path + " " + string(body))
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, `{}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, posted
}

func TestAPIClient(t *testing.T) {
	srv, posted := newTestAPI(t)
	client := srv.Client()

	assert.True(t, testConnection(client, srv.URL))

	names, err := listCharacters(client, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"hero", "zed"}, names)

	st, err := getState(client, srv.URL, "hero")
	require.NoError(t, err)
	assert.Equal(t, state.StatusRunning, st.Status)
	assert.Contains(t, st.LastLog(), "Script started")

	_, err = getState(client, srv.URL, "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No execution state for ghost")

	require.NoError(t, postAction(client, srv.URL, "hero", "stop", nil))
	require.NoError(t, postAction(client, srv.URL, "hero", "run", map[string]any{"fresh": true}))
	lines := posted.all()
	require.Len(t, lines, 2)
	assert.Equal(t, "POST /v1/characters/hero/stop ", lines[0])
	assert.Equal(t, `POST /v1/characters/hero/run {"fresh":true}`, lines[1])
}

func TestReadSSE(t *testing.T) {
	stream := "event: connected\ndata: {\"character\":\"hero\"}\n\n" +
		": keepalive\n\n" +
		"event: script.level_up\ndata: {\"skill\":\"mining\",\"from\":4,\"to\":5}\n\n"

	ch := make(chan SSEEvent, 4)
	require.NoError(t, readSSE(context.Background(), strings.NewReader(stream), ch))
	close(ch)

	var got []SSEEvent
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "connected", got[0].Type)
	assert.Equal(t, "script.level_up", got[1].Type)
	assert.Equal(t, "mining 4 → 5", formatLevelUp(got[1].Data))
}

func TestWriteMetadata(t *testing.T) {
	assert.Contains(t, writeMetadata("hero", nil, nil), "No stored script")

	st := state.NewExecutionState("hero", "rest")
	st.Status = state.StatusPaused
	st.CurrentLine = 3
	st.Metrics.ActionsExecuted = 7
	st.Metrics.XPGained["mining"] = 42
	out := writeMetadata("hero", st, []string{"mining 4 → 5"})
	assert.Contains(t, out, "PAUSED")
	assert.Contains(t, out, "Line: 3")
	assert.Contains(t, out, "7 executed")
	assert.Contains(t, out, "mining: 42")
	assert.Contains(t, out, "mining 4 → 5")
}

func TestWriteLog_Wraps(t *testing.T) {
	st := state.NewExecutionState("hero", "rest")
	st.Log = []string{"one two three four five six seven eight nine ten"}
	out := writeLog(st, 12)
	assert.Greater(t, strings.Count(out, "\n"), 2)
	assert.Contains(t, writeLog(nil, 40), "No log output yet")
}

func TestConsoleUI_Update(t *testing.T) {
	srv, _ := newTestAPI(t)
	cfg := &ConsoleConfig{APIBaseURL: srv.URL, Timeout: time.Second, PollInterval: time.Second, Character: "hero"}
	var model tea.Model = NewConsoleUI(cfg, srv.Client())

	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	ui := model.(ConsoleUI)
	require.True(t, ui.ready)

	st := state.NewExecutionState("hero", "rest")
	st.Status = state.StatusRunning
	model, _ = model.Update(stateMsg{execState: st})
	ui = model.(ConsoleUI)
	assert.Contains(t, ui.View(), "SCRIPT LOG")

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, actionDoneMsg{}, msg)
	assert.NoError(t, msg.(actionDoneMsg).err)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	ui = model.(ConsoleUI)
	assert.True(t, ui.showQuitModal)
	assert.Contains(t, ui.View(), "Quit Monitor?")

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.False(t, model.(ConsoleUI).showQuitModal)
}

func TestConsoleUI_CharacterSelection(t *testing.T) {
	srv, _ := newTestAPI(t)
	cfg := &ConsoleConfig{APIBaseURL: srv.URL, Timeout: time.Second, PollInterval: time.Second}
	var model tea.Model = NewConsoleUI(cfg, srv.Client())
	require.True(t, model.(ConsoleUI).showCharacterModal)

	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model, _ = model.Update(charactersLoadedMsg{characters: []string{"hero", "zed"}})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	ui := model.(ConsoleUI)
	assert.False(t, ui.showCharacterModal)
	assert.Equal(t, "zed", ui.character)
	assert.NotNil(t, cmd)
}
