package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/script-runner/pkg/queue"
	"github.com/jwebster45206/script-runner/pkg/script"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

// RunQueue accepts run requests and control signals.
type RunQueue interface {
	EnqueueRequest(ctx context.Context, req *queue.Request) error
	SetControl(ctx context.Context, character string, c queue.Control) error
}

// QueueNotifier announces accepted requests. Optional.
type QueueNotifier interface {
	PublishRequestQueued(ctx context.Context, character, requestID string) error
}

type RunRequest struct {
	Script string `json:"script"`
	Fresh  bool   `json:"fresh"`
}

type RunResponse struct {
	RequestID string `json:"request_id"`
	Character string `json:"character"`
	Status    string `json:"status"`
}

type ControlResponse struct {
	Character string `json:"character"`
	Control   string `json:"control"`
}

// CharactersHandler controls script runs per character.
type CharactersHandler struct {
	queue    RunQueue
	storage  storage.Storage
	notifier QueueNotifier
	logger   *slog.Logger
}

func NewCharactersHandler(runQueue RunQueue, storage storage.Storage, notifier QueueNotifier, logger *slog.Logger) *CharactersHandler {
	return &CharactersHandler{
		queue:    runQueue,
		storage:  storage,
		notifier: notifier,
		logger:   logger,
	}
}

// ServeHTTP routes:
// GET  /v1/characters                - List characters with stored state
// POST /v1/characters/{name}/run     - Queue a run (empty script resumes)
// POST /v1/characters/{name}/stop    - Ask the running script to stop
// POST /v1/characters/{name}/pause   - Ask the running script to pause
// GET  /v1/characters/{name}/state   - Stored execution state
func (h *CharactersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/characters"), "/")
	if path == "" {
		if r.Method != http.MethodGet {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		h.handleList(w, r)
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, h.logger, http.StatusNotFound, "Invalid path. Expected /v1/characters/{name}/{run|stop|pause|state}")
		return
	}
	name, action := parts[0], parts[1]

	want := http.MethodPost
	if action == "state" {
		want = http.MethodGet
	}
	if r.Method != want {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only "+want+" is supported.")
		return
	}

	switch action {
	case "run":
		h.handleRun(w, r, name)
	case "stop":
		h.handleControl(w, r, name, queue.ControlStop)
	case "pause":
		h.handleControl(w, r, name, queue.ControlPause)
	case "state":
		h.handleState(w, r, name)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown action "+action)
	}
}

func (h *CharactersHandler) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.storage.ListCharacters(r.Context())
	if err != nil {
		h.logger.Error("Failed to list characters", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list characters")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string][]string{"characters": names})
}

func (h *CharactersHandler) handleRun(w http.ResponseWriter, r *http.Request, name string) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if body.Script != "" {
		if _, err := script.Parse(body.Script); err != nil {
			resp := ErrorResponse{Error: err.Error()}
			var pe *script.ParseError
			if errors.As(err, &pe) {
				resp.Line = pe.Line
			}
			writeJSON(w, h.logger, http.StatusBadRequest, resp)
			return
		}
	} else {
		st, err := h.storage.LoadExecutionState(r.Context(), name)
		if err != nil {
			h.logger.Error("Failed to load execution state", "character", name, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load execution state")
			return
		}
		if st == nil || st.Script == "" {
			writeError(w, h.logger, http.StatusNotFound, "No stored script to resume")
			return
		}
	}

	req := &queue.Request{
		RequestID:  uuid.New().String(),
		Character:  name,
		Script:     body.Script,
		Fresh:      body.Fresh,
		EnqueuedAt: time.Now(),
	}
	if err := h.queue.EnqueueRequest(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue run request", "character", name, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue run")
		return
	}
	if h.notifier != nil {
		if err := h.notifier.PublishRequestQueued(r.Context(), name, req.RequestID); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Run queued", "character", name, "request_id", req.RequestID)
	writeJSON(w, h.logger, http.StatusAccepted, RunResponse{
		RequestID: req.RequestID,
		Character: name,
		Status:    "queued",
	})
}

func (h *CharactersHandler) handleControl(w http.ResponseWriter, r *http.Request, name string, c queue.Control) {
	if err := h.queue.SetControl(r.Context(), name, c); err != nil {
		h.logger.Error("Failed to post control", "character", name, "control", c, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to post control")
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, ControlResponse{Character: name, Control: string(c)})
}

func (h *CharactersHandler) handleState(w http.ResponseWriter, r *http.Request, name string) {
	st, err := h.storage.LoadExecutionState(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to load execution state", "character", name, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load execution state")
		return
	}
	if st == nil {
		writeError(w, h.logger, http.StatusNotFound, "No execution state for "+name)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, st)
}
