package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/script-runner/pkg/script"
)

type ValidateRequest struct {
	Script string `json:"script"`
}

type ValidateResponse struct {
	Valid      bool     `json:"valid"`
	Statements int      `json:"statements"`
	Warnings   []string `json:"warnings"`
	Error      string   `json:"error,omitempty"`
	Line       int      `json:"line,omitempty"`
}

// ScriptsHandler validates scripts without running them.
// POST /v1/scripts/validate
type ScriptsHandler struct {
	logger *slog.Logger
}

func NewScriptsHandler(logger *slog.Logger) *ScriptsHandler {
	return &ScriptsHandler{logger: logger}
}

func (h *ScriptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, Validate(req.Script))
}

// Validate parses src and reports the outcome.
func Validate(src string) ValidateResponse {
	prog, err := script.Parse(src)
	if err != nil {
		resp := ValidateResponse{Warnings: []string{}, Error: err.Error()}
		var pe *script.ParseError
		if errors.As(err, &pe) {
			resp.Line = pe.Line
		}
		return resp
	}
	warnings := prog.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ValidateResponse{
		Valid:      true,
		Statements: len(prog.Statements),
		Warnings:   warnings,
	}
}
