package agent

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/voxline/sales-ai-platform/pkg/logging"
)

// Handler wires HTTP requests to the flow engine.
type Handler struct {
	service     Service
	logger      *logging.Logger
	defaultMode string
}

// NewHandler creates an agent handler. defaultMode selects the persona for
// newly created sessions ("SDR" if empty).
func NewHandler(service Service, logger *logging.Logger, defaultMode string) *Handler {
	if defaultMode == "" {
		defaultMode = "SDR"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:     service,
		logger:      logger,
		defaultMode: defaultMode,
	}
}

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type turnRequest struct {
	Message string `json:"message"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Stage     string `json:"stage"`
}

// CreateSession handles POST /sessions. It mints a session key; the session
// itself materializes lazily on first turn.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// An empty body is fine; only malformed JSON is rejected.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("failed to decode create request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = h.defaultMode
	}

	sessionID := uuid.NewString()
	if err := h.service.SetMode(r.Context(), sessionID, mode); err != nil {
		h.logger.Error("failed to set session mode", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sessionID, Mode: mode})
}

// Message handles POST /sessions/{sessionID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode turn request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	reply, err := h.service.HandleTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		h.logger.Error("failed to process turn", "session_id", sessionID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrGeneration) {
			status = http.StatusBadGateway
		}
		http.Error(w, "Failed to process message", status)
		return
	}

	// The turn is already committed; a failed state read must not throw
	// the generated reply away. Stage degrades to empty instead.
	stage := ""
	if state, err := h.service.Snapshot(r.Context(), sessionID); err != nil {
		h.logger.Warn("failed to read session state after turn", "session_id", sessionID, "error", err)
	} else {
		stage = state.Stage
	}

	h.writeJSON(w, http.StatusOK, turnResponse{
		SessionID: sessionID,
		Reply:     reply,
		Stage:     stage,
	})
}

// State handles GET /sessions/{sessionID}.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.service.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to read session state", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to read session state", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// Clear handles DELETE /sessions/{sessionID}.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.service.ClearSession(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to clear session", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to clear session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
