package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"gitagent-backend/internal/models"
)

// agentRunner is the surface of services.AgentService the handler needs.
type agentRunner interface {
	Run(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
}

type ChatHandler struct {
	agent agentRunner
}

func NewChatHandler(agent agentRunner) *ChatHandler {
	return &ChatHandler{agent: agent}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	resp, err := h.agent.Run(r.Context(), req)
	if err != nil {
		log.Printf("Error in /api/chat: %v", err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
