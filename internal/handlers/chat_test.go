package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitagent-backend/internal/models"
	"gitagent-backend/internal/services"
)

// stubAgent lets handler tests control the agent outcome.
type stubAgent struct {
	resp    *models.ChatResponse
	err     error
	lastReq models.ChatRequest
	calls   int
}

func (s *stubAgent) Run(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	s.calls++
	s.lastReq = req
	return s.resp, s.err
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	h.Chat(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestChat_Success(t *testing.T) {
	agent := &stubAgent{resp: &models.ChatResponse{
		Response: "[Using https://github.com/o/r]\nIt is a test repo.",
		ToolCalls: []models.ToolCall{
			{Name: "get_repo_info", Args: map[string]any{"github_url": "https://github.com/o/r"}},
			{Name: "get_issues", Args: map[string]any{"github_url": "https://github.com/o/r", "state": "open"}},
		},
	}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{
		"message": "tell me about https://github.com/o/r",
		"github_token": "ghp_abc",
		"groq_token": "gsk_abc",
		"history": [{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]
	}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.Contains(resp.Response, "test repo") {
		t.Errorf("Unexpected response %q", resp.Response)
	}
	if len(resp.ToolCalls) != 2 || resp.ToolCalls[0].Name != "get_repo_info" || resp.ToolCalls[1].Name != "get_issues" {
		t.Errorf("Expected tool calls in order, got %v", resp.ToolCalls)
	}

	if agent.lastReq.GitHubToken != "ghp_abc" || agent.lastReq.GroqToken != "gsk_abc" {
		t.Error("Expected tokens forwarded to the agent")
	}
	if len(agent.lastReq.History) != 2 {
		t.Errorf("Expected history forwarded, got %v", agent.lastReq.History)
	}
}

func TestChat_EmptyToolCallsMarshalsAsArray(t *testing.T) {
	agent := &stubAgent{resp: &models.ChatResponse{
		Response:  "plain answer",
		ToolCalls: []models.ToolCall{},
	}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{"message":"hi"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"tool_calls":[]`) {
		t.Errorf("Expected empty array, got %s", rr.Body.String())
	}
}

func TestChat_InvalidBody(t *testing.T) {
	agent := &stubAgent{}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{not json`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Unexpected error code %q", resp.Error.Code)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("Expected request ID echoed, got %q", resp.Error.RequestID)
	}
	if agent.calls != 0 {
		t.Error("Agent should not run for invalid bodies")
	}
}

func TestChat_BlankMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{"groq_token":"gsk"}`},
		{"empty message", `{"message":""}`},
		{"whitespace message", `{"message":"   \n"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agent := &stubAgent{}
			h := NewChatHandler(agent)

			rr := postChat(t, h, tc.body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.Error.Message != "Message is required" {
				t.Errorf("Unexpected message %q", resp.Error.Message)
			}
			if agent.calls != 0 {
				t.Error("Agent should not run for blank messages")
			}
		})
	}
}

func TestChat_MissingGroqToken(t *testing.T) {
	agent := &stubAgent{err: &services.ValidationError{
		Fields: map[string]string{"groq_token": "Groq API token is required"},
	}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{"message":"hi"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Fields["groq_token"] == "" {
		t.Errorf("Expected groq_token field error, got %v", resp.Error.Fields)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	agent := &stubAgent{err: &services.UpstreamError{Message: "Groq API error: 401 Unauthorized"}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{"message":"hi","groq_token":"bad"}`)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "UPSTREAM_ERROR" {
		t.Errorf("Unexpected error code %q", resp.Error.Code)
	}
}

func TestChat_RejectedKey(t *testing.T) {
	agent := &stubAgent{err: &services.UnauthorizedError{Message: "Groq rejected the API key"}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{"message":"hi","groq_token":"bad"}`)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("Unexpected error code %q", resp.Error.Code)
	}
}

func TestChat_GroqRateLimited(t *testing.T) {
	agent := &stubAgent{err: &services.RateLimitError{Message: "Groq rate limit exceeded. Please try again later."}}
	h := NewChatHandler(agent)

	rr := postChat(t, h, `{"message":"hi","groq_token":"gsk"}`)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "RATE_LIMITED" {
		t.Errorf("Unexpected error code %q", resp.Error.Code)
	}
}

func TestChat_NullTokensAccepted(t *testing.T) {
	agent := &stubAgent{resp: &models.ChatResponse{Response: "ok", ToolCalls: []models.ToolCall{}}}
	h := NewChatHandler(agent)

	// The browser sends null for unset credentials
	body, _ := json.Marshal(map[string]any{
		"message":      "hi",
		"github_token": nil,
		"groq_token":   nil,
		"history":      []any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Chat(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if agent.lastReq.GitHubToken != "" {
		t.Errorf("Expected null token to decode as empty, got %q", agent.lastReq.GitHubToken)
	}
}
