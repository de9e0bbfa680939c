package models

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint. Tokens arrive from
// the browser; GroqToken may be empty when the server carries a fallback key.
type ChatRequest struct {
	Message     string        `json:"message"`
	GitHubToken string        `json:"github_token"`
	GroqToken   string        `json:"groq_token"`
	History     []ChatMessage `json:"history"`
}

// ToolCall records one GitHub tool invocation the model requested during an
// exchange, in execution order.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ChatResponse is the final agent reply plus every tool call it made.
type ChatResponse struct {
	Response  string     `json:"response"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
