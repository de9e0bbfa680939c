package services

// Error types mapped to HTTP status codes by the handlers

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// UpstreamError covers Groq and GitHub transport failures.
type UpstreamError struct{ Message string }

func (e *UpstreamError) Error() string { return e.Message }
