package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"gitagent-backend/internal/models"
)

// System prompt for GitHub-related queries
const systemPrompt = `You are a coding expert with access to GitHub to help the user manage their repository and get information from it.

Your job is to assist the user in understanding, navigating, and managing a GitHub repository. You should only answer questions related to the repository unless otherwise directed.

You can answer questions on:
1. General information about the repository (description, language, stars, etc.).
2. The purpose or objective of the repository (What is the repo about?).
3. Detailed repository structure (files and directories).
4. Content of specific files within the repository.
5. Contributor details and how to contribute to the repository.
6. Issues and Pull Requests (open, closed, or merged).
7. License information.
8. Repository activity and history (e.g., commits, updates).

Do not ask the user questions before taking an action. Instead, always examine the repository using the provided tools before answering the user's question unless you already have the information.

When answering a question, always start your answer with the full repo URL in brackets and then provide your answer on the next line. For example:

[Using https://github.com/[repo URL from the user]]

Your answer should be clear and informative. If you cannot find the required information, explain why you were unable to do so, and suggest alternative ways to obtain the details.`

// maxToolRounds bounds the tool-call loop so a model that keeps requesting
// tools cannot hold a request open forever.
const maxToolRounds = 4

// AgentService runs the GitHub agent against the Groq chat-completions API.
// The Groq key is chosen per request: the browser-supplied token wins, the
// server-configured key is the fallback.
type AgentService struct {
	github      *GitHubService
	fallbackKey string
	model       string
	baseURL     string
	rateChan    chan struct{} // Token bucket
}

func NewAgentService(github *GitHubService, fallbackKey, model, baseURL string, concurrentReqs int) *AgentService {
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &AgentService{
		github:      github,
		fallbackKey: fallbackKey,
		model:       model,
		baseURL:     baseURL,
		rateChan:    rateChan,
	}
}

// acquireRate blocks until a rate slot is available
func (s *AgentService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Groq rate slot")
	}
}

func (s *AgentService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Run executes one chat exchange: prompt the model with the conversation
// history and tool definitions, execute any tool calls it requests, and
// repeat until it produces a text answer.
func (s *AgentService) Run(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	apiKey := req.GroqToken
	if apiKey == "" {
		apiKey = s.fallbackKey
	}
	if apiKey == "" {
		return nil, &ValidationError{Fields: map[string]string{
			"groq_token": "Groq API token is required",
		}}
	}

	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(s.baseURL),
	)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, msg := range req.History {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Message))

	toolCalls := make([]models.ToolCall, 0)

	for round := 0; round <= maxToolRounds; round++ {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       s.model,
			Messages:    messages,
			Tools:       githubToolDefinitions(),
			Temperature: openai.Float(0.3),
		})
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				switch apiErr.StatusCode {
				case http.StatusUnauthorized:
					return nil, &UnauthorizedError{Message: "Groq rejected the API key"}
				case http.StatusTooManyRequests:
					return nil, &RateLimitError{Message: "Groq rate limit exceeded. Please try again later."}
				}
			}
			return nil, &UpstreamError{Message: fmt.Sprintf("Groq API error: %v", err)}
		}
		if len(resp.Choices) == 0 {
			return nil, &UpstreamError{Message: "Groq returned no choices"}
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return &models.ChatResponse{
				Response:  msg.Content,
				ToolCalls: toolCalls,
			}, nil
		}

		messages = append(messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			toolCalls = append(toolCalls, models.ToolCall{
				Name: tc.Function.Name,
				Args: decodeToolArgs(tc.Function.Arguments),
			})

			log.Printf("Executing tool call: %s", tc.Function.Name)
			output, err := s.executeTool(ctx, req.GitHubToken, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				return nil, &UpstreamError{Message: fmt.Sprintf("tool %s failed: %v", tc.Function.Name, err)}
			}
			messages = append(messages, openai.ToolMessage(output, tc.ID))
		}
	}

	return nil, &UpstreamError{Message: "model kept requesting tools without producing an answer"}
}

// decodeToolArgs converts the raw JSON argument string into a map for the
// tool_calls field of the response. Arguments the model malformed are kept
// verbatim so the client can still display them.
func decodeToolArgs(raw string) map[string]any {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}

func (s *AgentService) executeTool(ctx context.Context, githubToken, name, rawArgs string) (string, error) {
	var args struct {
		GitHubURL string `json:"github_url"`
		FilePath  string `json:"file_path"`
		State     string `json:"state"`
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		// Fed back to the model so it can correct itself
		return fmt.Sprintf("Invalid tool arguments: %v", err), nil
	}

	switch name {
	case "get_repo_info":
		return s.github.RepoInfo(ctx, githubToken, args.GitHubURL)
	case "get_repo_structure":
		return s.github.RepoStructure(ctx, githubToken, args.GitHubURL)
	case "get_file_content":
		return s.github.FileContent(ctx, githubToken, args.GitHubURL, args.FilePath)
	case "get_issues":
		return s.github.Issues(ctx, githubToken, args.GitHubURL, args.State)
	case "get_pull_requests":
		return s.github.PullRequests(ctx, githubToken, args.GitHubURL, args.State)
	default:
		return fmt.Sprintf("Unknown tool: %s", name), nil
	}
}

func githubToolDefinitions() []openai.ChatCompletionToolParam {
	repoURLProp := map[string]any{
		"type":        "string",
		"description": "Full GitHub repository URL, e.g. https://github.com/owner/repo",
	}
	stateProp := map[string]any{
		"type":        "string",
		"enum":        []string{"open", "closed", "all"},
		"description": "Filter by state, defaults to open",
	}

	return []openai.ChatCompletionToolParam{
		{
			Function: openai.FunctionDefinitionParam{
				Name:        "get_repo_info",
				Description: openai.String("Get repository information using GitHub API."),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{"github_url": repoURLProp},
					"required":   []string{"github_url"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        "get_repo_structure",
				Description: openai.String("Get the directory structure of a GitHub repository."),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": map[string]any{"github_url": repoURLProp},
					"required":   []string{"github_url"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        "get_file_content",
				Description: openai.String("Get the content of a specific file in a GitHub repository."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"github_url": repoURLProp,
						"file_path": map[string]any{
							"type":        "string",
							"description": "Path of the file inside the repository",
						},
					},
					"required": []string{"github_url", "file_path"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        "get_issues",
				Description: openai.String("Get the issues of a GitHub repository. State can be 'open', 'closed', or 'all'."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"github_url": repoURLProp,
						"state":      stateProp,
					},
					"required": []string{"github_url"},
				},
			},
		},
		{
			Function: openai.FunctionDefinitionParam{
				Name:        "get_pull_requests",
				Description: openai.String("Get the pull requests of a GitHub repository. State can be 'open', 'closed', or 'all'."),
				Parameters: openai.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"github_url": repoURLProp,
						"state":      stateProp,
					},
					"required": []string{"github_url"},
				},
			},
		},
	}
}
