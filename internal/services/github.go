package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// GitHubService executes the agent's repository tools against the GitHub
// REST API. All tool methods return human-readable text: API-level failures
// (bad URL, 404, rate limit) are reported as strings for the model to relay,
// while transport errors surface as Go errors and abort the exchange.
type GitHubService struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
}

var repoURLPattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?$`)

func NewGitHubService(baseURL string, cache Cache) *GitHubService {
	return &GitHubService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

// parseRepoURL extracts owner and repo from any github.com URL form,
// including SSH remotes and trailing .git.
func parseRepoURL(githubURL string) (owner, repo string, ok bool) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(githubURL))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// fetch issues a GET against the GitHub API, serving from cache when
// possible. Only 200 responses are cached. The returned body is raw JSON.
func (s *GitHubService) fetch(ctx context.Context, token, url string) (status int, body string, err error) {
	key := cacheKey(url, token != "")
	if cached, ok := s.cache.Get(ctx, key); ok {
		return http.StatusOK, cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("GitHub API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read GitHub response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		s.cache.Set(ctx, key, string(data))
	}
	return resp.StatusCode, string(data), nil
}

type repoOwner struct {
	Login string `json:"login"`
}

type repoLicense struct {
	Name string `json:"name"`
}

type repoInfo struct {
	FullName      string       `json:"full_name"`
	Owner         repoOwner    `json:"owner"`
	Description   *string      `json:"description"`
	Size          float64      `json:"size"` // KB
	Stars         int          `json:"stargazers_count"`
	Forks         int          `json:"forks_count"`
	OpenIssues    int          `json:"open_issues_count"`
	Language      *string      `json:"language"`
	CreatedAt     string       `json:"created_at"`
	UpdatedAt     string       `json:"updated_at"`
	DefaultBranch string       `json:"default_branch"`
	Visibility    string       `json:"visibility"`
	Topics        []string     `json:"topics"`
	License       *repoLicense `json:"license"`
}

// RepoInfo returns a formatted overview of a repository.
func (s *GitHubService) RepoInfo(ctx context.Context, token, githubURL string) (string, error) {
	owner, repo, ok := parseRepoURL(githubURL)
	if !ok {
		return "Invalid GitHub URL format.", nil
	}

	status, body, err := s.fetch(ctx, token, fmt.Sprintf("%s/repos/%s/%s", s.baseURL, owner, repo))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to get repository info: %s", body), nil
	}

	var info repoInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		return "", fmt.Errorf("failed to decode repository info: %w", err)
	}

	description := "No description"
	if info.Description != nil && *info.Description != "" {
		description = *info.Description
	}
	language := "Unknown"
	if info.Language != nil && *info.Language != "" {
		language = *info.Language
	}
	topics := "No topics"
	if len(info.Topics) > 0 {
		topics = strings.Join(info.Topics, ", ")
	}
	license := "No license available"
	if info.License != nil && info.License.Name != "" {
		license = info.License.Name
	}

	return fmt.Sprintf(
		"Repository: %s\n"+
			"Owner: %s\n"+
			"Description: %s\n"+
			"Size: %.1fMB\n"+
			"Stars: %d\n"+
			"Forks: %d\n"+
			"Open Issues: %d\n"+
			"Pull Requests: https://github.com/%s/%s/pulls\n"+
			"Language: %s\n"+
			"Created: %s\n"+
			"Last Updated: %s\n"+
			"Default Branch: %s\n"+
			"Visibility: %s\n"+
			"Topics: %s\n"+
			"License: %s",
		info.FullName, info.Owner.Login, description, info.Size/1024,
		info.Stars, info.Forks, info.OpenIssues, owner, repo, language,
		info.CreatedAt, info.UpdatedAt, info.DefaultBranch, info.Visibility,
		topics, license,
	), nil
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "tree" or "blob"
}

type treeResponse struct {
	Tree []treeEntry `json:"tree"`
}

var excludedTreePaths = []string{".git/", "node_modules/", "__pycache__/"}

// RepoStructure returns one line per file or directory in the repository
// tree, trying the main branch first and falling back to master.
func (s *GitHubService) RepoStructure(ctx context.Context, token, githubURL string) (string, error) {
	owner, repo, ok := parseRepoURL(githubURL)
	if !ok {
		return "Invalid GitHub URL format", nil
	}

	status, body, err := s.fetch(ctx, token,
		fmt.Sprintf("%s/repos/%s/%s/git/trees/main?recursive=1", s.baseURL, owner, repo))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		status, body, err = s.fetch(ctx, token,
			fmt.Sprintf("%s/repos/%s/%s/git/trees/master?recursive=1", s.baseURL, owner, repo))
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return fmt.Sprintf("Failed to get repository structure: %s", body), nil
		}
	}

	var tree treeResponse
	if err := json.Unmarshal([]byte(body), &tree); err != nil {
		return "", fmt.Errorf("failed to decode repository tree: %w", err)
	}

	var lines []string
	for _, entry := range tree.Tree {
		if isExcludedPath(entry.Path) {
			continue
		}
		prefix := "📄 "
		if entry.Type == "tree" {
			prefix = "📁 "
		}
		lines = append(lines, prefix+entry.Path)
	}

	return strings.Join(lines, "\n"), nil
}

func isExcludedPath(path string) bool {
	for _, excluded := range excludedTreePaths {
		if strings.Contains(path, excluded) {
			return true
		}
	}
	return false
}

type contentsResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// FileContent returns the decoded content of a single file.
func (s *GitHubService) FileContent(ctx context.Context, token, githubURL, filePath string) (string, error) {
	owner, repo, ok := parseRepoURL(githubURL)
	if !ok {
		return "Invalid GitHub URL format", nil
	}

	status, body, err := s.fetch(ctx, token,
		fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.baseURL, owner, repo, filePath))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to get file content: %s", body), nil
	}

	var contents contentsResponse
	if err := json.Unmarshal([]byte(body), &contents); err != nil {
		return "", fmt.Errorf("failed to decode file contents: %w", err)
	}
	if contents.Type != "file" {
		return "The path does not point to a file", nil
	}

	// The contents API wraps base64 at 60 columns
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode file content: %w", err)
	}

	return fmt.Sprintf("File: %s\n\n%s", filePath, decoded), nil
}

type issueItem struct {
	Number      int             `json:"number"`
	Title       string          `json:"title"`
	State       string          `json:"state"`
	CreatedAt   string          `json:"created_at"`
	HTMLURL     string          `json:"html_url"`
	PullRequest json.RawMessage `json:"pull_request"`
}

// Issues lists up to ten issues in the given state ("open", "closed" or
// "all"), excluding pull requests.
func (s *GitHubService) Issues(ctx context.Context, token, githubURL, state string) (string, error) {
	owner, repo, ok := parseRepoURL(githubURL)
	if !ok {
		return "Invalid GitHub URL format", nil
	}
	if state == "" {
		state = "open"
	}

	status, body, err := s.fetch(ctx, token,
		fmt.Sprintf("%s/repos/%s/%s/issues?state=%s&per_page=10", s.baseURL, owner, repo, state))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to get issues: %s", body), nil
	}

	var issues []issueItem
	if err := json.Unmarshal([]byte(body), &issues); err != nil {
		return "", fmt.Errorf("failed to decode issues: %w", err)
	}
	if len(issues) == 0 {
		return fmt.Sprintf("No %s issues found.", state), nil
	}

	var lines []string
	for _, issue := range issues {
		// The issues endpoint also returns PRs
		if issue.PullRequest != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf(
			"#%d - %s\nState: %s\nCreated: %s\nURL: %s\n",
			issue.Number, issue.Title, issue.State, issue.CreatedAt, issue.HTMLURL))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No %s issues found (excluding PRs).", state), nil
	}

	return strings.Join(lines, "\n"), nil
}

// PullRequests lists up to ten pull requests in the given state.
func (s *GitHubService) PullRequests(ctx context.Context, token, githubURL, state string) (string, error) {
	owner, repo, ok := parseRepoURL(githubURL)
	if !ok {
		return "Invalid GitHub URL format", nil
	}
	if state == "" {
		state = "open"
	}

	status, body, err := s.fetch(ctx, token,
		fmt.Sprintf("%s/repos/%s/%s/pulls?state=%s&per_page=10", s.baseURL, owner, repo, state))
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return fmt.Sprintf("Failed to get pull requests: %s", body), nil
	}

	var prs []issueItem
	if err := json.Unmarshal([]byte(body), &prs); err != nil {
		return "", fmt.Errorf("failed to decode pull requests: %w", err)
	}
	if len(prs) == 0 {
		return fmt.Sprintf("No %s pull requests found.", state), nil
	}

	var lines []string
	for _, pr := range prs {
		lines = append(lines, fmt.Sprintf(
			"#%d - %s\nState: %s\nCreated: %s\nURL: %s\n",
			pr.Number, pr.Title, pr.State, pr.CreatedAt, pr.HTMLURL))
	}

	return strings.Join(lines, "\n"), nil
}
