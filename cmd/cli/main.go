package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"gitagent-backend/internal/config"
	"gitagent-backend/internal/models"
	"gitagent-backend/internal/services"
)

func main() {
	var (
		model       string
		githubToken string
		showTools   bool
	)

	rootCmd := &cobra.Command{
		Use:   "gitagent",
		Short: "Chat with the GitHub agent from the terminal",
		Long: "Interactive GitHub agent chat. Requires GROQ_API_KEY in the " +
			"environment or a .env file; GITHUB_TOKEN is optional and raises " +
			"the GitHub API rate limit.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.GroqAPIKey == "" {
				return fmt.Errorf("GROQ_API_KEY environment variable is not set")
			}
			if model != "" {
				cfg.GroqModel = model
			}
			if githubToken == "" {
				githubToken = cfg.GitHubToken
			}

			github := services.NewGitHubService(cfg.GitHubAPIURL, services.NewNoopCache())
			agent := services.NewAgentService(github, cfg.GroqAPIKey, cfg.GroqModel, cfg.GroqBaseURL, 1)

			return chatLoop(cmd.Context(), agent, githubToken, showTools, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	rootCmd.Flags().StringVar(&model, "model", "", "Groq model to use (default from GROQ_MODEL)")
	rootCmd.Flags().StringVar(&githubToken, "github-token", "", "GitHub token (default from GITHUB_TOKEN)")
	rootCmd.Flags().BoolVar(&showTools, "show-tools", true, "print tool calls as the agent makes them")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func chatLoop(ctx context.Context, agent *services.AgentService, githubToken string, showTools bool, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "GitHub Agent CLI (type 'quit' to exit)")
	fmt.Fprintln(out, "Enter your message:")

	var history []models.ChatMessage
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			return nil
		}

		resp, err := agent.Run(ctx, models.ChatRequest{
			Message:     input,
			GitHubToken: githubToken,
			History:     history,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		if showTools {
			for _, call := range resp.ToolCalls {
				args, _ := json.Marshal(call.Args)
				fmt.Fprintf(out, "[tool] %s(%s)\n", call.Name, args)
			}
		}
		fmt.Fprintln(out, resp.Response)

		history = append(history,
			models.ChatMessage{Role: "user", Content: input},
			models.ChatMessage{Role: "assistant", Content: resp.Response},
		)
	}
}
