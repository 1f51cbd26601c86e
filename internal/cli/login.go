package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jmaddaus/issueboard/internal/config"
	"github.com/jmaddaus/issueboard/internal/github"
)

func runLogin(args []string, gf globalFlags) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	tokenFlag := fs.String("token", "", "GitHub personal access token")
	status := fs.Bool("status", false, "Show current auth status")

	if err := fs.Parse(args); err != nil {
		return err
	}

	apiURL := githubAPIURL()
	if *status {
		return runLoginStatus(apiURL)
	}

	token := *tokenFlag

	// If no --token flag, read from stdin.
	if token == "" {
		fi, _ := os.Stdin.Stat()
		if fi != nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Print("Enter GitHub token: ")
		}
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			token = strings.TrimSpace(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}

	if token == "" {
		return fmt.Errorf("no token provided; use --token or pipe via stdin")
	}

	username, err := github.ValidateToken(context.Background(), apiURL, token)
	if err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}

	if err := github.SaveToken(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Printf("Authenticated as @%s. Token saved; restart the daemon to use it.\n", username)
	return nil
}

func runLogout(args []string, gf globalFlags) error {
	if err := github.RemoveToken(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Println("Token removed.")
	return nil
}

func runLoginStatus(apiURL string) error {
	methods, err := github.ResolveTokenWithMethod()
	if err != nil {
		fmt.Println("No GitHub token found; boards load with the unauthenticated rate limit.")
		fmt.Println()
		fmt.Println("To authenticate, use one of:")
		fmt.Println("  board login              Enter a token interactively")
		fmt.Println("  board login --token TOK  Provide a token directly")
		fmt.Println("  gh auth login            Use GitHub CLI")
		fmt.Println("  export GITHUB_TOKEN=..   Set environment variable")
		return nil
	}

	fmt.Printf("Found %d auth method(s):\n", len(methods))
	for i, m := range methods {
		prefix := "  "
		if i == 0 {
			prefix = "* "
		}
		fmt.Printf("%s%-25s %s\n", prefix, m.Name, maskToken(m.Token))
	}

	fmt.Println()
	username, err := github.ValidateToken(context.Background(), apiURL, methods[0].Token)
	if err != nil {
		fmt.Printf("Active token validation failed: %v\n", err)
	} else {
		fmt.Printf("Authenticated as @%s (via %s)\n", username, methods[0].Name)
	}

	return nil
}

// githubAPIURL returns the configured API base URL, falling back to the
// public API when the config cannot be read.
func githubAPIURL() string {
	cfg, err := config.Load()
	if err != nil || cfg.GitHubAPIURL == "" {
		return github.DefaultBaseURL
	}
	return cfg.GitHubAPIURL
}

// maskToken shows the first 4 and last 4 characters of a token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
