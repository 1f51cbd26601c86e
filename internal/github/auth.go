package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// TokenMethod describes where a token was found.
type TokenMethod struct {
	Name  string // "GITHUB_TOKEN env", "token file", "gh auth token"
	Token string
}

// TokenFilePath returns the path to the stored token file (~/.issueboard/token).
func TokenFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".issueboard", "token"), nil
}

// SaveToken writes a token to the token file with 0600 permissions.
func SaveToken(token string) error {
	path, err := TokenFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0600)
}

// RemoveToken deletes the stored token file.
func RemoveToken() error {
	path, err := TokenFilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// ValidateToken calls GET /user on baseURL and returns the login the
// token belongs to.
func ValidateToken(ctx context.Context, baseURL, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GitHub API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("token is invalid or expired (HTTP 401)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status from GitHub API: %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user response: %w", err)
	}
	if user.Login == "" {
		return "", fmt.Errorf("GitHub API returned empty username")
	}
	return user.Login, nil
}

// ResolveToken returns the first token found in GITHUB_TOKEN, the token
// file, or `gh auth token`. The board works without one, at GitHub's
// unauthenticated rate limit.
func ResolveToken() (string, error) {
	methods, err := ResolveTokenWithMethod()
	if err != nil {
		return "", err
	}
	return methods[0].Token, nil
}

// ResolveTokenWithMethod lists every source that currently yields a token,
// in precedence order.
func ResolveTokenWithMethod() ([]TokenMethod, error) {
	var methods []TokenMethod

	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		methods = append(methods, TokenMethod{Name: "GITHUB_TOKEN env", Token: token})
	}
	if token, err := resolveFromTokenFile(); err == nil {
		methods = append(methods, TokenMethod{Name: "~/.issueboard/token", Token: token})
	}
	if token, err := resolveFromGHCLI(); err == nil {
		methods = append(methods, TokenMethod{Name: "gh auth token", Token: token})
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no GitHub token found (set GITHUB_TOKEN, run 'board login', or 'gh auth login')")
	}
	return methods, nil
}

func resolveFromTokenFile() (string, error) {
	path, err := TokenFilePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}

func resolveFromGHCLI() (string, error) {
	out, err := exec.Command("gh", "auth", "token").Output()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty output")
	}
	return token, nil
}
