package github

import (
	"time"

	"github.com/jmaddaus/issueboard/internal/model"
)

// GitHubUser is the subset of a GitHub user object the board shows.
type GitHubUser struct {
	Login string `json:"login"`
}

// GitHubIssue represents a GitHub issue from the REST API.
type GitHubIssue struct {
	ID        int64       `json:"id"`
	Number    int         `json:"number"`
	Title     string      `json:"title"`
	State     string      `json:"state"`
	Assignee  *GitHubUser `json:"assignee"`
	Comments  int         `json:"comments"`
	CreatedAt time.Time   `json:"created_at"`
	User      *GitHubUser `json:"user"`
}

// GitHubRepo is the subset of the repository object used for star counts.
type GitHubRepo struct {
	FullName        string `json:"full_name"`
	StargazersCount int    `json:"stargazers_count"`
}

// ToModel maps an API issue onto the board's issue type.
func (g *GitHubIssue) ToModel() model.Issue {
	iss := model.Issue{
		ID:        g.ID,
		Number:    g.Number,
		Title:     g.Title,
		State:     model.StateOpen,
		Comments:  g.Comments,
		CreatedAt: g.CreatedAt,
	}
	if g.State == string(model.StateClosed) {
		iss.State = model.StateClosed
	}
	if g.Assignee != nil && g.Assignee.Login != "" {
		iss.Assignee = &model.User{Login: g.Assignee.Login}
	}
	if g.User != nil {
		iss.User = model.User{Login: g.User.Login}
	}
	return iss
}
