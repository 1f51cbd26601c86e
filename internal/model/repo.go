package model

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidRepoURL is returned for anything other than
// https://github.com/<owner>/<repo>.
var ErrInvalidRepoURL = errors.New("invalid GitHub repository URL (expected https://github.com/<owner>/<repo>)")

const githubPrefix = "https://github.com/"

var repoURLRe = regexp.MustCompile(`^https://github\.com/[^/]+/[^/]+$`)

// RepoRef identifies a GitHub repository by its web URL.
type RepoRef struct {
	URL   string `json:"url"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepoURL validates a repository URL and splits it into owner and name.
func ParseRepoURL(url string) (RepoRef, error) {
	if !repoURLRe.MatchString(url) {
		return RepoRef{}, ErrInvalidRepoURL
	}
	owner, name, _ := strings.Cut(strings.TrimPrefix(url, githubPrefix), "/")
	return RepoRef{URL: url, Owner: owner, Name: name}, nil
}

// FullName returns "owner/name".
func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// PositionsKeyPrefix prefixes every persisted position map key.
const PositionsKeyPrefix = "issuePositions-"

// PositionsKey returns the storage key under which the repository's
// issue positions are persisted.
func PositionsKey(repoURL string) string {
	return PositionsKeyPrefix + repoURL
}
