// Package board composes the GitHub fetcher and the position table into
// the three-column view of a repository's issues.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmaddaus/issueboard/internal/format"
	"github.com/jmaddaus/issueboard/internal/model"
	"github.com/jmaddaus/issueboard/internal/positions"
)

// ErrNotLoaded is returned for a repository that has not been loaded in
// this process.
var ErrNotLoaded = errors.New("board not loaded")

// Fetcher is the remote data source for issues and star counts.
type Fetcher interface {
	ListIssues(ctx context.Context, owner, repo string) ([]model.Issue, error)
	GetStarCount(ctx context.Context, owner, repo string) (int, error)
}

// Card is an issue as shown on the board.
type Card struct {
	model.Issue
	DaysAgo int `json:"days_ago"`
}

// Column is one of the three board columns with its cards in order.
type Column struct {
	Name  model.Column `json:"name"`
	Cards []Card       `json:"cards"`
}

// Board is the rendered state of one repository.
type Board struct {
	Repo       model.RepoRef `json:"repo"`
	Stars      int           `json:"stars"`
	StarsLabel string        `json:"stars_label"`
	Columns    []Column      `json:"columns"`
	LoadedAt   time.Time     `json:"loaded_at"`
}

// Column returns the named column, or nil.
func (b *Board) Column(name model.Column) *Column {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i]
		}
	}
	return nil
}

// session is what the process remembers about a loaded repository.
type session struct {
	ref      model.RepoRef
	issues   []model.Issue // display order
	stars    int
	loadedAt time.Time
}

// Service loads boards and applies moves. It is safe for concurrent use.
type Service struct {
	fetcher Fetcher
	table   *positions.Table

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService creates a Service.
func NewService(fetcher Fetcher, table *positions.Table) *Service {
	return &Service{
		fetcher:  fetcher,
		table:    table,
		sessions: make(map[string]*session),
	}
}

// Load fetches a repository's issues and star count, reconciles them with
// the saved positions and returns the board. An invalid URL is rejected
// before anything is fetched. If the issues cannot be fetched the previous
// state is left untouched; a failed star count only keeps the old count.
func (s *Service) Load(ctx context.Context, repoURL string) (*Board, error) {
	ref, err := model.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	var (
		issues   []model.Issue
		stars    int
		starsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issues, err = s.fetcher.ListIssues(gctx, ref.Owner, ref.Name)
		return err
	})
	g.Go(func() error {
		stars, starsErr = s.fetcher.GetStarCount(gctx, ref.Owner, ref.Name)
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to fetch issues", "repo", ref.URL, "error", err)
		return nil, fmt.Errorf("fetch issues for %s: %w", ref.FullName(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.sessions[ref.URL]
	if starsErr != nil {
		slog.Warn("failed to fetch stars", "repo", ref.URL, "error", starsErr)
		stars = 0
		if prev != nil {
			stars = prev.stars
		}
	}

	issues = positions.UniqueByID(issues)

	// The table is authoritative once this process holds the repository:
	// storage can lag behind it after a failed save.
	if !s.table.Has(ref.URL) {
		s.table.Restore(ctx, ref.URL)
	}
	placed, err := s.table.Initialize(ctx, ref.URL, issues)
	if err != nil {
		slog.Warn("issue positions not saved", "repo", ref.URL, "error", err)
	}
	positions.SortByIndex(placed)(issues)

	sess := &session{
		ref:      ref,
		issues:   displayOrder(issues, placed),
		stars:    stars,
		loadedAt: time.Now().UTC(),
	}
	s.sessions[ref.URL] = sess

	slog.Info("board loaded", "repo", ref.FullName(), "issues", len(issues), "stars", stars)
	return s.render(sess), nil
}

// Get returns the board for a previously loaded repository.
func (s *Service) Get(repoURL string) (*Board, error) {
	ref, err := model.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[ref.URL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, ref.URL)
	}
	return s.render(sess), nil
}

// Move applies a drag-and-drop gesture to a loaded board.
func (s *Service) Move(ctx context.Context, repoURL string, cmd model.MoveCommand) (*Board, error) {
	ref, err := model.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[ref.URL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, ref.URL)
	}

	ordered, _, err := s.table.Move(ctx, ref.URL, cmd, sess.issues)
	switch {
	case errors.Is(err, positions.ErrPersist):
		slog.Warn("issue positions not saved", "repo", ref.URL, "error", err)
	case err != nil:
		return nil, err
	}
	sess.issues = ordered

	slog.Info("issue moved", "repo", ref.FullName(), "issue", cmd.IssueID,
		"from", cmd.FromColumn, "to", cmd.ToColumn, "index", cmd.ToIndex)
	return s.render(sess), nil
}

// Loaded returns the URLs of every repository loaded in this process.
func (s *Service) Loaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for url := range s.sessions {
		out = append(out, url)
	}
	slices.Sort(out)
	return out
}

// Positions returns the placements currently held for repoURL.
func (s *Service) Positions(ctx context.Context, repoURL string) (model.Positions, error) {
	ref, err := model.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if p := s.table.Get(ref.URL); len(p) > 0 {
		return p, nil
	}
	p, _ := s.table.Restore(ctx, ref.URL)
	return p, nil
}

// render builds the Board for sess. Callers hold s.mu.
func (s *Service) render(sess *session) *Board {
	placed := s.table.Get(sess.ref.URL)
	b := &Board{
		Repo:       sess.ref,
		Stars:      sess.stars,
		StarsLabel: format.FormatCount(int64(sess.stars)),
		LoadedAt:   sess.loadedAt,
	}
	for _, name := range model.Columns {
		col := Column{Name: name, Cards: []Card{}}
		for _, iss := range sess.issues {
			if columnOf(placed, iss.ID) == name {
				col.Cards = append(col.Cards, Card{Issue: iss, DaysAgo: format.DaysAgo(iss.CreatedAt)})
			}
		}
		b.Columns = append(b.Columns, col)
	}
	return b
}

// displayOrder regroups issues as ToDo, In Progress, Done, keeping the
// relative order within each column.
func displayOrder(issues []model.Issue, placed model.Positions) []model.Issue {
	out := make([]model.Issue, 0, len(issues))
	for _, name := range model.Columns {
		for _, iss := range issues {
			if columnOf(placed, iss.ID) == name {
				out = append(out, iss)
			}
		}
	}
	return out
}

func columnOf(placed model.Positions, id int64) model.Column {
	if pos, ok := placed[id]; ok && pos.Column.Valid() {
		return pos.Column
	}
	return model.ColumnToDo
}
