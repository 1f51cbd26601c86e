// Package positions keeps track of where each issue sits on a repository's
// board and persists those placements through a store.KV.
package positions

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmaddaus/issueboard/internal/model"
	"github.com/jmaddaus/issueboard/internal/store"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotInColumn   = errors.New("issue is not in the source column")
	// ErrPersist wraps storage failures. The in-memory table is already
	// updated when it is returned.
	ErrPersist = errors.New("persist positions")
)

// SortFunc reorders an issue slice in place by stored order-index.
type SortFunc func(issues []model.Issue)

// Table is the position table: repository URL to issue placements.
// It is safe for concurrent use.
type Table struct {
	kv store.KV

	mu    sync.Mutex
	repos map[string]model.Positions
}

// NewTable returns an empty table persisting through kv.
func NewTable(kv store.KV) *Table {
	return &Table{
		kv:    kv,
		repos: make(map[string]model.Positions),
	}
}

// Has reports whether the table holds an entry for repoURL.
func (t *Table) Has(repoURL string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.repos[repoURL]
	return ok
}

// UniqueByID returns issues without repeated IDs, keeping the first
// occurrence of each.
func UniqueByID(issues []model.Issue) []model.Issue {
	seen := make(map[int64]struct{}, len(issues))
	out := make([]model.Issue, 0, len(issues))
	for _, iss := range issues {
		if _, dup := seen[iss.ID]; dup {
			continue
		}
		seen[iss.ID] = struct{}{}
		out = append(out, iss)
	}
	return out
}

// Get returns a copy of the placements currently held for repoURL.
func (t *Table) Get(repoURL string) model.Positions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repos[repoURL].Clone()
}

// Initialize merges freshly fetched issues into the repository's placements.
// Issues without a placement get DefaultColumn and their index in fetched;
// placements of issues missing from fetched are dropped. Every column is then
// renumbered contiguously, ordered by stored index with fetch order breaking
// ties. The resulting map is persisted.
func (t *Table) Initialize(ctx context.Context, repoURL string, fetched []model.Issue) (model.Positions, error) {
	fetched = UniqueByID(fetched)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.repos[repoURL]
	merged := make(model.Positions, len(fetched))
	fetchOrder := make(map[int64]int, len(fetched))
	for i := range fetched {
		iss := &fetched[i]
		fetchOrder[iss.ID] = i
		if pos, ok := existing[iss.ID]; ok && pos.Column.Valid() {
			merged[iss.ID] = pos
			continue
		}
		merged[iss.ID] = model.Position{Column: DefaultColumn(iss), Index: i}
	}

	byColumn := make(map[model.Column][]int64, len(model.Columns))
	for id, pos := range merged {
		byColumn[pos.Column] = append(byColumn[pos.Column], id)
	}
	for col, ids := range byColumn {
		slices.SortFunc(ids, func(a, b int64) int {
			return cmp.Or(
				cmp.Compare(merged[a].Index, merged[b].Index),
				cmp.Compare(fetchOrder[a], fetchOrder[b]),
			)
		})
		for i, id := range ids {
			merged[id] = model.Position{Column: col, Index: i}
		}
	}

	t.repos[repoURL] = merged
	if err := t.persist(ctx, repoURL, merged); err != nil {
		return merged.Clone(), err
	}
	return merged.Clone(), nil
}

// Restore loads the persisted placements for repoURL into the table.
// A missing or corrupt payload yields an empty map; corruption is logged.
// The returned SortFunc orders issues by stored index, treating issues
// without a placement as index 0 and keeping ties in their current order.
func (t *Table) Restore(ctx context.Context, repoURL string) (model.Positions, SortFunc) {
	loaded := t.load(ctx, repoURL)

	t.mu.Lock()
	t.repos[repoURL] = loaded
	t.mu.Unlock()

	return loaded.Clone(), SortByIndex(loaded.Clone())
}

// SortByIndex returns a SortFunc ordering issues by their index in p.
// Issues missing from p sort as index 0; ties keep their relative order.
func SortByIndex(p model.Positions) SortFunc {
	return func(issues []model.Issue) {
		slices.SortStableFunc(issues, func(a, b model.Issue) int {
			return cmp.Compare(p[a.ID].Index, p[b.ID].Index)
		})
	}
}

func (t *Table) load(ctx context.Context, repoURL string) model.Positions {
	raw, err := t.kv.Get(ctx, model.PositionsKey(repoURL))
	if errors.Is(err, store.ErrNotFound) {
		return model.Positions{}
	}
	if err != nil {
		slog.Error("read issue positions", "repo", repoURL, "error", err)
		return model.Positions{}
	}

	var parsed model.Positions
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("error parsing issue positions", "repo", repoURL, "error", err)
		return model.Positions{}
	}
	if parsed == nil {
		parsed = model.Positions{}
	}
	return parsed
}

// Move applies a drag-and-drop gesture. The issues are partitioned into
// columns by their current placement (unplaced issues count as ToDo), the
// dragged issue is moved, and every column is renumbered from 0. The new
// display order is ToDo, then In Progress, then Done.
//
// Moving an issue that is not in issues is a no-op. If FromIndex does not
// point at the dragged issue it is located by ID within FromColumn. ToIndex
// is clamped to the destination column.
func (t *Table) Move(ctx context.Context, repoURL string, cmd model.MoveCommand, issues []model.Issue) ([]model.Issue, model.Positions, error) {
	if !cmd.FromColumn.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownColumn, cmd.FromColumn)
	}
	if !cmd.ToColumn.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownColumn, cmd.ToColumn)
	}

	issues = UniqueByID(issues)

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.repos[repoURL]
	if !slices.ContainsFunc(issues, func(iss model.Issue) bool { return iss.ID == cmd.IssueID }) {
		return slices.Clone(issues), current.Clone(), nil
	}

	columns := make(map[model.Column][]model.Issue, len(model.Columns))
	for _, iss := range issues {
		col := model.ColumnToDo
		if pos, ok := current[iss.ID]; ok && pos.Column.Valid() {
			col = pos.Column
		}
		columns[col] = append(columns[col], iss)
	}

	from := columns[cmd.FromColumn]
	idx := cmd.FromIndex
	if idx < 0 || idx >= len(from) || from[idx].ID != cmd.IssueID {
		idx = slices.IndexFunc(from, func(iss model.Issue) bool { return iss.ID == cmd.IssueID })
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: issue %d, column %q", ErrNotInColumn, cmd.IssueID, cmd.FromColumn)
		}
	}
	moved := from[idx]
	columns[cmd.FromColumn] = slices.Delete(from, idx, idx+1)

	to := columns[cmd.ToColumn]
	columns[cmd.ToColumn] = slices.Insert(to, min(max(cmd.ToIndex, 0), len(to)), moved)

	updated := make(model.Positions, len(issues))
	ordered := make([]model.Issue, 0, len(issues))
	for _, col := range model.Columns {
		for i, iss := range columns[col] {
			updated[iss.ID] = model.Position{Column: col, Index: i}
		}
		ordered = append(ordered, columns[col]...)
	}

	t.repos[repoURL] = updated
	if err := t.persist(ctx, repoURL, updated); err != nil {
		return ordered, updated.Clone(), err
	}
	return ordered, updated.Clone(), nil
}

// persist writes one repository's placements. Callers hold t.mu.
func (t *Table) persist(ctx context.Context, repoURL string, positions model.Positions) error {
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}
	if err := t.kv.Set(ctx, model.PositionsKey(repoURL), string(data)); err != nil {
		slog.Error("persist issue positions", "repo", repoURL, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
