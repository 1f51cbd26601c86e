package positions

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmaddaus/issueboard/internal/model"
	"github.com/jmaddaus/issueboard/internal/store"
)

const repoURL = "https://github.com/octocat/hello-world"

func newTestTable(t *testing.T) (*Table, *store.SQLiteStore) {
	t.Helper()
	kv, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return NewTable(kv), kv
}

func openIssue(id int64) model.Issue {
	return model.Issue{ID: id, Title: "issue", State: model.StateOpen}
}

func closedIssue(id int64) model.Issue {
	return model.Issue{ID: id, Title: "issue", State: model.StateClosed}
}

func assignedIssue(id int64, login string) model.Issue {
	iss := openIssue(id)
	iss.Assignee = &model.User{Login: login}
	return iss
}

func ids(issues []model.Issue) []int64 {
	out := make([]int64, len(issues))
	for i, iss := range issues {
		out[i] = iss.ID
	}
	return out
}

// requireContiguous checks that each column's indices are exactly 0..k-1.
func requireContiguous(t *testing.T, positions model.Positions) {
	t.Helper()
	seen := make(map[model.Column][]int)
	for _, pos := range positions {
		require.True(t, pos.Column.Valid(), "invalid column %q", pos.Column)
		seen[pos.Column] = append(seen[pos.Column], pos.Index)
	}
	for col, idx := range seen {
		slices.Sort(idx)
		for i, v := range idx {
			require.Equal(t, i, v, "column %s indices %v", col, idx)
		}
	}
}

func TestDefaultColumn(t *testing.T) {
	closedAssigned := closedIssue(1)
	closedAssigned.Assignee = &model.User{Login: "octocat"}
	emptyLogin := openIssue(2)
	emptyLogin.Assignee = &model.User{}

	cases := []struct {
		name  string
		issue model.Issue
		want  model.Column
	}{
		{"open unassigned", openIssue(1), model.ColumnToDo},
		{"open assigned", assignedIssue(1, "octocat"), model.ColumnInProgress},
		{"closed", closedIssue(1), model.ColumnDone},
		{"closed and assigned", closedAssigned, model.ColumnDone},
		{"assignee without login", emptyLogin, model.ColumnToDo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DefaultColumn(&tc.issue))
		})
	}
}

func TestInitializeAssignsColumns(t *testing.T) {
	table, _ := newTestTable(t)
	fetched := []model.Issue{
		openIssue(1), assignedIssue(2, "a"), closedIssue(3),
		openIssue(4), closedIssue(5), assignedIssue(6, "b"),
	}

	got, err := table.Initialize(context.Background(), repoURL, fetched)
	require.NoError(t, err)
	require.Len(t, got, len(fetched))

	for _, iss := range fetched {
		assert.Equal(t, DefaultColumn(&iss), got[iss.ID].Column, "issue %d", iss.ID)
	}
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 0}, got[1])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 1}, got[4])
	assert.Equal(t, model.Position{Column: model.ColumnInProgress, Index: 0}, got[2])
	assert.Equal(t, model.Position{Column: model.ColumnInProgress, Index: 1}, got[6])
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 0}, got[3])
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 1}, got[5])
	requireContiguous(t, got)
}

func TestInitializeKeepsExistingAndAppends(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()

	_, err := table.Initialize(ctx, repoURL, []model.Issue{openIssue(1), openIssue(2)})
	require.NoError(t, err)

	// Put 2 ahead of 1.
	_, _, err = table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 2, FromIndex: 1, ToIndex: 0,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnToDo,
	}, []model.Issue{openIssue(1), openIssue(2)})
	require.NoError(t, err)

	// A new issue arrives at the front of the fetch. It takes its fetch
	// index and the manual order of the others survives behind it.
	got, err := table.Initialize(ctx, repoURL, []model.Issue{openIssue(3), openIssue(1), openIssue(2)})
	require.NoError(t, err)
	requireContiguous(t, got)
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 0}, got[3])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 1}, got[2])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 2}, got[1])
}

func TestInitializeDropsVanishedIssues(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()

	_, err := table.Initialize(ctx, repoURL, []model.Issue{openIssue(1), openIssue(2), openIssue(3)})
	require.NoError(t, err)
	got, err := table.Initialize(ctx, repoURL, []model.Issue{openIssue(1), openIssue(3)})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.NotContains(t, got, int64(2))
	requireContiguous(t, got)
}

func TestInitializePersistsStorageFormat(t *testing.T) {
	table, kv := newTestTable(t)
	_, err := table.Initialize(context.Background(), repoURL, []model.Issue{openIssue(11), closedIssue(12)})
	require.NoError(t, err)

	raw, err := kv.Get(context.Background(), "issuePositions-"+repoURL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"11":{"column":"ToDo","index":0},"12":{"column":"Done","index":0}}`, raw)
}

func TestRestoreRoundTrip(t *testing.T) {
	table, kv := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), assignedIssue(2, "a"), closedIssue(3), openIssue(4)}

	saved, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	// A fresh table over the same storage sees the same placements.
	restored, _ := NewTable(kv).Restore(ctx, repoURL)
	assert.Equal(t, saved, restored)
}

func TestRestoreMissing(t *testing.T) {
	table, _ := newTestTable(t)
	got, sortIssues := table.Restore(context.Background(), repoURL)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	issues := []model.Issue{openIssue(3), openIssue(1)}
	sortIssues(issues)
	assert.Equal(t, []int64{3, 1}, ids(issues))
}

func TestRestoreCorruptPayload(t *testing.T) {
	table, kv := newTestTable(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, model.PositionsKey(repoURL), "{not json"))

	got, _ := table.Restore(ctx, repoURL)
	assert.Empty(t, got)
	assert.Empty(t, table.Get(repoURL))
}

func TestRestoreSortFunc(t *testing.T) {
	table, kv := newTestTable(t)
	ctx := context.Background()
	payload, err := json.Marshal(model.Positions{
		1: {Column: model.ColumnToDo, Index: 2},
		2: {Column: model.ColumnToDo, Index: 0},
		3: {Column: model.ColumnDone, Index: 1},
	})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, model.PositionsKey(repoURL), string(payload)))

	_, sortIssues := table.Restore(ctx, repoURL)
	// 9 and 8 have no placement and tie at 0 with 2, keeping input order.
	issues := []model.Issue{openIssue(1), openIssue(9), openIssue(3), openIssue(2), openIssue(8)}
	sortIssues(issues)
	assert.Equal(t, []int64{9, 2, 8, 3, 1}, ids(issues))
}

func TestMoveAcrossColumns(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), openIssue(2), openIssue(7), openIssue(4), closedIssue(10), closedIssue(11)}
	_, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	ordered, got, err := table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 7, FromIndex: 2, ToIndex: 0,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnDone,
	}, fetched)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 4, 7, 10, 11}, ids(ordered))
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 0}, got[7])
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 1}, got[10])
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 2}, got[11])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 0}, got[1])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 1}, got[2])
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 2}, got[4])
	requireContiguous(t, got)
	assert.Equal(t, got, table.Get(repoURL))
}

func TestMoveWithinColumn(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), openIssue(2), openIssue(3)}
	_, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	ordered, got, err := table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 1, FromIndex: 0, ToIndex: 2,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnToDo,
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, ids(ordered))
	assert.Equal(t, 2, got[1].Index)
	requireContiguous(t, got)
}

func TestMoveUnknownIssueIsNoop(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), openIssue(2)}
	before, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	ordered, got, err := table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 99, FromIndex: 0, ToIndex: 0,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnDone,
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(ordered))
	assert.Equal(t, before, got)
}

func TestMoveClampsAndLocatesByID(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), openIssue(2), closedIssue(3)}
	_, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	// Stale FromIndex and an out-of-range ToIndex.
	ordered, got, err := table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 2, FromIndex: 5, ToIndex: 40,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnDone,
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2}, ids(ordered))
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 1}, got[2])

	_, got, err = table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 1, FromIndex: 0, ToIndex: -3,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnDone,
	}, ordered)
	require.NoError(t, err)
	assert.Equal(t, model.Position{Column: model.ColumnDone, Index: 0}, got[1])
	requireContiguous(t, got)
}

func TestMoveErrors(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), closedIssue(2)}
	_, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)

	_, _, err = table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 1, FromColumn: "Backlog", ToColumn: model.ColumnDone,
	}, fetched)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 1, FromColumn: model.ColumnDone, ToColumn: model.ColumnToDo,
	}, fetched)
	assert.ErrorIs(t, err, ErrNotInColumn)
}

func TestMoveUnplacedIssuesCountAsToDo(t *testing.T) {
	table, _ := newTestTable(t)
	fetched := []model.Issue{closedIssue(1), closedIssue(2)}

	_, got, err := table.Move(context.Background(), repoURL, model.MoveCommand{
		IssueID: 2, FromIndex: 1, ToIndex: 0,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnInProgress,
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, model.Position{Column: model.ColumnToDo, Index: 0}, got[1])
	assert.Equal(t, model.Position{Column: model.ColumnInProgress, Index: 0}, got[2])
}

func TestMoveRandomKeepsColumnsContiguous(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	r := rand.New(rand.NewPCG(1, 2))

	var issues []model.Issue
	for i := int64(1); i <= 25; i++ {
		switch r.IntN(3) {
		case 0:
			issues = append(issues, openIssue(i))
		case 1:
			issues = append(issues, assignedIssue(i, "dev"))
		default:
			issues = append(issues, closedIssue(i))
		}
	}
	positions, err := table.Initialize(ctx, repoURL, issues)
	require.NoError(t, err)

	for step := 0; step < 200; step++ {
		iss := issues[r.IntN(len(issues))]
		pos := positions[iss.ID]
		to := model.Columns[r.IntN(len(model.Columns))]
		issues, positions, err = table.Move(ctx, repoURL, model.MoveCommand{
			IssueID:    iss.ID,
			FromIndex:  pos.Index,
			ToIndex:    r.IntN(30),
			FromColumn: pos.Column,
			ToColumn:   to,
		}, issues)
		require.NoError(t, err, "step %d", step)
		require.Len(t, positions, 25)
		requireContiguous(t, positions)
	}
}

type failingKV struct{ store.KV }

func (failingKV) Set(context.Context, string, string) error { return errors.New("disk full") }

func TestPersistFailureIsReported(t *testing.T) {
	_, kv := newTestTable(t)
	table := NewTable(failingKV{kv})

	got, err := table.Initialize(context.Background(), repoURL, []model.Issue{openIssue(1)})
	require.ErrorIs(t, err, ErrPersist)
	// The in-memory placement stands.
	assert.Equal(t, got, table.Get(repoURL))
}

func TestRepeatedIssueIDsKeepColumnsContiguous(t *testing.T) {
	table, _ := newTestTable(t)
	ctx := context.Background()
	fetched := []model.Issue{openIssue(1), openIssue(2), openIssue(2), openIssue(3)}

	placed, err := table.Initialize(ctx, repoURL, fetched)
	require.NoError(t, err)
	require.Len(t, placed, 3)
	requireContiguous(t, placed)

	ordered, got, err := table.Move(ctx, repoURL, model.MoveCommand{
		IssueID: 3, FromIndex: 2, ToIndex: 0,
		FromColumn: model.ColumnToDo, ToColumn: model.ColumnToDo,
	}, fetched)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids(ordered))
	assert.Equal(t, model.Positions{
		3: {Column: model.ColumnToDo, Index: 0},
		1: {Column: model.ColumnToDo, Index: 1},
		2: {Column: model.ColumnToDo, Index: 2},
	}, got)
	requireContiguous(t, got)
}

func TestUniqueByIDKeepsFirstOccurrence(t *testing.T) {
	first := openIssue(2)
	first.Title = "first"
	second := closedIssue(2)

	got := UniqueByID([]model.Issue{openIssue(1), first, second, openIssue(3)})
	assert.Equal(t, []int64{1, 2, 3}, ids(got))
	assert.Equal(t, "first", got[1].Title)
	assert.Empty(t, UniqueByID(nil))
}
