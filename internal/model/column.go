package model

import "fmt"

type Column string

const (
	ColumnToDo       Column = "ToDo"
	ColumnInProgress Column = "In Progress"
	ColumnDone       Column = "Done"
)

// Columns lists the board columns in display order.
var Columns = []Column{ColumnToDo, ColumnInProgress, ColumnDone}

// Valid reports whether c is one of the three board columns.
func (c Column) Valid() bool {
	switch c {
	case ColumnToDo, ColumnInProgress, ColumnDone:
		return true
	}
	return false
}

// ParseColumn accepts the canonical column names plus the short forms
// used on the command line ("todo", "progress", "in_progress", "done").
func ParseColumn(s string) (Column, error) {
	switch s {
	case string(ColumnToDo), "todo", "to-do":
		return ColumnToDo, nil
	case string(ColumnInProgress), "in_progress", "in-progress", "progress", "inprogress":
		return ColumnInProgress, nil
	case string(ColumnDone), "done":
		return ColumnDone, nil
	}
	return "", fmt.Errorf("unknown column %q (use todo, in_progress or done)", s)
}

// Position is the placement of one issue on a board.
type Position struct {
	Column Column `json:"column"`
	Index  int    `json:"index"`
}

// Positions maps issue IDs to their placement within one repository.
type Positions map[int64]Position

// Clone returns a shallow copy of p. A nil map clones to an empty one.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for id, pos := range p {
		out[id] = pos
	}
	return out
}

// MoveCommand describes one drag-and-drop gesture: the issue leaves
// FromColumn at FromIndex and lands in ToColumn at ToIndex.
type MoveCommand struct {
	IssueID    int64  `json:"issue_id"`
	FromIndex  int    `json:"from_index"`
	ToIndex    int    `json:"to_index"`
	FromColumn Column `json:"from_column"`
	ToColumn   Column `json:"to_column"`
}
