package positions

import "github.com/jmaddaus/issueboard/internal/model"

// DefaultColumn is the column an issue lands in the first time it is seen:
// closed issues are done, assigned open issues are in progress, and
// everything else is still to do.
func DefaultColumn(issue *model.Issue) model.Column {
	switch {
	case issue.State == model.StateClosed:
		return model.ColumnDone
	case issue.IsAssigned():
		return model.ColumnInProgress
	default:
		return model.ColumnToDo
	}
}
