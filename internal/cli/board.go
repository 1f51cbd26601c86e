package cli

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmaddaus/issueboard/internal/model"
)

func runLoad(args []string, gf globalFlags) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: board load <https://github.com/owner/repo>")
	}

	b, err := newClient(gf).LoadBoard(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	printBoard(b, gf.pretty)
	return nil
}

func runShow(args []string, gf globalFlags) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: board show <https://github.com/owner/repo>")
	}

	b, err := newClient(gf).GetBoard(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("show board: %w", err)
	}
	printBoard(b, gf.pretty)
	return nil
}

func runPositions(args []string, gf globalFlags) error {
	fs := flag.NewFlagSet("positions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: board positions <https://github.com/owner/repo>")
	}

	p, err := newClient(gf).Positions(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	printPositions(p, gf.pretty)
	return nil
}

// parseMoveArgs builds a move request from
// <repo-url> <issue-id> --from COL [--from-index N] --to COL [--to-index N].
// Columns accept short forms such as todo, progress and done.
func parseMoveArgs(args []string) (MoveRequest, error) {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	from := fs.String("from", "", "Column the issue is in")
	fromIndex := fs.Int("from-index", -1, "Index of the issue in its column (located by ID when omitted)")
	to := fs.String("to", "", "Destination column")
	toIndex := fs.Int("to-index", 0, "Destination index (clamped to the column)")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return MoveRequest{}, err
	}
	if fs.NArg() != 2 || *from == "" || *to == "" {
		return MoveRequest{}, fmt.Errorf("usage: board move <repo-url> <issue-id> --from COL [--from-index N] --to COL [--to-index N]")
	}

	id, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		return MoveRequest{}, fmt.Errorf("invalid issue id: %s", fs.Arg(1))
	}
	fromCol, err := model.ParseColumn(*from)
	if err != nil {
		return MoveRequest{}, err
	}
	toCol, err := model.ParseColumn(*to)
	if err != nil {
		return MoveRequest{}, err
	}

	return MoveRequest{
		RepoURL: fs.Arg(0),
		MoveCommand: model.MoveCommand{
			IssueID:    id,
			FromIndex:  *fromIndex,
			ToIndex:    *toIndex,
			FromColumn: fromCol,
			ToColumn:   toCol,
		},
	}, nil
}

func runMove(args []string, gf globalFlags) error {
	req, err := parseMoveArgs(args)
	if err != nil {
		return err
	}

	b, err := newClient(gf).Move(req)
	if err != nil {
		return fmt.Errorf("move issue: %w", err)
	}
	printBoard(b, gf.pretty)
	return nil
}

// reorderArgs moves flag arguments before positional arguments so that
// Go's flag package (which stops at the first non-flag) parses them all.
// Every flag of the move command takes a value, so a flag without "="
// consumes the next argument.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case !strings.HasPrefix(arg, "-"):
			positional = append(positional, arg)
		case strings.Contains(arg, "="), i+1 == len(args):
			// -flag=value, or a trailing flag that flag.Parse will reject
			flags = append(flags, arg)
		default:
			flags = append(flags, arg, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}
