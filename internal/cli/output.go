package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jmaddaus/issueboard/internal/board"
	"github.com/jmaddaus/issueboard/internal/model"
)

// printBoard prints a board either as JSON or as one table per column.
func printBoard(b *board.Board, pretty bool) {
	if pretty {
		printPrettyBoard(b)
		return
	}
	printJSON(b)
}

// printJSON outputs v as indented JSON to stdout.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printPrettyBoard outputs the repository header and each column as a
// tabwriter-formatted table.
func printPrettyBoard(b *board.Board) {
	fmt.Printf("%s  ★ %s (%s stars)\n", b.Repo.FullName(), b.StarsLabel, humanize.Comma(int64(b.Stars)))
	for _, col := range b.Columns {
		fmt.Printf("\n%s (%d)\n", col.Name, len(col.Cards))
		if len(col.Cards) == 0 {
			fmt.Println("  No issues.")
			continue
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for i, card := range col.Cards {
			assignee := "-"
			if card.IsAssigned() {
				assignee = "@" + card.Assignee.Login
			}
			fmt.Fprintf(w, "  %d\t#%d\t%s\t%s\t%s\t%s\n",
				i,
				card.Number,
				card.Title,
				assignee,
				plural(card.Comments, "comment"),
				daysAgoLabel(card.DaysAgo),
			)
		}
		w.Flush()
	}
}

// printPositions prints a repository's persisted positions.
func printPositions(p *PositionsResponse, pretty bool) {
	if !pretty {
		printJSON(p)
		return
	}
	if len(p.Positions) == 0 {
		fmt.Printf("No positions stored for %s.\n", p.RepoURL)
		return
	}

	type row struct {
		id  int64
		pos model.Position
	}
	rows := make([]row, 0, len(p.Positions))
	for id, pos := range p.Positions {
		rows = append(rows, row{id, pos})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := cmp.Compare(slices.Index(model.Columns, a.pos.Column), slices.Index(model.Columns, b.pos.Column)); c != 0 {
			return c
		}
		return cmp.Compare(a.pos.Index, b.pos.Index)
	})

	if p.UpdatedAt != nil {
		fmt.Printf("%s (saved %s)\n", p.RepoURL, humanize.Time(*p.UpdatedAt))
	} else {
		fmt.Println(p.RepoURL)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ISSUE\tCOLUMN\tINDEX")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%d\n", r.id, r.pos.Column, r.pos.Index)
	}
	w.Flush()
}

// printMessage prints a simple message (used for non-board results).
func printMessage(msg string, pretty bool) {
	if pretty {
		fmt.Println(msg)
		return
	}
	printJSON(map[string]string{"message": msg})
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func daysAgoLabel(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
