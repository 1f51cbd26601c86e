package cli

import (
	"fmt"
	"os"
	"strings"
)

const defaultHost = "http://127.0.0.1:8047"

const usage = `board - GitHub issue board

Usage:
  board [global flags] <command> [flags]

Commands:
  daemon     Manage the daemon (start, status)
  load       Fetch a repository's issues and build its board
  show       Show a loaded board
  move       Move an issue within or between columns
  positions  Show the persisted issue positions of a repository
  login      Save a GitHub token (--status to inspect)
  logout     Remove the saved GitHub token
  db         Database tools (version, check, repos, downgrade)
  help       Show this help
  version    Show version

Global Flags:
  --host URL     Daemon URL (default: $BOARD_HOST or http://127.0.0.1:8047)
  --pretty       Use pretty-printed output instead of JSON

Run 'board <command> --help' for more information on a command.`

// globalFlags holds flags that are available to all subcommands.
type globalFlags struct {
	host   string
	pretty bool
}

// parseGlobalFlags extracts global flags from the front of the argument list
// and returns the remaining args. Global flags must come before the subcommand.
func parseGlobalFlags(args []string) (globalFlags, []string) {
	gf := globalFlags{
		host: os.Getenv("BOARD_HOST"),
	}
	if gf.host == "" {
		gf.host = defaultHost
	}

	remaining := args
	for len(remaining) > 0 {
		switch {
		case remaining[0] == "--pretty":
			gf.pretty = true
			remaining = remaining[1:]
		case remaining[0] == "--host" && len(remaining) > 1:
			gf.host = remaining[1]
			remaining = remaining[2:]
		case strings.HasPrefix(remaining[0], "--host="):
			gf.host = strings.TrimPrefix(remaining[0], "--host=")
			remaining = remaining[1:]
		default:
			return gf, remaining
		}
	}

	return gf, remaining
}

// newClient creates a daemon HTTP client from the global flags.
func newClient(gf globalFlags) *Client {
	return NewClient(gf.host)
}

// Run dispatches the CLI based on the provided arguments.
func Run(args []string, version string) error {
	gf, remaining := parseGlobalFlags(args)

	if len(remaining) == 0 {
		fmt.Println(usage)
		return nil
	}

	cmd := remaining[0]
	subArgs := remaining[1:]

	switch cmd {
	case "help", "--help", "-h":
		fmt.Println(usage)
		return nil
	case "version", "--version", "-v":
		fmt.Printf("board version %s\n", version)
		return nil
	case "daemon":
		return runDaemon(subArgs, gf)
	case "load":
		return runLoad(subArgs, gf)
	case "show":
		return runShow(subArgs, gf)
	case "move":
		return runMove(subArgs, gf)
	case "positions":
		return runPositions(subArgs, gf)
	case "login":
		return runLogin(subArgs, gf)
	case "logout":
		return runLogout(subArgs, gf)
	case "db":
		return runDB(subArgs, gf)
	default:
		return fmt.Errorf("unknown command: %s\nRun 'board help' for usage", strings.TrimSpace(cmd))
	}
}
