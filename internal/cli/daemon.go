package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jmaddaus/issueboard/internal/config"
	"github.com/jmaddaus/issueboard/internal/daemon"
)

func runDaemon(args []string, gf globalFlags) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: board daemon <start|status>")
	}
	switch args[0] {
	case "start":
		return runDaemonStart(args[1:], gf)
	case "status":
		return runDaemonStatus(gf)
	default:
		return fmt.Errorf("unknown daemon subcommand: %s\nUsage: board daemon <start|status>", args[0])
	}
}

func runDaemonStart(args []string, gf globalFlags) error {
	fs := flag.NewFlagSet("daemon start", flag.ContinueOnError)
	background := fs.Bool("background", false, "Start the daemon detached and log to the data dir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *background {
		return runDaemonBackground(gf)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	return d.Run(context.Background())
}

// runDaemonBackground re-executes this binary as a detached daemon whose
// output goes to the daemon log file, then waits until it answers /health.
func runDaemonBackground(gf globalFlags) error {
	client := newClient(gf)
	if _, err := client.Health(); err == nil {
		return fmt.Errorf("daemon already running at %s", gf.host)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDataDir(cfg); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	logPath := daemon.LogFilePath(cfg)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, "daemon", "start")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	slog.Debug("daemon process started", "pid", cmd.Process.Pid, "log", logPath)
	cmd.Process.Release()

	if err := waitForDaemon(client, 10*time.Second); err != nil {
		if tail, tailErr := readTailLines(logPath, 10); tailErr == nil && tail != "" {
			return fmt.Errorf("%w\nlast log lines:\n%s", err, tail)
		}
		return err
	}
	printMessage(fmt.Sprintf("daemon started at %s (log: %s)", gf.host, logPath), gf.pretty)
	return nil
}

// waitForDaemon polls the health endpoint until it succeeds or timeout elapses.
func waitForDaemon(client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := client.Health(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon did not respond within %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// readTailLines returns the last n lines of the file at path.
func readTailLines(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func runDaemonStatus(gf globalFlags) error {
	client := newClient(gf)
	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("daemon not running at %s; start with: board daemon start", gf.host)
	}

	if !gf.pretty {
		printJSON(health)
		return nil
	}

	status, _ := health["status"].(string)
	fmt.Printf("Daemon status: %s\n", status)

	if uptime, ok := health["uptime"].(string); ok {
		fmt.Printf("Uptime:        %s\n", uptime)
	}

	if boards, ok := health["boards"].([]interface{}); ok {
		fmt.Printf("Boards: %d loaded\n", len(boards))
		for _, b := range boards {
			fmt.Printf("  - %v\n", b)
		}
	}
	if stored, ok := health["stored"].([]interface{}); ok {
		fmt.Printf("Stored positions: %d repositories\n", len(stored))
	}
	return nil
}
