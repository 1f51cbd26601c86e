package cli

import (
	"strings"
	"testing"
)

func TestParseGlobalFlagsHost(t *testing.T) {
	t.Setenv("BOARD_HOST", "")
	gf, remaining := parseGlobalFlags([]string{"--host", "http://x:1234", "show"})
	if gf.host != "http://x:1234" {
		t.Errorf("host: want http://x:1234, got %s", gf.host)
	}
	if len(remaining) != 1 || remaining[0] != "show" {
		t.Errorf("remaining: want [show], got %v", remaining)
	}
}

func TestParseGlobalFlagsHostEquals(t *testing.T) {
	t.Setenv("BOARD_HOST", "")
	gf, _ := parseGlobalFlags([]string{"--host=http://y:1", "show"})
	if gf.host != "http://y:1" {
		t.Errorf("host: want http://y:1, got %s", gf.host)
	}
}

func TestParseGlobalFlagsEnv(t *testing.T) {
	t.Setenv("BOARD_HOST", "http://env:9")
	gf, _ := parseGlobalFlags([]string{"show"})
	if gf.host != "http://env:9" {
		t.Errorf("host: want http://env:9, got %s", gf.host)
	}
}

func TestParseGlobalFlagsPretty(t *testing.T) {
	t.Setenv("BOARD_HOST", "")
	gf, remaining := parseGlobalFlags([]string{"--pretty", "load"})
	if !gf.pretty {
		t.Error("expected pretty=true")
	}
	if len(remaining) != 1 || remaining[0] != "load" {
		t.Errorf("remaining: want [load], got %v", remaining)
	}
}

func TestParseGlobalFlagsCombined(t *testing.T) {
	t.Setenv("BOARD_HOST", "")
	gf, remaining := parseGlobalFlags([]string{"--host", "http://h:1", "--pretty", "move", "--from", "todo"})
	if gf.host != "http://h:1" {
		t.Errorf("host: want http://h:1, got %s", gf.host)
	}
	if !gf.pretty {
		t.Error("expected pretty=true")
	}
	if len(remaining) != 3 || remaining[0] != "move" {
		t.Errorf("remaining: want [move --from todo], got %v", remaining)
	}
}

func TestParseGlobalFlagsNone(t *testing.T) {
	t.Setenv("BOARD_HOST", "")
	gf, remaining := parseGlobalFlags([]string{"show"})
	if gf.host != defaultHost {
		t.Errorf("host: want %s, got %s", defaultHost, gf.host)
	}
	if gf.pretty {
		t.Error("expected pretty=false")
	}
	if len(remaining) != 1 || remaining[0] != "show" {
		t.Errorf("remaining: want [show], got %v", remaining)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run([]string{"bogus"}, "test")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	out := captureStdout(t, func() {
		if err := Run([]string{"version"}, "1.2.3"); err != nil {
			t.Errorf("version: %v", err)
		}
	})
	if !strings.Contains(out, "board version 1.2.3") {
		t.Errorf("unexpected version output: %q", out)
	}

	out = captureStdout(t, func() {
		if err := Run(nil, "1.2.3"); err != nil {
			t.Errorf("no args: %v", err)
		}
	})
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage, got %q", out)
	}
}
