//go:build windows

package cli

import "os/exec"

// setSysProcAttr is a no-op on Windows; the background daemon keeps the
// parent's console session.
func setSysProcAttr(cmd *exec.Cmd) {}
