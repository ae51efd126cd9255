package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// xvfbReady bounds the wait for the X socket of a fresh display.
const xvfbReady = 3 * time.Second

// startXvfb runs a virtual display for headful tabs and waits until its
// socket exists, so Chrome does not race the X server.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1366x900x24", "-nolisten", "tcp", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start Xvfb %s: %w", display, err)
	}
	m.xvfb = cmd

	sock := xSocket(display)
	deadline := time.Now().Add(xvfbReady)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			m.cfg.Logger.Warn("browser: xvfb socket not seen, continuing", "socket", sock)
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	m.cfg.Logger.Info("browser: xvfb up", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	cmd := m.xvfb
	if cmd == nil {
		return
	}
	m.xvfb = nil
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb down", "display", m.cfg.XvfbDisplay)
}

// xSocket maps ":99" or ":99.0" to /tmp/.X11-unix/X99.
func xSocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}
