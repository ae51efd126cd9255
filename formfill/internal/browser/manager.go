// Package browser manages the Chrome instance used for live fill passes:
// launch or connect, periodic recycling, stealth tabs, and a rod-backed
// implementation of the filler's Document.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// StealthLevel controls how tabs are created.
type StealthLevel int

const (
	LevelPlain    StealthLevel = 0 // no stealth script
	LevelHeadless StealthLevel = 1 // headless + stealth
	LevelHeadful  StealthLevel = 2 // headful under Xvfb + stealth
)

// ParseStealth maps a config string to a level. Unknown values mean headless.
func ParseStealth(s string) StealthLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "none", "0":
		return LevelPlain
	case "headful", "2":
		return LevelHeadful
	}
	return LevelHeadless
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	// MemoryLimit in bytes of JS heap before Chrome is recycled. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Stealth StealthLevel

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// NavTimeout bounds navigation and load. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process shared by every live fill pass. Chrome
// is started on the first lease and replaced when it grows too old or too
// large, but never while a tab is leased: a due recycle waits for the last
// tab to close.
type Manager struct {
	cfg Config

	mu        sync.Mutex
	browser   *rod.Browser
	lnch      *launcher.Launcher
	xvfb      *exec.Cmd
	born      time.Time
	leased    int
	due       bool // recycle requested while tabs were leased
	closed    bool
	stopWatch context.CancelFunc
}

func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

var errClosed = errors.New("browser: manager is closed")

// Start makes sure Chrome is running and returns it.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

func (m *Manager) ensureLocked(ctx context.Context) (*rod.Browser, error) {
	if m.closed {
		return nil, errClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser, m.born = b, time.Now()
	if m.stopWatch == nil {
		wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.stopWatch = cancel
		go m.watch(wctx)
	}
	return b, nil
}

// lease returns the running browser and a release func the tab calls on
// close. A deferred recycle runs on the last release.
func (m *Manager) lease(ctx context.Context) (*rod.Browser, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.ensureLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	m.leased++
	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.leased--
			if m.leased == 0 && m.due && !m.closed {
				m.recycleLocked("deferred")
			}
		})
	}
	return b, release, nil
}

// Browser returns the current browser handle, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Recycle replaces Chrome now if no tab is leased, otherwise after the last
// one closes.
func (m *Manager) Recycle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	m.requestLocked("manual")
	return nil
}

func (m *Manager) requestLocked(reason string) {
	if m.leased > 0 {
		if !m.due {
			m.cfg.Logger.Info("browser: recycle deferred", "reason", reason, "tabs", m.leased)
		}
		m.due = true
		return
	}
	m.recycleLocked(reason)
}

// recycleLocked tears Chrome down. The next lease starts a new one.
func (m *Manager) recycleLocked(reason string) {
	m.cfg.Logger.Info("browser: recycling", "reason", reason, "uptime", time.Since(m.born).Round(time.Second))
	m.teardown()
	m.due = false
}

// Close shuts Chrome and Xvfb down. Leased tabs become unusable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.stopWatch != nil {
		m.stopWatch()
	}
	m.teardown()
	return nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	if m.cfg.Stealth == LevelHeadful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	control := m.cfg.RemoteURL
	if control == "" {
		l := launcher.New().
			Headless(m.cfg.Stealth != LevelHeadful).
			Set("disable-blink-features", "AutomationControlled")
		if m.cfg.Stealth == LevelHeadful {
			l = l.Env("DISPLAY", m.cfg.XvfbDisplay)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		control, m.lnch = u, l
	}

	b := rod.New().ControlURL(control)
	if err := b.Connect(); err != nil {
		m.teardown()
		return nil, fmt.Errorf("browser: connect %s: %w", control, err)
	}
	m.cfg.Logger.Info("browser: ready", "remote", m.cfg.RemoteURL != "", "stealth", m.cfg.Stealth)
	return b, nil
}

func (m *Manager) teardown() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Debug("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
}

// watch checks age and heap size every 30s and requests a recycle when
// either limit is passed.
func (m *Manager) watch(ctx context.Context) {
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		m.mu.Lock()
		b, age := m.browser, time.Since(m.born)
		if b != nil && age > m.cfg.RecycleInterval {
			m.requestLocked("age")
			b = nil
		}
		m.mu.Unlock()
		if b == nil {
			continue
		}

		used, err := heapUsed(b)
		if err != nil {
			continue
		}
		if used > m.cfg.MemoryLimit {
			m.mu.Lock()
			if m.browser == b {
				m.requestLocked("memory")
			}
			m.mu.Unlock()
		}
	}
}

// heapUsed reads performance.memory from the first open page.
func heapUsed(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, errors.New("browser: no page to sample")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
