package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/sysinfo"
)

// UnknownVersion is logged when the driver version cannot be determined.
const UnknownVersion = "Unknown version"

// Launcher owns the Playwright driver and builds sessions.
type Launcher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	runOptions  *playwright.RunOptions
	tuning      *config.Tuning
	logger      *logging.Logger
	install     bool
	initialized bool
	osInfo      func() sysinfo.OS

	// driver lifecycle, replaceable in tests
	run  func(*playwright.RunOptions) (*playwright.Playwright, error)
	stop func(*playwright.Playwright) error
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithInstall makes Initialize download the driver and Chromium first.
func WithInstall(install bool) LauncherOption {
	return func(l *Launcher) {
		l.install = install
	}
}

// NewLauncher creates a launcher. The driver is started lazily by the first Build.
func NewLauncher(tuning *config.Tuning, logger *logging.Logger, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		tuning: tuning,
		logger: logger,
		// Discard driver output so it does not interleave with structured logs
		runOptions: &playwright.RunOptions{
			Browsers: []string{"chromium"},
			Verbose:  false,
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		},
		osInfo: sysinfo.OSInfo,
		run: func(opts *playwright.RunOptions) (*playwright.Playwright, error) {
			return playwright.Run(opts)
		},
		stop: func(pw *playwright.Playwright) error {
			return pw.Stop()
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize starts the Playwright driver. Safe to call more than once.
func (l *Launcher) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	if l.install {
		if err := playwright.Install(l.runOptions); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := l.run(l.runOptions)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return nil
}

// DriverVersion reports the Playwright driver version.
func (l *Launcher) DriverVersion() string {
	driver, err := playwright.NewDriver(l.runOptions)
	if err != nil {
		l.logger.Errorf("Could not get driver version: %v", err)
		return UnknownVersion
	}
	return "Playwright driver " + driver.Version
}

// LaunchOptions returns the capability set for a session: extension loaded,
// sandbox disabled, headless, fixed user agent and optional proxy.
func LaunchOptions(cfg *config.Config, tuning *config.Tuning, extensionDir string) playwright.BrowserTypeLaunchPersistentContextOptions {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-extensions-except=" + extensionDir,
		"--load-extension=" + extensionDir,
	}
	if proxy := cfg.ProxyArgument(); proxy != "" {
		args = append(args, "--proxy-server="+proxy)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Args:              args,
		Headless:          playwright.Bool(tuning.Headless),
		ChromiumSandbox:   playwright.Bool(false),
		UserAgent:         playwright.String(tuning.UserAgent),
		IgnoreDefaultArgs: []string{"--disable-extensions"},
	}
	if tuning.Channel != "" {
		opts.Channel = playwright.String(tuning.Channel)
	}
	return opts
}

// Build launches a new session for cfg. Every failure wraps
// ErrSessionConstruction; anything created before the failure is released.
func (l *Launcher) Build(ctx context.Context, cfg *config.Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.logger.Infof("OS Info: %s", l.osInfo())

	extensionDir, err := os.MkdirTemp("", "extkeeper-extension-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionConstruction, err)
	}
	cleanup := []string{extensionDir}
	release := func() {
		for _, dir := range cleanup {
			_ = os.RemoveAll(dir)
		}
	}

	packagePath := filepath.Join(l.tuning.ExtensionDir, cfg.ExtensionPackage())
	if err := UnpackCRX(packagePath, extensionDir); err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrSessionConstruction, err)
	}

	if err := l.Initialize(); err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrSessionConstruction, err)
	}
	l.logger.Infof("Using %s", l.DriverVersion())

	userDataDir, err := os.MkdirTemp("", "extkeeper-profile-*")
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrSessionConstruction, err)
	}
	cleanup = append(cleanup, userDataDir)

	l.mu.Lock()
	pw := l.playwright
	l.mu.Unlock()

	bctx, err := pw.Chromium.LaunchPersistentContext(userDataDir, LaunchOptions(cfg, l.tuning, extensionDir))
	if err != nil {
		release()
		l.reset()
		return nil, fmt.Errorf("%w: failed to launch browser: %w", ErrSessionConstruction, err)
	}

	page, err := firstPage(bctx)
	if err != nil {
		_ = bctx.Close()
		release()
		l.reset()
		return nil, fmt.Errorf("%w: %w", ErrSessionConstruction, err)
	}

	page.SetDefaultTimeout(float64(l.tuning.NavigationTimeout.Milliseconds()))

	// Fix the width, keep the height of the default window
	height := DefaultViewportHeight
	if size := page.ViewportSize(); size != nil && size.Height > 0 {
		height = size.Height
	}
	if err := page.SetViewportSize(l.tuning.ViewportWidth, height); err != nil {
		_ = bctx.Close()
		release()
		return nil, fmt.Errorf("%w: failed to set viewport: %w", ErrSessionConstruction, err)
	}

	if b := bctx.Browser(); b != nil {
		l.logger.Infof("Browser version %s", b.Version())
	}

	return newSession(bctx, page, cleanup), nil
}

func firstPage(bctx playwright.BrowserContext) (playwright.Page, error) {
	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// reset drops the driver after a failed launch so the next Build starts a
// fresh one. A dead driver cannot launch browsers again.
func (l *Launcher) reset() {
	if err := l.Shutdown(); err != nil {
		l.logger.Warnf("Discarding playwright driver: %v", err)
	}
}

// Shutdown stops the Playwright driver. The launcher can be initialized again
// afterwards.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.playwright == nil {
		return nil
	}
	pw := l.playwright
	l.playwright = nil
	l.initialized = false
	if err := l.stop(pw); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
