package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/credential"
	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/waiter"
)

// Flow logs the extension in and activates it. Nothing is retried on error:
// failures are returned so the caller can restart the whole session.
type Flow struct {
	waiter   *waiter.Waiter
	injector *credential.Injector
	monitor  *Monitor
	tuning   *config.Tuning
	jitter   Jitter
	logger   *logging.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithJitter replaces the random pause picker.
func WithJitter(j Jitter) FlowOption {
	return func(f *Flow) {
		f.jitter = j
	}
}

// NewFlow creates a flow.
func NewFlow(w *waiter.Waiter, injector *credential.Injector, monitor *Monitor, tuning *config.Tuning, logger *logging.Logger, opts ...FlowOption) *Flow {
	f := &Flow{
		waiter:   w,
		injector: injector,
		monitor:  monitor,
		tuning:   tuning,
		jitter:   RandomJitter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Monitor returns the connection monitor the flow reports through.
func (f *Flow) Monitor() *Monitor {
	return f.monitor
}

// Run performs the login and activation sequence on page and reports the
// resulting connection state.
func (f *Flow) Run(ctx context.Context, page Page, cfg *config.Config) (State, error) {
	f.logger.Infof("Navigating to %s website...", cfg.ExtensionURL)
	if err := page.Navigate(ctx, cfg.ExtensionURL); err != nil {
		return Unknown, err
	}
	if err := f.pause(ctx, f.tuning.SettleJitter); err != nil {
		return Unknown, err
	}

	if err := f.injector.Inject(ctx, page, cfg.Token); err != nil {
		return Unknown, err
	}

	if err := f.awaitDashboard(ctx, page, cfg); err != nil {
		return Unknown, err
	}
	f.logger.Infof("Logged in successfully!")

	if err := f.pause(ctx, f.tuning.DashboardJitter); err != nil {
		return Unknown, err
	}
	f.logger.Infof("Accessing extension settings page...")
	if err := page.Navigate(ctx, cfg.ExtensionPage()); err != nil {
		return Unknown, err
	}
	if err := f.pause(ctx, f.tuning.SettleJitter); err != nil {
		return Unknown, err
	}

	if err := f.clickLogin(ctx, page); err != nil {
		return Unknown, err
	}

	if err := f.normalizeFocus(ctx, page); err != nil {
		return Unknown, err
	}

	return f.monitor.Check(ctx, page)
}

// awaitDashboard re-navigates until the dashboard marker shows. There is no
// attempt cap: the UI may take arbitrarily long.
func (f *Flow) awaitDashboard(ctx context.Context, page Page, cfg *config.Config) error {
	for {
		found, err := f.waiter.Exists(ctx, page, DashboardLocator, f.tuning.PollTimeout)
		if err != nil {
			return err
		}
		if found {
			return nil
		}

		f.logger.Infof("Dashboard not shown yet, reloading %s to check login (If stuck, verify your token)...", cfg.ExtensionURL)
		if err := page.Navigate(ctx, cfg.ExtensionURL); err != nil {
			return err
		}
	}
}

// clickLogin keeps clicking the extension's login button until it goes away.
func (f *Flow) clickLogin(ctx context.Context, page Page) error {
	for {
		shown, err := f.waiter.Exists(ctx, page, LoginLocator, f.tuning.PollTimeout)
		if err != nil {
			return err
		}
		if !shown {
			return nil
		}

		if err := f.waiter.Require(ctx, page, LoginLocator, f.tuning.PollTimeout); err != nil {
			return err
		}
		f.logger.Infof("Clicking extension login button...")
		if err := page.Click(ctx, LoginLocator); err != nil {
			return err
		}
		if err := f.waiter.Clock().Sleep(ctx, f.tuning.LoginPause); err != nil {
			return err
		}
		if err := page.Reload(ctx); err != nil {
			return err
		}
	}
}

// normalizeFocus visits every auxiliary window the extension may have opened
// and returns focus to the original one.
func (f *Flow) normalizeFocus(ctx context.Context, page Page) error {
	handles, err := page.Windows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}
	active := page.ActiveWindow()

	for _, handle := range handles {
		if handle == active {
			continue
		}
		if err := page.FocusWindow(ctx, handle); err != nil {
			return err
		}
	}
	return page.FocusWindow(ctx, active)
}

func (f *Flow) pause(ctx context.Context, r config.Range) error {
	d := f.jitter(r)
	if d <= 0 {
		return ctx.Err()
	}
	f.logger.Debugf("Pausing for %s", d.Round(time.Millisecond))
	return f.waiter.Clock().Sleep(ctx, d)
}
