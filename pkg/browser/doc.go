// Package browser builds and drives the Playwright-backed browser session the
// worker keeps alive.
//
// # Architecture
//
// The package is built around two concepts:
//
// 1. Launcher: owns the Playwright driver and builds sessions from a
// configuration snapshot
// 2. Session: a persistent Chromium context with the extension loaded, plus the
// page currently in focus
//
// # Session Lifecycle
//
//  1. Build: the packed extension is unpacked into a temporary directory and a
//     persistent context is launched with it loaded
//  2. Use: navigation, local storage, element probing, clicks and window focus
//  3. Close: the context is closed and temporary directories removed
//
// At most one session is expected to be alive at a time; the caller closes
// the previous session before building the next one.
//
// # Example Usage
//
//	launcher := browser.NewLauncher(tuning, logger)
//	defer launcher.Shutdown()
//
//	session, err := launcher.Build(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	err = session.Navigate(ctx, cfg.ExtensionURL)
package browser
