package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// setItemScript writes a local storage entry and returns what reading it back yields.
const setItemScript = `([key, value]) => {
	window.localStorage.setItem(key, value);
	return window.localStorage.getItem(key);
}`

func newSession(bctx playwright.BrowserContext, page playwright.Page, cleanup []string) *Session {
	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Context:    bctx,
		CreatedAt:  now,
		page:       page,
		lastUsedAt: now,
		currentURL: "about:blank",
		handles:    make(map[playwright.Page]string),
		pages:      make(map[string]playwright.Page),
		cleanup:    cleanup,
	}
	s.handleFor(page)
	return s
}

// touch updates the last-used timestamp and returns the active page.
func (s *Session) touch(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsedAt = time.Now()
	return s.page, nil
}

func (s *Session) recordURL(page playwright.Page) {
	s.mu.Lock()
	s.currentURL = page.URL()
	s.mu.Unlock()
}

// LastUsedAt returns the time of the last operation on this session.
func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// CurrentURL returns the URL of the active page after the last navigation.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// Navigate navigates the active page to url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.touch(ctx)
	if err != nil {
		return err
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{WaitUntil: DefaultNavigationWait}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	s.recordURL(page)
	return nil
}

// Reload reloads the active page.
func (s *Session) Reload(ctx context.Context) error {
	page, err := s.touch(ctx)
	if err != nil {
		return err
	}

	if _, err := page.Reload(playwright.PageReloadOptions{WaitUntil: DefaultNavigationWait}); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}

	s.recordURL(page)
	return nil
}

// SetLocalStorage writes key=value into the active page's local storage and
// returns the value read back.
func (s *Session) SetLocalStorage(ctx context.Context, key, value string) (string, error) {
	page, err := s.touch(ctx)
	if err != nil {
		return "", err
	}

	result, err := page.Evaluate(setItemScript, []string{key, value})
	if err != nil {
		return "", fmt.Errorf("local storage write failed: %w", err)
	}

	// getItem yields null for a missing key
	stored, _ := result.(string)
	return stored, nil
}

// Present reports whether locator currently matches at least one element.
func (s *Session) Present(ctx context.Context, locator string) (bool, error) {
	page, err := s.touch(ctx)
	if err != nil {
		return false, err
	}

	count, err := page.Locator(locator).Count()
	if err != nil {
		return false, fmt.Errorf("selector query failed: %w", err)
	}
	return count > 0, nil
}

// Click clicks the first element matching locator.
func (s *Session) Click(ctx context.Context, locator string) error {
	page, err := s.touch(ctx)
	if err != nil {
		return err
	}

	if err := page.Locator(locator).First().Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}

	s.recordURL(page)
	return nil
}

// handleFor returns the stable handle of page, assigning one if needed.
// Callers must not hold s.mu.
func (s *Session) handleFor(page playwright.Page) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.handles[page]; ok {
		return handle
	}
	handle := uuid.New().String()
	s.handles[page] = handle
	s.pages[handle] = page
	return handle
}

// Windows returns a handle for every open page in the context.
func (s *Session) Windows(ctx context.Context) ([]string, error) {
	if _, err := s.touch(ctx); err != nil {
		return nil, err
	}

	pages := s.Context.Pages()
	handles := make([]string, 0, len(pages))
	for _, page := range pages {
		handles = append(handles, s.handleFor(page))
	}
	return handles, nil
}

// ActiveWindow returns the handle of the page in focus.
func (s *Session) ActiveWindow() string {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	return s.handleFor(page)
}

// FocusWindow brings the page behind handle to the front and makes it active.
func (s *Session) FocusWindow(ctx context.Context, handle string) error {
	if _, err := s.touch(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	page, ok := s.pages[handle]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("window %q not found", handle)
	}

	if err := page.BringToFront(); err != nil {
		return fmt.Errorf("failed to focus window %q: %w", handle, err)
	}

	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return nil
}

// Close closes the browser context and removes temporary directories. Safe to
// call multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser context: %w", err))
		}
		for _, dir := range s.cleanup {
			if err := os.RemoveAll(dir); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
