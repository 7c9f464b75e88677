package browser

import (
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrSessionConstruction wraps every failure to bring up a session.
var ErrSessionConstruction = errors.New("failed to construct browser session")

// Session represents a live browser with the extension loaded.
type Session struct {
	// ID is the unique identifier for this session
	ID string

	// Context is the persistent browser context
	Context playwright.BrowserContext

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	mu         sync.Mutex
	page       playwright.Page
	lastUsedAt time.Time
	currentURL string

	// window handles are assigned lazily as pages are discovered
	handles map[playwright.Page]string
	pages   map[string]playwright.Page

	// temporary directories removed on Close
	cleanup   []string
	closeOnce sync.Once
	closeErr  error
}

// DefaultViewportHeight is used when the page reports no viewport.
const DefaultViewportHeight = 720

// DefaultNavigationWait is the load state navigations wait for.
var DefaultNavigationWait = playwright.WaitUntilStateLoad
