// Package activation drives the extension through login and observes the
// resulting connection state.
package activation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/credential"
	"github.com/entrhq/extkeeper/pkg/waiter"
)

// Page is the part of a browser session the flow needs.
type Page interface {
	credential.Store
	waiter.Prober

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Click(ctx context.Context, locator string) error

	// Windows lists every open window handle.
	Windows(ctx context.Context) ([]string, error)
	// ActiveWindow returns the handle currently in focus.
	ActiveWindow() string
	FocusWindow(ctx context.Context, handle string) error
}

// TextLocator matches any element whose own text is exactly text.
func TextLocator(text string) string {
	return fmt.Sprintf("xpath=//*[text()='%s']", text)
}

// UI markers the flow waits on.
var (
	DashboardLocator    = TextLocator("Dashboard")
	LoginLocator        = TextLocator("Login")
	ConnectedLocator    = TextLocator("Connected")
	DisconnectedLocator = TextLocator("Disconnected")
)

// Jitter picks a pause from a range.
type Jitter func(r config.Range) time.Duration

// RandomJitter picks uniformly from [Min, Max].
func RandomJitter(r config.Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.N(r.Max-r.Min+1)
}

// MinJitter always picks the lower bound.
func MinJitter(r config.Range) time.Duration {
	return r.Min
}
