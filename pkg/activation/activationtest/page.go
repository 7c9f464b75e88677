// Package activationtest provides a scriptable in-memory page for testing
// code that drives the extension UI.
package activationtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Page is a fake browser page. Element presence is scripted per locator and
// every mutating call is recorded in Ops.
type Page struct {
	mu sync.Mutex

	present map[string]func(poll int) bool
	polls   map[string]int
	errs    map[string]error

	storage map[string]string
	ops     []string

	handles []string
	active  string

	// OnClick runs after a successful click, e.g. to hide the clicked element.
	OnClick func(p *Page, locator string)
	// ReadBack, if set, replaces what local storage reads return.
	ReadBack func(key, value string) string

	snapshot string
	closed   int
}

// NewPage returns a page with a single window and nothing present.
func NewPage() *Page {
	return &Page{
		present: make(map[string]func(int) bool),
		polls:   make(map[string]int),
		errs:    make(map[string]error),
		storage: make(map[string]string),
		handles: []string{"main"},
		active:  "main",
	}
}

// SetPresent makes locator always present or always absent.
func (p *Page) SetPresent(locator string, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[locator] = func(int) bool { return present }
}

// PresentAfter makes locator absent for the first n polls and present after.
func (p *Page) PresentAfter(locator string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[locator] = func(poll int) bool { return poll > n }
}

// AbsentAfter makes locator present for the first n polls and absent after.
func (p *Page) AbsentAfter(locator string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[locator] = func(poll int) bool { return poll <= n }
}

// Fail makes every call of op return err. Ops are navigate, reload, click,
// storage, present, windows and focus.
func (p *Page) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[op] = err
}

// SetWindows replaces the open window handles; the first one becomes active.
func (p *Page) SetWindows(handles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = append([]string(nil), handles...)
	if len(handles) > 0 {
		p.active = handles[0]
	}
}

func (p *Page) record(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, _, _ := strings.Cut(op, " ")
	if err := p.errs[name]; err != nil {
		return err
	}
	p.ops = append(p.ops, op)
	return nil
}

// Navigate records a navigation.
func (p *Page) Navigate(_ context.Context, url string) error {
	return p.record("navigate " + url)
}

// Reload records a reload.
func (p *Page) Reload(_ context.Context) error {
	return p.record("reload")
}

// Click records a click on locator.
func (p *Page) Click(_ context.Context, locator string) error {
	if err := p.record("click " + locator); err != nil {
		return err
	}
	if p.OnClick != nil {
		p.OnClick(p, locator)
	}
	return nil
}

// SetLocalStorage stores value and returns the read back.
func (p *Page) SetLocalStorage(_ context.Context, key, value string) (string, error) {
	if err := p.record("storage " + key); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage[key] = value
	if p.ReadBack != nil {
		return p.ReadBack(key, value), nil
	}
	return p.storage[key], nil
}

// Present evaluates the scripted presence of locator. Polls are not recorded
// as operations.
func (p *Page) Present(_ context.Context, locator string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs["present"]; err != nil {
		return false, err
	}
	p.polls[locator]++
	fn := p.present[locator]
	if fn == nil {
		return false, nil
	}
	return fn(p.polls[locator]), nil
}

// Windows returns the open handles.
func (p *Page) Windows(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs["windows"]; err != nil {
		return nil, err
	}
	return append([]string(nil), p.handles...), nil
}

// ActiveWindow returns the active handle.
func (p *Page) ActiveWindow() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// FocusWindow records and applies a focus change.
func (p *Page) FocusWindow(_ context.Context, handle string) error {
	if err := p.record("focus " + handle); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if h == handle {
			p.active = handle
			return nil
		}
	}
	return fmt.Errorf("window %q not found", handle)
}

// SetSnapshot sets what Describe returns.
func (p *Page) SetSnapshot(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = s
}

// Describe returns the snapshot set with SetSnapshot.
func (p *Page) Describe(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot == "" {
		return "", fmt.Errorf("no snapshot")
	}
	return p.snapshot, nil
}

// Close counts teardowns.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Closed returns how many times Close was called.
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Polls returns how many times locator was probed.
func (p *Page) Polls(locator string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls[locator]
}

// Ops returns a copy of the recorded operations.
func (p *Page) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

// Count returns how many recorded operations start with prefix.
func (p *Page) Count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, op := range p.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// Storage returns the value stored under key.
func (p *Page) Storage(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.storage[key]
}
