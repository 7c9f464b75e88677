package activation

import (
	"context"

	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/metrics"
	"github.com/entrhq/extkeeper/pkg/waiter"
)

// State is the extension's connection state as shown in its UI.
type State int

const (
	Unknown State = iota
	Connected
	Disconnected
)

// String returns the metric label for the state.
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Monitor classifies the connection state. It only reads the page.
type Monitor struct {
	waiter *waiter.Waiter
	logger *logging.Logger
}

// NewMonitor creates a monitor.
func NewMonitor(w *waiter.Waiter, logger *logging.Logger) *Monitor {
	return &Monitor{waiter: w, logger: logger}
}

// Check polls for the Connected marker, then the Disconnected marker, and
// falls back to Unknown when neither shows up in time.
func (m *Monitor) Check(ctx context.Context, page waiter.Prober) (State, error) {
	state, err := m.classify(ctx, page)
	if err != nil {
		return Unknown, err
	}

	switch state {
	case Connected:
		m.logger.Infof("Status: Connected!")
	case Disconnected:
		m.logger.Warnf("Status: Disconnected!")
	default:
		m.logger.Warnf("Status: Unknown!")
	}
	metrics.RecordConnectionState(state.String())
	return state, nil
}

func (m *Monitor) classify(ctx context.Context, page waiter.Prober) (State, error) {
	connected, err := m.waiter.Exists(ctx, page, ConnectedLocator, 0)
	if err != nil {
		return Unknown, err
	}
	if connected {
		return Connected, nil
	}

	disconnected, err := m.waiter.Exists(ctx, page, DisconnectedLocator, 0)
	if err != nil {
		return Unknown, err
	}
	if disconnected {
		return Disconnected, nil
	}
	return Unknown, nil
}
