// Package supervisor keeps the extension session alive. It builds a session,
// runs the activation flow on it and then checks the connection on a fixed
// interval. Failures before the steady state tear the session down and start
// over after a backoff; the loop is explicit, so restarts never grow the
// stack.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/extkeeper/pkg/activation"
	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/logging"
	"github.com/entrhq/extkeeper/pkg/metrics"
	"github.com/entrhq/extkeeper/pkg/waiter"
)

// ErrInterrupted marks a steady state that ended because the process was asked to stop.
var ErrInterrupted = errors.New("interrupted")

// State is a phase of the resilience loop.
type State int

const (
	Starting State = iota
	Building
	Authenticating
	SteadyState
	Failed
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Building:
		return "building"
	case Authenticating:
		return "authenticating"
	case SteadyState:
		return "steady"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a live browser session owned by the supervisor.
type Session interface {
	activation.Page
	Close() error
}

// Describer is implemented by sessions that can summarise the page they show.
type Describer interface {
	Describe(ctx context.Context) (string, error)
}

// SessionFactory builds sessions.
type SessionFactory interface {
	Build(ctx context.Context, cfg *config.Config) (Session, error)
}

// FactoryFunc adapts a function to SessionFactory.
type FactoryFunc func(ctx context.Context, cfg *config.Config) (Session, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, cfg *config.Config) (Session, error) {
	return f(ctx, cfg)
}

// EnvReader returns the configuration for one attempt.
type EnvReader func() (*config.Config, error)

// Supervisor runs the resilience loop. At most one session exists at a time.
type Supervisor struct {
	factory SessionFactory
	flow    *activation.Flow
	tuning  *config.Tuning
	logger  *logging.Logger
	readEnv EnvReader
	clock   waiter.Clock
	version string

	mu    sync.Mutex
	state State

	session Session
	cfg     *config.Config
	lastErr error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithEnvReader replaces config.FromEnv.
func WithEnvReader(r EnvReader) Option {
	return func(s *Supervisor) {
		s.readEnv = r
	}
}

// WithClock sets the clock used for backoff and steady-state sleeps.
func WithClock(c waiter.Clock) Option {
	return func(s *Supervisor) {
		s.clock = c
	}
}

// WithVersion sets the version logged at the start of each attempt.
func WithVersion(v string) Option {
	return func(s *Supervisor) {
		s.version = v
	}
}

// New creates a supervisor.
func New(factory SessionFactory, flow *activation.Flow, tuning *config.Tuning, logger *logging.Logger, opts ...Option) (*Supervisor, error) {
	if factory == nil {
		return nil, errors.New("session factory is required")
	}
	if flow == nil {
		return nil, errors.New("activation flow is required")
	}
	if tuning == nil {
		tuning = config.DefaultTuning()
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}

	s := &Supervisor{
		factory: factory,
		flow:    flow,
		tuning:  tuning,
		logger:  logger,
		readEnv: config.FromEnv,
		clock:   waiter.RealClock(),
		version: "dev",
		state:   Starting,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) transition(next State) {
	s.mu.Lock()
	previous := s.state
	s.state = next
	s.mu.Unlock()

	s.logger.Debugf("State %s -> %s", previous, next)
	metrics.RecordSupervisorState(previous.String(), next.String())
}

// Run drives the loop until the context is cancelled, the configuration is
// missing, or the steady state fails. Cancellation and missing configuration
// return nil; a steady-state failure is returned and not restarted.
func (s *Supervisor) Run(ctx context.Context) error {
	s.transition(Starting)

	for {
		switch s.State() {
		case Starting:
			if err := s.start(); err != nil {
				if errors.Is(err, config.ErrConfigurationMissing) {
					s.logger.Errorf("Cannot start: %v", err)
					s.transition(Stopped)
					return nil
				}
				s.fail(ctx, err)
				continue
			}
			s.transition(Building)

		case Building:
			session, err := s.factory.Build(ctx, s.cfg)
			if err != nil {
				s.fail(ctx, err)
				continue
			}
			metrics.RecordSessionBuilt()
			s.session = session
			s.transition(Authenticating)

		case Authenticating:
			if _, err := s.flow.Run(ctx, s.session, s.cfg); err != nil {
				s.describe(ctx)
				s.teardown()
				s.fail(ctx, err)
				continue
			}
			s.transition(SteadyState)

		case SteadyState:
			err := s.steady(ctx)
			s.teardown()
			s.transition(Stopped)
			if errors.Is(err, ErrInterrupted) {
				s.logger.Infof("Stopping extkeeper...")
				return nil
			}
			s.logger.Errorf("Connection check failed: %v", err)
			return fmt.Errorf("steady state failed: %w", err)

		case Failed:
			if ctx.Err() != nil {
				return s.stop()
			}
			s.logger.Errorf("An error occurred: %v", s.lastErr)
			s.logger.Errorf("Restarting in %s...", s.tuning.RestartBackoff)
			if err := s.clock.Sleep(ctx, s.tuning.RestartBackoff); err != nil {
				return s.stop()
			}
			metrics.RecordRestart()
			s.transition(Starting)

		case Stopped:
			return nil
		}
	}
}

func (s *Supervisor) start() error {
	s.logger.Infof("Started extkeeper %s", s.version)
	cfg, err := s.readEnv()
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// fail records err and moves to Failed. The failing state is taken before
// the transition so the metric names where the attempt broke.
func (s *Supervisor) fail(ctx context.Context, err error) {
	if ctx.Err() == nil {
		metrics.RecordAttemptFailure(s.State().String())
	}
	s.lastErr = err
	s.transition(Failed)
}

func (s *Supervisor) stop() error {
	s.teardown()
	s.transition(Stopped)
	s.logger.Infof("Stopping extkeeper...")
	return nil
}

func (s *Supervisor) steady(ctx context.Context) error {
	monitor := s.flow.Monitor()
	for {
		if err := s.clock.Sleep(ctx, s.tuning.SteadyInterval); err != nil {
			return interrupted(ctx, err)
		}
		if err := s.session.Reload(ctx); err != nil {
			return interrupted(ctx, err)
		}
		if _, err := monitor.Check(ctx, s.session); err != nil {
			return interrupted(ctx, err)
		}
	}
}

func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
	return err
}

// describe logs what the session's page showed when the attempt failed.
func (s *Supervisor) describe(ctx context.Context) {
	d, ok := s.session.(Describer)
	if !ok || ctx.Err() != nil {
		return
	}
	desc, err := d.Describe(ctx)
	if err != nil {
		s.logger.Debugf("Could not snapshot page: %v", err)
		return
	}
	s.logger.Warnf("Page at failure: %s", desc)
}

// teardown closes the current session, if any.
func (s *Supervisor) teardown() {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		s.logger.Warnf("Failed to close session: %v", err)
	}
	s.session = nil
}
