package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential verification modes.
const (
	CredentialCheckWarn = "warn"
	CredentialCheckFail = "fail"
)

// DefaultUserAgent is presented by every session.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0"

// Range is an inclusive interval for randomized pauses.
type Range struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// Validate validates the range
func (r Range) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("range bounds cannot be negative")
	}
	if r.Max < r.Min {
		return fmt.Errorf("range max %s is less than min %s", r.Max, r.Min)
	}
	return nil
}

// Tuning holds timing and capability knobs. The defaults reproduce the
// behaviour the worker has always had; a YAML file may override any of them.
type Tuning struct {
	// Element polling
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// Resilience loop
	RestartBackoff time.Duration `yaml:"restart_backoff" json:"restart_backoff"`
	SteadyInterval time.Duration `yaml:"steady_interval" json:"steady_interval"`

	// Login flow pauses
	SettleJitter    Range         `yaml:"settle_jitter" json:"settle_jitter"`
	DashboardJitter Range         `yaml:"dashboard_jitter" json:"dashboard_jitter"`
	LoginPause      time.Duration `yaml:"login_pause" json:"login_pause"`

	// Browser session
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	ViewportWidth     int           `yaml:"viewport_width" json:"viewport_width"`
	Headless          bool          `yaml:"headless" json:"headless"`
	Channel           string        `yaml:"channel" json:"channel"`
	ExtensionDir      string        `yaml:"extension_dir" json:"extension_dir"`

	// CredentialCheck is warn or fail
	CredentialCheck string `yaml:"credential_check" json:"credential_check"`
}

// DefaultTuning returns the tuning used when no file is given
func DefaultTuning() *Tuning {
	return &Tuning{
		PollTimeout:       10 * time.Second,
		PollInterval:      500 * time.Millisecond,
		RestartBackoff:    60 * time.Second,
		SteadyInterval:    time.Hour,
		SettleJitter:      Range{Min: 3 * time.Second, Max: 7 * time.Second},
		DashboardJitter:   Range{Min: 10 * time.Second, Max: 50 * time.Second},
		LoginPause:        10 * time.Second,
		NavigationTimeout: 30 * time.Second,
		UserAgent:         DefaultUserAgent,
		ViewportWidth:     1024,
		Headless:          true,
		Channel:           "chromium",
		ExtensionDir:      ".",
		CredentialCheck:   CredentialCheckWarn,
	}
}

// Validate validates the tuning
func (t *Tuning) Validate() error {
	if t.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive")
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if t.RestartBackoff < 0 {
		return fmt.Errorf("restart_backoff cannot be negative")
	}
	if t.SteadyInterval <= 0 {
		return fmt.Errorf("steady_interval must be positive")
	}
	if t.LoginPause < 0 {
		return fmt.Errorf("login_pause cannot be negative")
	}
	if err := t.SettleJitter.Validate(); err != nil {
		return fmt.Errorf("settle_jitter: %w", err)
	}
	if err := t.DashboardJitter.Validate(); err != nil {
		return fmt.Errorf("dashboard_jitter: %w", err)
	}
	if t.ViewportWidth <= 0 {
		return fmt.Errorf("viewport_width must be positive")
	}
	if t.UserAgent == "" {
		return fmt.Errorf("user_agent is required")
	}

	switch t.CredentialCheck {
	case CredentialCheckWarn, CredentialCheckFail:
	default:
		return fmt.Errorf("invalid credential_check: %s (must be 'warn' or 'fail')", t.CredentialCheck)
	}

	return nil
}

// LoadTuning loads tuning from a YAML file on top of the defaults.
// An empty path returns the defaults.
func LoadTuning(path string) (*Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	if err := yaml.Unmarshal(data, tuning); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file: %w", err)
	}

	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return tuning, nil
}
