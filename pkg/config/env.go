// Package config reads the worker's environment-derived settings and the
// optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrConfigurationMissing is returned when a required environment variable is
// absent. There is no point retrying an attempt that fails this way.
var ErrConfigurationMissing = errors.New("required configuration missing")

// Environment variable names.
const (
	EnvToken         = "NP_COOKIE"
	EnvExtensionID   = "EXTENSION_ID"
	EnvExtensionURL  = "EXTENSION_URL"
	EnvProxyHost     = "PROXY_HOST"
	EnvProxyPort     = "PROXY_PORT"
	EnvProxyUsername = "PROXY_USERNAME"
	EnvProxyPassword = "PROXY_PASSWORD"
	EnvPort          = "PORT"
)

// DefaultPort is the liveness endpoint port used when PORT is unset.
const DefaultPort = 10000

// ExtensionScheme is the URL scheme Chromium uses for extension pages.
const ExtensionScheme = "chrome-extension"

// Proxy describes an upstream HTTP proxy for the browser.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Authenticated reports whether both credentials are present.
func (p *Proxy) Authenticated() bool {
	return p.Username != "" && p.Password != ""
}

// Argument formats the proxy as scheme://[user:pass@]host:port.
func (p *Proxy) Argument() string {
	if p.Authenticated() {
		return fmt.Sprintf("http://%s:%s@%s:%s", p.Username, p.Password, p.Host, p.Port)
	}
	return fmt.Sprintf("http://%s:%s", p.Host, p.Port)
}

// Config is an immutable snapshot of the environment for one attempt.
type Config struct {
	// Token is the opaque credential injected into local storage
	Token string

	// ExtensionID identifies the extension package and its local pages
	ExtensionID string

	// ExtensionURL is the initial navigation target
	ExtensionURL string

	// Proxy is nil when no proxy is configured
	Proxy *Proxy
}

// Load reads the configuration through getenv.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Token:        strings.TrimSpace(getenv(EnvToken)),
		ExtensionID:  strings.TrimSpace(getenv(EnvExtensionID)),
		ExtensionURL: strings.TrimSpace(getenv(EnvExtensionURL)),
	}

	host := strings.TrimSpace(getenv(EnvProxyHost))
	port := strings.TrimSpace(getenv(EnvProxyPort))
	if host != "" && port != "" {
		cfg.Proxy = &Proxy{
			Host:     host,
			Port:     port,
			Username: getenv(EnvProxyUsername),
			Password: getenv(EnvProxyPassword),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.Getenv)
}

// Validate checks that mandatory values are present.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: no cookie provided, please set the %s environment variable", ErrConfigurationMissing, EnvToken)
	}
	if c.ExtensionID == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfigurationMissing, EnvExtensionID)
	}
	if c.ExtensionURL == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfigurationMissing, EnvExtensionURL)
	}
	return nil
}

// ProxyArgument returns the proxy argument, or "" when no proxy is configured.
func (c *Config) ProxyArgument() string {
	if c.Proxy == nil {
		return ""
	}
	return c.Proxy.Argument()
}

// ExtensionPage is the extension's own settings page.
func (c *Config) ExtensionPage() string {
	return fmt.Sprintf("%s://%s/index.html", ExtensionScheme, c.ExtensionID)
}

// ExtensionPackage is the file name of the packed extension.
func (c *Config) ExtensionPackage() string {
	return c.ExtensionID + ".crx"
}

// ListenPort reads the liveness port. An unparsable value falls back to
// DefaultPort and is reported through the returned error.
func ListenPort(getenv func(string) string) (int, error) {
	raw := strings.TrimSpace(getenv(EnvPort))
	if raw == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return DefaultPort, fmt.Errorf("invalid %s %q, using %d", EnvPort, raw, DefaultPort)
	}
	return port, nil
}
