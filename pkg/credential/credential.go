// Package credential writes the session token into the page's local storage.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/extkeeper/pkg/config"
	"github.com/entrhq/extkeeper/pkg/logging"
)

// ErrMismatch is returned in MismatchFail mode when the value read back from
// local storage differs from the value written.
var ErrMismatch = errors.New("stored credential does not match written value")

// Keys are written in order, each set to the token.
var Keys = []string{"np_webapp_token", "np_token"}

const (
	maskKeep     = 8
	maskRedacted = "<redacted>"
)

// Mode selects what happens when a read-back differs from the written value.
type Mode int

const (
	// MismatchWarn logs a warning and carries on
	MismatchWarn Mode = iota
	// MismatchFail returns ErrMismatch
	MismatchFail
)

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", config.CredentialCheckWarn:
		return MismatchWarn, nil
	case config.CredentialCheckFail:
		return MismatchFail, nil
	default:
		return MismatchWarn, fmt.Errorf("invalid credential check mode: %s", s)
	}
}

// Store is the persisted key-value store of a session.
type Store interface {
	// SetLocalStorage writes value under key and returns what reading key back yields.
	SetLocalStorage(ctx context.Context, key, value string) (string, error)
}

// Injector writes tokens into a Store.
type Injector struct {
	logger *logging.Logger
	mode   Mode
}

// NewInjector creates an injector.
func NewInjector(logger *logging.Logger, mode Mode) *Injector {
	return &Injector{logger: logger, mode: mode}
}

// Inject writes token under every key in Keys, reading each one back.
func (i *Injector) Inject(ctx context.Context, store Store, token string) error {
	for _, key := range Keys {
		stored, err := store.SetLocalStorage(ctx, key, token)
		if err != nil {
			return fmt.Errorf("failed to set %s in local storage: %w", key, err)
		}

		if stored != token {
			if i.mode == MismatchFail {
				return fmt.Errorf("%w: key %s holds %s", ErrMismatch, key, Mask(stored))
			}
			i.logger.Warnf("Read back of %s does not match the written token (got %s)", key, Mask(stored))
		}

		i.logger.Infof("Added %s with value %s to local storage.", key, Mask(stored))
	}

	i.logger.Infof("!!!!! Your token can be used to login for 7 days !!!!!")
	return nil
}

// Mask renders a token for logs. Tokens of 16 characters or more show only
// their first and last 8 characters; anything shorter is fully redacted so
// that no overlap between the two halves can reveal the whole value.
func Mask(token string) string {
	runes := []rune(token)
	if len(runes) < 2*maskKeep {
		return maskRedacted
	}
	return string(runes[:maskKeep]) + "..." + string(runes[len(runes)-maskKeep:])
}
