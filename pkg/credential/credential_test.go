package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/entrhq/extkeeper/pkg/logging"
)

type memoryStore struct {
	values map[string]string
	order  []string
	// corrupt, when set, replaces what is read back
	corrupt func(string) string
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) SetLocalStorage(_ context.Context, key, value string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.order = append(s.order, key)
	s.values[key] = value
	if s.corrupt != nil {
		return s.corrupt(value), nil
	}
	return s.values[key], nil
}

func observed() (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap("credential", zap.New(core)), logs
}

func TestMask(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "<redacted>"},
		{"short", "abc", "<redacted>"},
		{"fifteen", "abcdefghijklmno", "<redacted>"},
		{"sixteen", "abcdefghijklmnop", "abcdefgh...ijklmnop"},
		{"long", "AAAAAAAA-the-secret-middle-ZZZZZZZZ", "AAAAAAAA...ZZZZZZZZ"},
		{"multibyte", "äöüßéèêëMIDDLEñçåøæœðþ", "äöüßéèêë...ñçåøæœðþ"},
		{"fifteen multibyte", "ééééééééééééééé", "<redacted>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked := Mask(tt.token)
			assert.Equal(t, tt.want, masked)
			assert.True(t, utf8.ValidString(masked))
		})
	}
}

func TestMask_NeverShowsMiddle(t *testing.T) {
	for n := 17; n < 64; n++ {
		token := strings.Repeat("a", 8) + strings.Repeat("m", n-16) + strings.Repeat("z", 8)
		masked := Mask(token)
		assert.NotContains(t, masked, "m", "length %d", n)
		assert.True(t, strings.HasPrefix(masked, "aaaaaaaa"))
		assert.True(t, strings.HasSuffix(masked, "zzzzzzzz"))
	}
}

func TestInject_WritesBothKeysInOrder(t *testing.T) {
	logger, logs := observed()
	store := newMemoryStore()
	token := "AAAAAAAA-the-secret-middle-ZZZZZZZZ"

	err := NewInjector(logger, MismatchWarn).Inject(context.Background(), store, token)
	require.NoError(t, err)

	assert.Equal(t, Keys, store.order)
	for _, key := range Keys {
		assert.Equal(t, token, store.values[key])
	}

	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "the-secret-middle")
	}
	assert.Equal(t, 1, logs.FilterMessageSnippet("Added np_webapp_token with value AAAAAAAA...ZZZZZZZZ").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Added np_token").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("7 days").Len())
}

func TestInject_MismatchWarn(t *testing.T) {
	logger, logs := observed()
	store := newMemoryStore()
	store.corrupt = func(string) string { return "" }

	err := NewInjector(logger, MismatchWarn).Inject(context.Background(), store, "AAAAAAAAxxxxxxxxZZZZZZZZ")
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestInject_MismatchFail(t *testing.T) {
	logger, _ := observed()
	store := newMemoryStore()
	store.corrupt = func(v string) string { return strings.ToUpper(v) }

	err := NewInjector(logger, MismatchFail).Inject(context.Background(), store, "AAAAAAAAxxxxxxxxZZZZZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
	// stops at the first key
	assert.Equal(t, []string{"np_webapp_token"}, store.order)
	assert.NotContains(t, err.Error(), "XXXXXXXX")
}

func TestInject_StoreError(t *testing.T) {
	logger, _ := observed()
	store := newMemoryStore()
	store.err = errors.New("page crashed")

	err := NewInjector(logger, MismatchWarn).Inject(context.Background(), store, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "np_webapp_token")
	assert.ErrorIs(t, err, store.err)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("warn")
	require.NoError(t, err)
	assert.Equal(t, MismatchWarn, mode)

	mode, err = ParseMode("fail")
	require.NoError(t, err)
	assert.Equal(t, MismatchFail, mode)

	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, MismatchWarn, mode)

	_, err = ParseMode("strict")
	assert.Error(t, err)
}
