package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayDoublesToCap(t *testing.T) {
	b := DefaultBackoff

	assert.Equal(t, 5*time.Second, b.Delay(0))
	assert.Equal(t, 10*time.Second, b.Delay(1))
	assert.Equal(t, 20*time.Second, b.Delay(2))
	assert.Equal(t, 40*time.Second, b.Delay(3))
	assert.Equal(t, 80*time.Second, b.Delay(4))
	assert.Equal(t, 120*time.Second, b.Delay(5))
	assert.Equal(t, 120*time.Second, b.Delay(50))
}

func TestBackoffDelayInitialAboveCap(t *testing.T) {
	b := Backoff{Initial: 10 * time.Second, Max: 5 * time.Second, Retries: 1}
	assert.Equal(t, 5*time.Second, b.Delay(0))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindTransientExternal, KindOf(Transient("fetch", errors.New("429"))))
	assert.Equal(t, KindStorePermanent, KindOf(StorePermanent("insert", errors.New("23505"))))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("cycle: %w", Invalid("parse", errors.New("bad json")))
	assert.Equal(t, KindInvalidInput, KindOf(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transient("fetch", errors.New("timeout"))))
	assert.True(t, IsRetryable(StoreTransient("claim", errors.New("deadlock"))))
	assert.False(t, IsRetryable(Permanent("auth", errors.New("401"))))
	assert.False(t, IsRetryable(StorePermanent("insert", errors.New("schema"))))
	assert.False(t, IsRetryable(Invalid("parse", errors.New("bad"))))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestRetryHint(t *testing.T) {
	hint, ok := RetryHint(Transient("fetch", errors.New("timeout")))
	require.True(t, ok)
	assert.Equal(t, DefaultBackoff, hint)

	_, ok = RetryHint(Permanent("auth", errors.New("401")))
	assert.False(t, ok)

	_, ok = RetryHint(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorString(t *testing.T) {
	err := New(KindPoison, "notify", errors.New("attempts exhausted"))
	assert.Equal(t, "notify: poison: attempts exhausted", err.Error())

	bare := New(KindStoreTransient, "claim", nil)
	assert.Equal(t, "claim: store_transient", bare.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := StoreTransient("ping", cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient_external", KindTransientExternal.String())
	assert.Equal(t, "permanent_external", KindPermanentExternal.String())
	assert.Equal(t, "store_transient", KindStoreTransient.String())
	assert.Equal(t, "store_permanent", KindStorePermanent.String())
	assert.Equal(t, "invalid_input", KindInvalidInput.String())
	assert.Equal(t, "poison", KindPoison.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
