package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test", zerolog.Nop())
	cfg.MaxFailures = 3
	cfg.Timeout = time.Minute
	b := New(cfg)

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return failing })
		assert.ErrorIs(t, err, failing)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	cfg := DefaultConfig("test-success", zerolog.Nop())
	b := New(cfg)

	err := b.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
