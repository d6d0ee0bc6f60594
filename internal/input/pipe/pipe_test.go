package pipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/keyshift/internal/input/key"
)

func TestConfigErrorMatching(t *testing.T) {
	err := Configf("layer 1 key A", key.ErrUnknownKey)

	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, key.ErrUnknownKey))
	assert.EqualError(t, err, "configuration error: layer 1 key A: unknown key name")

	var ce *ConfigError
	if assert.True(t, errors.As(err, &ce)) {
		assert.Equal(t, "layer 1 key A", ce.Subject)
	}
}

func TestStageFunc(t *testing.T) {
	var got key.Event
	s := StageFunc(func(e key.Event) bool {
		got = e
		return true
	})

	e := key.Event{Code: key.CodeA, Pressed: true}
	assert.True(t, s.Handle(e))
	assert.True(t, got.Equals(e))
}
