//go:build !linux

package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyboardSource_RunUnsupported(t *testing.T) {
	err := NewKeyboardSource(nil, nil).Run(context.Background(), make(chan time.Time, 1))
	assert.ErrorIs(t, err, ErrKeyboardUnsupported)
	assert.NotErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Contains(t, err.Error(), "keyboard")
}
