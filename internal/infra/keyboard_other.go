//go:build !linux

package infra

import (
	"context"
	"time"
)

// Run is unavailable here; key activity arrives through the HTTP API instead.
func (k *KeyboardSource) Run(ctx context.Context, out chan<- time.Time) error {
	return ErrKeyboardUnsupported
}
