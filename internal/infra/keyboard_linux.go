//go:build linux

package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var keyboardGlobs = []string{
	"/dev/input/by-id/*-event-kbd",
	"/dev/input/by-path/*-event-kbd",
}

func (k *KeyboardSource) discover() []string {
	if len(k.devices) > 0 {
		return k.devices
	}
	seen := make(map[string]bool)
	var found []string
	for _, pattern := range keyboardGlobs {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			real, err := filepath.EvalSymlinks(m)
			if err != nil || seen[real] {
				continue
			}
			seen[real] = true
			found = append(found, real)
		}
	}
	return found
}

// Run reads every keyboard device until ctx is done.
// Reading /dev/input requires membership of the input group or root.
func (k *KeyboardSource) Run(ctx context.Context, out chan<- time.Time) error {
	var files []*os.File
	for _, path := range k.discover() {
		f, err := os.Open(path)
		if err != nil {
			k.logger.Warn("cannot open keyboard device", zap.String("device", path), zap.Error(err))
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return ErrNoKeyboard
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		f := f
		k.logger.Info("reading keyboard device", zap.String("device", f.Name()))
		g.Go(func() error {
			err := k.pump(gctx, f, out)
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("keyboard %s: %w", f.Name(), err)
		})
	}

	// Closing the files unblocks pending reads.
	g.Go(func() error {
		<-gctx.Done()
		for _, f := range files {
			_ = f.Close()
		}
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
