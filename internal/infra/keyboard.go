package infra

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
)

// Linux input_event layout: struct timeval, __u16 type, __u16 code, __s32 value.
const (
	evKey          = 0x01
	keyPressValue  = 1
	timevalSize    = 2 * strconv.IntSize / 8
	inputEventSize = timevalSize + 8
)

var (
	// ErrNoKeyboard is returned when no keyboard device can be opened.
	ErrNoKeyboard = errors.New("no readable keyboard device")
	// ErrKeyboardUnsupported is returned where no raw keyboard reader exists.
	ErrKeyboardUnsupported = errors.New("keyboard capture not supported on this platform")
)

// KeyboardSource implements domain.KeySource by reading raw input events.
// Only the fact that a key went down is forwarded; key codes are discarded.
type KeyboardSource struct {
	devices []string
	logger  *zap.Logger
	dropped atomic.Int64
	now     func() time.Time
}

// NewKeyboardSource creates a source. An empty device list means autodetect.
func NewKeyboardSource(devices []string, logger *zap.Logger) *KeyboardSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyboardSource{devices: devices, logger: logger, now: time.Now}
}

// Dropped returns how many key presses were discarded because out was full.
func (k *KeyboardSource) Dropped() int64 {
	return k.dropped.Load()
}

// isKeyPress decodes one input_event record.
func isKeyPress(rec []byte) bool {
	if len(rec) < inputEventSize {
		return false
	}
	typ := binary.LittleEndian.Uint16(rec[timevalSize:])
	value := int32(binary.LittleEndian.Uint32(rec[timevalSize+4:]))
	return typ == evKey && value == keyPressValue
}

// pump reads input_event records from r and forwards key presses to out
// without blocking. It returns when r fails or ctx is done.
func (k *KeyboardSource) pump(ctx context.Context, r io.Reader, out chan<- time.Time) error {
	buf := make([]byte, inputEventSize*64)
	for {
		n, err := io.ReadAtLeast(r, buf, inputEventSize)
		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			if !isKeyPress(buf[off : off+inputEventSize]) {
				continue
			}
			select {
			case out <- k.now():
			default:
				k.dropped.Add(1)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Ensure KeyboardSource implements domain.KeySource.
var _ domain.KeySource = (*KeyboardSource)(nil)
