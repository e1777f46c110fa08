package chat

import (
	"context"
	"sync"
	"time"

	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/xcontext"
)

// TypingSignal debounces the outbound typing indicator for one channel.
// Only transition edges go on the wire: typing=true on the first keystroke,
// typing=false once the idle timer fires with no further input. Frames are
// best-effort; a closed channel silently drops them.
type TypingSignal struct {
	bus        FrameSender
	channelKey string
	idle       time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

func NewTypingSignal(ctx context.Context, bus FrameSender, channelKey string) *TypingSignal {
	return &TypingSignal{
		bus:        bus,
		channelKey: channelKey,
		idle:       xcontext.Configs(ctx).Chat.TypingIdle,
	}
}

// Input records one local input change. Rapid consecutive keystrokes only
// reset the idle timer.
func (t *TypingSignal) Input() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		if !t.bus.Send(t.channelKey, model.NewTypingEvent(true)) {
			// Channel not open; stay inactive so the next keystroke retries.
			return
		}
		t.active = true
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.idle, t.timeout)
}

func (t *TypingSignal) timeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Stop force-ends an outstanding typing signal, e.g. when the composer is
// cleared on send or the room changes.
func (t *TypingSignal) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.stopLocked()
}

func (t *TypingSignal) stopLocked() {
	if !t.active {
		return
	}
	t.active = false
	t.bus.Send(t.channelKey, model.NewTypingEvent(false))
}
