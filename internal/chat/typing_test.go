package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskhive/realtime/config"
	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/xcontext"
)

type fakeSender struct {
	mu     sync.Mutex
	open   bool
	frames []*model.Event
}

func (f *fakeSender) Send(channelKey string, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return false
	}
	f.frames = append(f.frames, payload.(*model.Event))
	return true
}

func (f *fakeSender) typingFrames() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []bool
	for _, ev := range f.frames {
		if ev.Type == model.EventTyping {
			out = append(out, ev.IsTyping)
		}
	}
	return out
}

func typingTestContext(idle time.Duration) context.Context {
	cfg := config.Default()
	cfg.Chat.TypingIdle = idle
	return xcontext.WithConfigs(context.Background(), cfg)
}

func Test_TypingSignal_EdgeTriggered(t *testing.T) {
	sender := &fakeSender{open: true}
	signal := NewTypingSignal(typingTestContext(80*time.Millisecond), sender, "room-1")

	// Keystrokes in rapid succession: one typing=true, timer keeps resetting.
	signal.Input()
	time.Sleep(25 * time.Millisecond)
	signal.Input()
	time.Sleep(25 * time.Millisecond)
	signal.Input()

	require.Equal(t, []bool{true}, sender.typingFrames())

	// Idle expires measured from the last keystroke.
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, []bool{true}, sender.typingFrames())

	require.Eventually(t, func() bool {
		frames := sender.typingFrames()
		return len(frames) == 2 && !frames[1]
	}, time.Second, 5*time.Millisecond)

	// Nothing else goes out after the stop edge.
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, []bool{true, false}, sender.typingFrames())
}

func Test_TypingSignal_RestartsAfterIdle(t *testing.T) {
	sender := &fakeSender{open: true}
	signal := NewTypingSignal(typingTestContext(30*time.Millisecond), sender, "room-1")

	signal.Input()
	require.Eventually(t, func() bool {
		return len(sender.typingFrames()) == 2
	}, time.Second, 5*time.Millisecond)

	// A new keystroke after going idle re-sends the start edge.
	signal.Input()
	require.Eventually(t, func() bool {
		frames := sender.typingFrames()
		return len(frames) == 4 && frames[2] && !frames[3]
	}, time.Second, 5*time.Millisecond)
}

func Test_TypingSignal_DroppedWhenChannelClosed(t *testing.T) {
	sender := &fakeSender{open: false}
	signal := NewTypingSignal(typingTestContext(30*time.Millisecond), sender, "room-1")

	signal.Input()
	time.Sleep(60 * time.Millisecond)
	require.Empty(t, sender.typingFrames())

	// Once the channel is open again the next keystroke goes through.
	sender.mu.Lock()
	sender.open = true
	sender.mu.Unlock()

	signal.Input()
	require.Equal(t, []bool{true}, sender.typingFrames())
}

func Test_TypingSignal_Stop(t *testing.T) {
	sender := &fakeSender{open: true}
	signal := NewTypingSignal(typingTestContext(time.Minute), sender, "room-1")

	signal.Input()
	signal.Stop()
	require.Equal(t, []bool{true, false}, sender.typingFrames())

	// Stop without an outstanding signal is a no-op.
	signal.Stop()
	require.Equal(t, []bool{true, false}, sender.typingFrames())
}
