package chat

import "github.com/deskhive/realtime/internal/realtime"

// FrameSender is the thin outbound surface chat components hold instead of a
// reference back to the registry.
type FrameSender interface {
	Send(channelKey string, payload any) bool
}

// ChannelBus is what Bind needs from the realtime layer. *realtime.Registry
// satisfies it.
type ChannelBus interface {
	FrameSender
	Subscribe(channelKey string, fn realtime.Handler) func()
}
