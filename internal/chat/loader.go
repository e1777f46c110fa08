package chat

import (
	"context"
	"sync"

	"github.com/deskhive/realtime/pkg/xcontext"
)

// Viewport is the hosting view's scroll surface, measured in pixels.
type Viewport interface {
	ScrollTop() int
	ContentHeight() int
	ViewportHeight() int
	SetScrollTop(int)
	ScrollToBottom()
}

// HistoryLoader coordinates "load older page" with the viewport so the
// messages the user is looking at stay visually anchored across a prepend.
// Initial load and live appends near the bottom scroll to the bottom; a
// prepend never does.
type HistoryLoader struct {
	store  *MessageStore
	view   Viewport
	roomID string

	edge  int
	stick int

	mu         sync.Mutex
	prevHeight int
	captured   bool
}

func NewHistoryLoader(ctx context.Context, store *MessageStore, view Viewport, roomID string) *HistoryLoader {
	cfg := xcontext.Configs(ctx).Chat
	l := &HistoryLoader{
		store:  store,
		view:   view,
		roomID: roomID,
		edge:   cfg.ScrollEdgePx,
		stick:  cfg.BottomStickPx,
	}

	store.OnUpdate(l.onStoreUpdate)
	return l
}

// HandleScroll fires on every viewport scroll. When the offset from the top
// falls under the near-top threshold and more history exists, the current
// content height is captured and an older page is requested.
func (l *HistoryLoader) HandleScroll(ctx context.Context) {
	if l.view.ScrollTop() > l.edge {
		return
	}
	if !l.store.HasMore(l.roomID) {
		return
	}

	l.mu.Lock()
	if l.captured {
		l.mu.Unlock()
		return
	}
	l.captured = true
	l.prevHeight = l.view.ContentHeight()
	l.mu.Unlock()

	// LoadOlder itself no-ops when a fetch is already in flight.
	if err := l.store.LoadOlder(ctx, l.roomID); err != nil {
		l.mu.Lock()
		l.captured = false
		l.mu.Unlock()
	}
}

func (l *HistoryLoader) onStoreUpdate(roomID string, kind UpdateKind) {
	if roomID != l.roomID {
		return
	}

	switch kind {
	case UpdateInitial:
		// A reload replaces the log wholesale; any height captured for a
		// pending prepend is meaningless now.
		l.mu.Lock()
		l.captured = false
		l.mu.Unlock()
		l.view.ScrollToBottom()

	case UpdateOlder:
		l.mu.Lock()
		captured := l.captured
		prev := l.prevHeight
		l.captured = false
		l.mu.Unlock()

		if !captured {
			return
		}
		// Anchor: shift by exactly the height the prepend added.
		delta := l.view.ContentHeight() - prev
		l.view.SetScrollTop(l.view.ScrollTop() + delta)

	case UpdateAppend:
		if l.nearBottom() {
			l.view.ScrollToBottom()
		}
	}
}

func (l *HistoryLoader) nearBottom() bool {
	rest := l.view.ContentHeight() - l.view.ScrollTop() - l.view.ViewportHeight()
	return rest <= l.stick
}
