package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskhive/realtime/internal/model"
)

type fakeViewport struct {
	mu             sync.Mutex
	scrollTop      int
	contentHeight  int
	viewportHeight int
	bottomCalls    int
}

func (v *fakeViewport) ScrollTop() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollTop
}

func (v *fakeViewport) ContentHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.contentHeight
}

func (v *fakeViewport) ViewportHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewportHeight
}

func (v *fakeViewport) SetScrollTop(top int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollTop = top
}

func (v *fakeViewport) ScrollToBottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollTop = v.contentHeight - v.viewportHeight
	v.bottomCalls++
}

func (v *fakeViewport) set(scrollTop, contentHeight, viewportHeight int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollTop = scrollTop
	v.contentHeight = contentHeight
	v.viewportHeight = viewportHeight
}

func (v *fakeViewport) grow(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contentHeight += delta
}

func loaderFixture(t *testing.T) (*fakeMessageAPI, *MessageStore, *fakeViewport, *HistoryLoader) {
	base := time.Now().Add(-time.Hour)
	api := &fakeMessageAPI{pages: map[int64]*model.GetMessagesResponse{
		0:   makePage([]int64{100, 101, 102, 103, 104}, true, base),
		100: makePage([]int64{95, 96, 97, 98, 99}, false, base),
	}}
	store := NewMessageStore(api)
	view := &fakeViewport{}
	loader := NewHistoryLoader(testChatContext(), store, view, "room-1")
	return api, store, view, loader
}

func Test_HistoryLoader_InitialLoadScrollsToBottom(t *testing.T) {
	_, store, view, _ := loaderFixture(t)
	view.set(0, 1000, 600)

	require.NoError(t, store.LoadInitial(testChatContext(), "room-1"))
	require.Equal(t, 1, view.bottomCalls)
}

func Test_HistoryLoader_PrependKeepsAnchor(t *testing.T) {
	api, store, view, loader := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	view.set(50, 1000, 600)
	bottomCalls := view.bottomCalls

	// The older page renders 400px of new content above the fold.
	api.onGet = func() { view.grow(400) }
	loader.HandleScroll(ctx)

	// Anchored: offset moved by exactly the height delta, no jump to bottom.
	require.Equal(t, 450, view.ScrollTop())
	require.Equal(t, bottomCalls, view.bottomCalls)
	require.Len(t, store.Messages("room-1"), 10)
}

func Test_HistoryLoader_FarFromTopDoesNothing(t *testing.T) {
	api, store, view, loader := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	calls := api.getCalls

	view.set(500, 1000, 600)
	loader.HandleScroll(ctx)
	require.Equal(t, calls, api.getCalls)
}

func Test_HistoryLoader_ExhaustedHistoryDoesNotFetch(t *testing.T) {
	api, store, view, loader := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	view.set(10, 1000, 600)
	loader.HandleScroll(ctx)

	// hasMore is now false; scrolling to the top again stays quiet.
	calls := api.getCalls
	loader.HandleScroll(ctx)
	require.Equal(t, calls, api.getCalls)
}

func Test_HistoryLoader_ReloadReleasesCapturedHeight(t *testing.T) {
	api, store, view, loader := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	view.set(10, 1000, 600)

	// A reload is in flight when the user hits the top edge, so the older
	// fetch silently no-ops while the captured height sticks around.
	started := make(chan struct{})
	release := make(chan struct{})
	api.onGet = func() { close(started); <-release }

	done := make(chan struct{})
	go func() {
		_ = store.LoadInitial(ctx, "room-1")
		close(done)
	}()
	<-started
	loader.HandleScroll(ctx)
	close(release)
	<-done

	// The finished reload releases the capture; the next scroll to the top
	// must fetch older history again.
	api.onGet = nil
	view.set(10, 1000, 600)
	calls := api.getCalls
	loader.HandleScroll(ctx)
	require.Equal(t, calls+1, api.getCalls)
	require.Len(t, store.Messages("room-1"), 10)
}

func Test_HistoryLoader_LiveMessageNearBottom(t *testing.T) {
	_, store, view, _ := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	view.set(800, 1400, 600)
	bottomCalls := view.bottomCalls

	msg := makeMessage(105, "other", "new", time.Now())
	store.HandleEvent("room-1", &model.Event{Type: model.EventMessageNew, Message: &msg})
	require.Equal(t, bottomCalls+1, view.bottomCalls)
}

func Test_HistoryLoader_LiveMessageWhileScrolledUp(t *testing.T) {
	_, store, view, _ := loaderFixture(t)
	ctx := testChatContext()

	require.NoError(t, store.LoadInitial(ctx, "room-1"))
	view.set(100, 1400, 600)
	bottomCalls := view.bottomCalls

	msg := makeMessage(105, "other", "new", time.Now())
	store.HandleEvent("room-1", &model.Event{Type: model.EventMessageNew, Message: &msg})
	require.Equal(t, bottomCalls, view.bottomCalls)
	require.Equal(t, 100, view.ScrollTop())
}
