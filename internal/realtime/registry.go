package realtime

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/errorx"
	"github.com/deskhive/realtime/pkg/ws"
	"github.com/deskhive/realtime/pkg/xcontext"
)

type ErrorHandler func(error)
type CloseHandler func(code int)

// channel is one logical realtime endpoint. conn is nil whenever no live
// transport backs the channel; retryTimer and conn are mutually exclusive.
type channel struct {
	key    string
	ctx    context.Context
	handle *Handle

	conn       *ws.Conn
	attempts   int
	retryTimer *time.Timer

	onMessage Handler
	onError   ErrorHandler
	onClose   CloseHandler
}

// Registry owns every channel of one session. All state transitions happen
// under a single mutex so transport pumps, reconnect timers and API calls
// apply in a serialized order, matching the event-loop model of the hosting
// web client.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*channel
	disposed bool

	dispatchers *xsync.MapOf[string, *dispatcher]
}

func NewRegistry() *Registry {
	return &Registry{
		channels:    make(map[string]*channel),
		dispatchers: xsync.NewMapOf[*dispatcher](),
	}
}

// Handle is the thin surface handed to callers. It deliberately does not
// expose the registry itself.
type Handle struct {
	Key string

	send       func(any) bool
	disconnect func()
}

func (h *Handle) Send(payload any) bool {
	return h.send(payload)
}

func (h *Handle) Disconnect() {
	h.disconnect()
}

// Connect opens the channel identified by key, or returns the existing handle
// unchanged if a live transport already backs it. It returns nil when no
// authentication token is configured; retrying without fixing auth is
// pointless and the caller must not do it.
func (r *Registry) Connect(
	ctx context.Context, key string,
	onMessage Handler, onError ErrorHandler, onClose CloseHandler,
) *Handle {
	cfg := xcontext.Configs(ctx)
	if cfg.Auth.Token == "" {
		xcontext.Logger(ctx).Errorf("Cannot connect channel %s: no auth token", key)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return nil
	}

	ch, ok := r.channels[key]
	if ok && ch.conn != nil {
		return ch.handle
	}

	if !ok {
		ch = &channel{key: key, handle: r.handle(key)}
		r.channels[key] = ch
	}

	ch.ctx = ctx
	ch.onMessage = onMessage
	ch.onError = onError
	ch.onClose = onClose

	// A manual connect supersedes any pending reconnect timer.
	if ch.retryTimer != nil {
		ch.retryTimer.Stop()
		ch.retryTimer = nil
	}

	if err := r.open(ch); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot open channel %s: %v", key, err)
		if ch.onError != nil {
			ch.onError(err)
		}
		r.scheduleReconnect(ch)
	}

	return ch.handle
}

func (r *Registry) handle(key string) *Handle {
	return &Handle{
		Key:        key,
		send:       func(payload any) bool { return r.Send(key, payload) },
		disconnect: func() { r.Disconnect(key) },
	}
}

// open dials the transport for ch. Caller holds r.mu.
func (r *Registry) open(ch *channel) error {
	cfg := xcontext.Configs(ch.ctx)

	query := url.Values{}
	query.Set(cfg.Auth.TokenName, cfg.Auth.Token)
	target := fmt.Sprintf("%s/%s?%s",
		cfg.WsServer.Address(), url.PathEscape(ch.key), query.Encode())

	conn, err := ws.Dial(ch.ctx, target)
	if err != nil {
		return err
	}

	ch.conn = conn
	ch.attempts = 0
	if ch.retryTimer != nil {
		ch.retryTimer.Stop()
		ch.retryTimer = nil
	}

	done := make(chan struct{})
	go r.runPump(ch, conn, ch.ctx, ch.onMessage, ch.onClose, done)
	go r.runPinger(ch.ctx, conn, done)

	xcontext.Logger(ch.ctx).Infof("Channel %s connected", ch.key)
	return nil
}

// runPump delivers inbound frames, in transport order, to the inline handler
// and every bus subscriber. It owns the close transition of its connection.
// The callbacks and context are snapshots taken at open time: a later Connect
// installs fresh ones together with a fresh pump, so this goroutine never
// reads mutable channel fields.
func (r *Registry) runPump(
	ch *channel, conn *ws.Conn, ctx context.Context,
	onMessage Handler, onClose CloseHandler, done chan struct{},
) {
	log := xcontext.Logger(ctx)

	for raw := range conn.R {
		ev, err := model.ParseEvent(raw)
		if err != nil {
			log.Warnf("Dropped malformed frame on channel %s: %v", ch.key, err)
			continue
		}

		if onMessage != nil {
			invoke(log, onMessage, ev)
		}
		if d, ok := r.dispatchers.Load(ch.key); ok {
			d.dispatch(log, ev)
		}
	}

	close(done)

	code := conn.CloseCode()
	if onClose != nil {
		onClose(code)
	}

	r.afterClose(ch, conn, code)
}

func (r *Registry) afterClose(ch *channel, conn *ws.Conn, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.channels[ch.key]
	if !ok || cur != ch || ch.conn != conn {
		// Explicitly disconnected or already replaced; nothing to do.
		return
	}

	ch.conn = nil

	if code == ws.CloseNormal || code == ws.CloseForbidden {
		xcontext.Logger(ch.ctx).Infof("Channel %s closed (code %d)", ch.key, code)
		return
	}

	r.scheduleReconnect(ch)
}

// scheduleReconnect arms the retry timer for ch. Caller holds r.mu.
func (r *Registry) scheduleReconnect(ch *channel) {
	policy := r.policyFor(ch.ctx)
	if policy.Exhausted(ch.attempts) {
		xcontext.Logger(ch.ctx).Warnf(
			"Channel %s gave up after %d reconnect attempts", ch.key, ch.attempts)
		if ch.onError != nil {
			ch.onError(errorx.New(errorx.RetriesExhausted,
				"Channel %s unreachable after %d attempts", ch.key, ch.attempts))
		}
		return
	}

	delay := policy.Delay(ch.attempts)
	ch.attempts++
	ch.retryTimer = time.AfterFunc(delay, func() { r.reconnect(ch) })

	xcontext.Logger(ch.ctx).Infof(
		"Channel %s reconnecting in %s (attempt %d)", ch.key, delay, ch.attempts)
}

func (r *Registry) reconnect(ch *channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.channels[ch.key]
	if !ok || cur != ch {
		// Disconnected while the timer was pending.
		return
	}

	ch.retryTimer = nil
	if ch.conn != nil {
		return
	}

	if err := r.open(ch); err != nil {
		if ch.onError != nil {
			ch.onError(err)
		}
		r.scheduleReconnect(ch)
	}
}

func (r *Registry) runPinger(ctx context.Context, conn *ws.Conn, done chan struct{}) {
	interval := xcontext.Configs(ctx).WsServer.PingInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Write(model.NewPingEvent(time.Now().UnixMilli())); err != nil {
				return
			}
		}
	}
}

func (r *Registry) policyFor(ctx context.Context) BackoffPolicy {
	cfg := xcontext.Configs(ctx).Reconnect
	return BackoffPolicy{
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// Send serializes payload onto the channel's transport. It reports false,
// never an error, when the channel is absent or not open.
func (r *Registry) Send(key string, payload any) bool {
	r.mu.Lock()
	ch, ok := r.channels[key]
	var conn *ws.Conn
	if ok {
		conn = ch.conn
	}
	r.mu.Unlock()

	if conn == nil {
		return false
	}

	return conn.Write(payload) == nil
}

// Disconnect closes the channel with the clean-shutdown code and clears every
// piece of bookkeeping for the key: subscribers, attempt counter, pending
// timer. Safe to call on an already-closed or never-opened key.
func (r *Registry) Disconnect(key string) {
	r.mu.Lock()
	ch, ok := r.channels[key]
	if !ok {
		r.mu.Unlock()
		return
	}

	delete(r.channels, key)
	r.dispatchers.Delete(key)

	if ch.retryTimer != nil {
		ch.retryTimer.Stop()
		ch.retryTimer = nil
	}

	conn := ch.conn
	ch.conn = nil
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close(ws.CloseNormal)
	}
}

func (r *Registry) IsConnected(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	return ok && ch.conn != nil
}

// Subscribe registers an additional multicast handler for the channel,
// independent of the connect-time inline handler. The returned func removes
// exactly that handler and frees the per-channel set when it was the last
// one. Subscribing does not require the channel to be connected yet.
func (r *Registry) Subscribe(key string, fn Handler) func() {
	r.mu.Lock()
	d, _ := r.dispatchers.LoadOrCompute(key, newDispatcher)
	id := d.add(fn)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			if d.remove(id) != 0 {
				return
			}
			// Disconnect may have dropped this set already and a fresh
			// subscriber re-created the key; only delete our own set.
			if cur, ok := r.dispatchers.Load(key); ok && cur == d {
				r.dispatchers.Delete(key)
			}
		})
	}
}

// Dispose tears the whole registry down.
func (r *Registry) Dispose() {
	r.mu.Lock()
	r.disposed = true

	conns := make([]*ws.Conn, 0, len(r.channels))
	for key, ch := range r.channels {
		if ch.retryTimer != nil {
			ch.retryTimer.Stop()
			ch.retryTimer = nil
		}
		if ch.conn != nil {
			conns = append(conns, ch.conn)
			ch.conn = nil
		}
		delete(r.channels, key)
		r.dispatchers.Delete(key)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(ws.CloseNormal)
	}
}
