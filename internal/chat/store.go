package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskhive/realtime/internal/client"
	"github.com/deskhive/realtime/internal/entity"
	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/xcontext"
)

type roomPhase int

const (
	phaseEmpty roomPhase = iota
	phaseLoading
	phaseReady
)

// reconcileWindow bounds the (author, content, proximity) heuristic that
// matches an authoritative push against a pending optimistic send when no
// shared id exists yet.
const reconcileWindow = 15 * time.Second

type room struct {
	id           string
	phase        roomPhase
	loadingOlder bool

	// log is sorted ascending by creation time and never holds two entries
	// with the same acknowledged server id.
	log     []entity.ChatMessage
	cursor  int64
	hasMore bool

	typing map[string]entity.TypingState
}

// UpdateKind tells observers what changed, so the scroll logic can
// distinguish a prepend from an append.
type UpdateKind int

const (
	UpdateInitial UpdateKind = iota
	UpdateOlder
	UpdateAppend
	UpdateChange
	UpdateTyping
)

type UpdateListener func(roomID string, kind UpdateKind)

type binding struct {
	bus        FrameSender
	channelKey string
	unsub      func()
}

// MessageStore owns the per-room message logs and merges the three message
// sources (optimistic local send, paginated history fetch, live push) into
// one consistent ordered view.
type MessageStore struct {
	mu        sync.Mutex
	api       client.MessageAPICaller
	rooms     map[string]*room
	bindings  map[string]binding
	listeners []UpdateListener
}

func NewMessageStore(api client.MessageAPICaller) *MessageStore {
	return &MessageStore{
		api:      api,
		rooms:    make(map[string]*room),
		bindings: make(map[string]binding),
	}
}

// OnUpdate registers an observer for log transitions. Listeners run after the
// store mutex is released, in registration order.
func (s *MessageStore) OnUpdate(fn UpdateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Bind subscribes the store to a registry channel so live pushes for roomID
// flow into the log, and remembers where outbound frames for that room go.
// The returned func severs both directions.
func (s *MessageStore) Bind(bus ChannelBus, roomID, channelKey string) func() {
	unsub := bus.Subscribe(channelKey, func(ev *model.Event) {
		s.HandleEvent(roomID, ev)
	})

	s.mu.Lock()
	s.bindings[roomID] = binding{bus: bus, channelKey: channelKey, unsub: unsub}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.bindings, roomID)
		s.mu.Unlock()
		unsub()
	}
}

// LoadInitial fetches the newest page for the room and replaces the log
// wholesale. Used once per room activation.
func (s *MessageStore) LoadInitial(ctx context.Context, roomID string) error {
	s.mu.Lock()
	rm := s.room(roomID)
	rm.phase = phaseLoading
	s.mu.Unlock()

	resp, err := s.api.GetMessages(ctx, &model.GetMessagesRequest{
		RoomID: roomID,
		Limit:  xcontext.Configs(ctx).Chat.PageSize,
	})
	if err != nil {
		s.mu.Lock()
		rm.phase = phaseEmpty
		s.mu.Unlock()
		xcontext.Logger(ctx).Errorf("Cannot load room %s: %v", roomID, err)
		return err
	}

	s.mu.Lock()
	rm.log = append([]entity.ChatMessage(nil), resp.Messages...)
	rm.hasMore = resp.HasMore
	rm.cursor = 0
	if len(rm.log) > 0 {
		rm.cursor = rm.log[0].ID
	}
	rm.phase = phaseReady
	rm.loadingOlder = false
	s.mu.Unlock()

	s.notify(roomID, UpdateInitial)
	return nil
}

// LoadOlder fetches the page strictly before the current cursor and prepends
// it. A call while another older-load is in flight, or when no more history
// exists, is a no-op.
func (s *MessageStore) LoadOlder(ctx context.Context, roomID string) error {
	s.mu.Lock()
	rm := s.room(roomID)
	if rm.phase != phaseReady || rm.loadingOlder || !rm.hasMore {
		s.mu.Unlock()
		return nil
	}
	rm.loadingOlder = true
	before := rm.cursor
	s.mu.Unlock()

	resp, err := s.api.GetMessages(ctx, &model.GetMessagesRequest{
		RoomID: roomID,
		Limit:  xcontext.Configs(ctx).Chat.PageSize,
		Before: before,
	})

	s.mu.Lock()
	rm.loadingOlder = false
	if err != nil {
		s.mu.Unlock()
		xcontext.Logger(ctx).Errorf("Cannot load older messages of room %s: %v", roomID, err)
		return err
	}

	// Pagination contracts prevent overlap, but an id already present is
	// ignored regardless.
	fresh := make([]entity.ChatMessage, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		if rm.indexByID(msg.ID) < 0 {
			fresh = append(fresh, msg)
		}
	}

	rm.log = append(fresh, rm.log...)
	rm.hasMore = resp.HasMore
	if len(resp.Messages) > 0 {
		rm.cursor = resp.Messages[0].ID
	}
	s.mu.Unlock()

	s.notify(roomID, UpdateOlder)
	return nil
}

// Draft is a locally composed message before it is sent.
type Draft struct {
	Content    string
	Kind       entity.MessageKind
	Attachment *entity.Attachment
}

// SendOptimistic appends a pending entry with a temporary id and returns that
// id. The caller issues the network send; the entry is reconciled when the
// authoritative echo arrives, via direct response or push, whichever first.
func (s *MessageStore) SendOptimistic(ctx context.Context, roomID string, draft Draft) int64 {
	kind := draft.Kind
	if kind == "" {
		kind = entity.MessageKindText
	}

	msg := entity.ChatMessage{
		TempID:     xcontext.SnowFlake(ctx).Generate().Int64(),
		ClientID:   uuid.NewString(),
		RoomID:     roomID,
		AuthorID:   xcontext.RequestUserID(ctx),
		Content:    draft.Content,
		Kind:       kind,
		Attachment: draft.Attachment,
		CreatedAt:  time.Now(),
		Pending:    true,
	}

	s.mu.Lock()
	rm := s.room(roomID)
	rm.log = append(rm.log, msg)
	s.mu.Unlock()

	s.notify(roomID, UpdateAppend)
	return msg.TempID
}

// Send is the full optimistic round trip: append the pending entry, issue the
// REST send, and reconcile the direct echo.
func (s *MessageStore) Send(ctx context.Context, roomID string, draft Draft) error {
	tempID := s.SendOptimistic(ctx, roomID, draft)

	s.mu.Lock()
	clientID := ""
	rm := s.room(roomID)
	if i := rm.indexByTempID(tempID); i >= 0 {
		clientID = rm.log[i].ClientID
	}
	s.mu.Unlock()

	echo, err := s.api.SendMessage(ctx, &model.SendMessageRequest{
		RoomID:     roomID,
		Content:    draft.Content,
		Kind:       draft.Kind,
		Attachment: draft.Attachment,
		ClientID:   clientID,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot send message to room %s: %v", roomID, err)
		return err
	}

	s.ReconcileAck(roomID, tempID, echo)
	return nil
}

// ReconcileAck folds the authoritative echo of an optimistic send back into
// the log. Convergent with the push path: whichever arrives second finds the
// entry already acknowledged and replaces it in place.
func (s *MessageStore) ReconcileAck(roomID string, tempID int64, echo *entity.ChatMessage) {
	if echo == nil {
		return
	}

	s.mu.Lock()
	rm := s.room(roomID)

	if i := rm.indexByTempID(tempID); i >= 0 {
		ack := *echo
		ack.TempID = 0
		ack.Pending = false
		rm.log[i] = ack
	} else if i := rm.indexByID(echo.ID); i >= 0 {
		ack := *echo
		ack.TempID = 0
		ack.Pending = false
		rm.log[i] = ack
	}
	s.mu.Unlock()

	s.notify(roomID, UpdateChange)
}

// HandleEvent is the dispatch-bus entry point for one room's channel.
func (s *MessageStore) HandleEvent(roomID string, ev *model.Event) {
	switch ev.Type {
	case model.EventMessageNew:
		if ev.Message != nil {
			s.receiveMessage(roomID, *ev.Message, false)
		}
	case model.EventMessageEdited:
		if ev.Message != nil {
			s.receiveMessage(roomID, *ev.Message, true)
		}
	case model.EventMessageDeleted:
		s.RemovePush(roomID, ev.MessageID)
	case model.EventReactionAdded:
		if ev.Reaction != nil {
			s.applyReaction(roomID, ev.Reaction.MessageID, ev.Reaction.UserID, ev.Reaction.Emoji, true)
		}
	case model.EventReactionRemoved:
		s.applyReaction(roomID, ev.MessageID, ev.UserID, ev.Emoji, false)
	case model.EventUserTyping:
		s.applyTyping(roomID, ev.UserID, ev.IsTyping)
	}
}

// receiveMessage merges one pushed message. An existing server id is replaced
// in place, position preserved; a pending optimistic counterpart is
// reconciled instead of appended; otherwise the message is inserted at its
// chronological position (normally the tail).
func (s *MessageStore) receiveMessage(roomID string, msg entity.ChatMessage, edit bool) {
	kind := UpdateChange

	s.mu.Lock()
	rm := s.room(roomID)

	switch {
	case rm.replaceByID(msg):
		// Edit or duplicate push of a known message.
	case !edit && rm.reconcilePending(msg):
		// Acknowledged an optimistic send before (or instead of) the REST echo.
	case edit:
		// Edit push for a message outside the loaded window.
	default:
		rm.insertSorted(msg)
		kind = UpdateAppend
	}
	s.mu.Unlock()

	s.notify(roomID, kind)
}

// RemovePush deletes the message with the given id; an absent id is a no-op.
func (s *MessageStore) RemovePush(roomID string, messageID int64) {
	s.mu.Lock()
	rm := s.room(roomID)
	i := rm.indexByID(messageID)
	if i >= 0 {
		rm.log = append(rm.log[:i], rm.log[i+1:]...)
	}
	s.mu.Unlock()

	if i >= 0 {
		s.notify(roomID, UpdateChange)
	}
}

// ToggleReaction flips the current actor's reaction on a message: present
// removes, absent adds. Set membership, never a counter. The matching frame
// is sent on the room's channel when one is bound.
func (s *MessageStore) ToggleReaction(ctx context.Context, roomID string, messageID int64, emoji string) {
	actor := xcontext.RequestUserID(ctx)

	s.mu.Lock()
	rm := s.room(roomID)
	i := rm.indexByID(messageID)
	if i < 0 {
		s.mu.Unlock()
		return
	}

	added := !removeReaction(&rm.log[i], actor, emoji)
	if added {
		rm.log[i].Reactions = append(rm.log[i].Reactions,
			entity.ChatReaction{UserID: actor, Emoji: emoji})
	}
	bnd, bound := s.bindings[roomID]
	s.mu.Unlock()

	if bound {
		ev := model.NewReactionRemoveEvent(messageID, emoji)
		if added {
			ev = model.NewReactionAddEvent(messageID, emoji)
		}
		if !bnd.bus.Send(bnd.channelKey, ev) {
			xcontext.Logger(ctx).Warnf("Reaction frame dropped: channel %s closed", bnd.channelKey)
		}
	}

	s.notify(roomID, UpdateChange)
}

func (s *MessageStore) applyReaction(roomID string, messageID int64, userID, emoji string, add bool) {
	s.mu.Lock()
	rm := s.room(roomID)
	i := rm.indexByID(messageID)
	if i < 0 {
		s.mu.Unlock()
		return
	}

	if add {
		if !hasReaction(rm.log[i], userID, emoji) {
			rm.log[i].Reactions = append(rm.log[i].Reactions,
				entity.ChatReaction{UserID: userID, Emoji: emoji})
		}
	} else {
		removeReaction(&rm.log[i], userID, emoji)
	}
	s.mu.Unlock()

	s.notify(roomID, UpdateChange)
}

func (s *MessageStore) applyTyping(roomID, userID string, isTyping bool) {
	s.mu.Lock()
	rm := s.room(roomID)
	if isTyping {
		rm.typing[userID] = entity.TypingState{UserID: userID, UpdatedAt: time.Now()}
	} else {
		delete(rm.typing, userID)
	}
	s.mu.Unlock()

	s.notify(roomID, UpdateTyping)
}

// MarkRead tells the REST collaborator the room has been seen.
func (s *MessageStore) MarkRead(ctx context.Context, roomID string) error {
	return s.api.MarkRoomAsRead(ctx, &model.MarkRoomAsReadRequest{RoomID: roomID})
}

// Messages returns a copy of the room's ordered log for rendering.
func (s *MessageStore) Messages(roomID string) []entity.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(roomID)
	out := make([]entity.ChatMessage, len(rm.log))
	copy(out, rm.log)
	return out
}

func (s *MessageStore) HasMore(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room(roomID).hasMore
}

// TypingUsers returns the actors currently typing in the room, sweeping
// entries older than ttl to self-heal from a missed stop signal.
func (s *MessageStore) TypingUsers(roomID string, ttl time.Duration) []string {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.room(roomID)
	var users []string
	for id, state := range rm.typing {
		if state.Expired(now, ttl) {
			delete(rm.typing, id)
			continue
		}
		users = append(users, id)
	}
	return users
}

func (s *MessageStore) room(roomID string) *room {
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, typing: make(map[string]entity.TypingState)}
		s.rooms[roomID] = rm
	}
	return rm
}

func (s *MessageStore) notify(roomID string, kind UpdateKind) {
	s.mu.Lock()
	listeners := make([]UpdateListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(roomID, kind)
	}
}

func (rm *room) indexByID(id int64) int {
	if id == 0 {
		return -1
	}
	for i := range rm.log {
		if rm.log[i].ID == id {
			return i
		}
	}
	return -1
}

func (rm *room) indexByTempID(tempID int64) int {
	for i := range rm.log {
		if rm.log[i].TempID == tempID && rm.log[i].Pending {
			return i
		}
	}
	return -1
}

// replaceByID swaps the entry sharing msg's server id, preserving position.
func (rm *room) replaceByID(msg entity.ChatMessage) bool {
	i := rm.indexByID(msg.ID)
	if i < 0 {
		return false
	}

	msg.Pending = false
	msg.TempID = 0
	rm.log[i] = msg
	return true
}

// reconcilePending matches msg against an unacknowledged optimistic entry:
// by echoed client id when present, else by the (author, content, temporal
// proximity) heuristic.
func (rm *room) reconcilePending(msg entity.ChatMessage) bool {
	for i := range rm.log {
		pending := &rm.log[i]
		if !pending.Pending {
			continue
		}

		matched := false
		if msg.ClientID != "" && msg.ClientID == pending.ClientID {
			matched = true
		} else if msg.AuthorID == pending.AuthorID &&
			msg.Content == pending.Content &&
			absDuration(msg.CreatedAt.Sub(pending.CreatedAt)) <= reconcileWindow {
			matched = true
		}

		if matched {
			msg.Pending = false
			msg.TempID = 0
			rm.log[i] = msg
			return true
		}
	}
	return false
}

// insertSorted places msg at its chronological position. Live pushes are
// normally newest, so the scan starts from the tail.
func (rm *room) insertSorted(msg entity.ChatMessage) {
	i := len(rm.log)
	for i > 0 && rm.log[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}

	rm.log = append(rm.log, entity.ChatMessage{})
	copy(rm.log[i+1:], rm.log[i:])
	rm.log[i] = msg
}

func hasReaction(msg entity.ChatMessage, userID, emoji string) bool {
	for _, r := range msg.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

func removeReaction(msg *entity.ChatMessage, userID, emoji string) bool {
	for i, r := range msg.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			msg.Reactions = append(msg.Reactions[:i], msg.Reactions[i+1:]...)
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
