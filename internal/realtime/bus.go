package realtime

import (
	"sync"

	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/logger"
)

// Handler receives every inbound event of one channel.
type Handler func(*model.Event)

type handlerEntry struct {
	id int
	fn Handler
}

// dispatcher is the per-channel multicast set. Handlers are invoked in
// subscription order; a panicking handler must not prevent delivery to the
// remaining ones.
type dispatcher struct {
	mu      sync.Mutex
	nextID  int
	entries []handlerEntry
}

func newDispatcher() *dispatcher {
	return &dispatcher{}
}

func (d *dispatcher) add(fn Handler) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.entries = append(d.entries, handlerEntry{id: d.nextID, fn: fn})
	return d.nextID
}

// remove deletes the handler with the given id and returns how many remain.
func (d *dispatcher) remove(id int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.entries {
		if e.id == id {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			break
		}
	}
	return len(d.entries)
}

func (d *dispatcher) dispatch(log logger.Logger, ev *model.Event) {
	d.mu.Lock()
	snapshot := make([]handlerEntry, len(d.entries))
	copy(snapshot, d.entries)
	d.mu.Unlock()

	for _, e := range snapshot {
		invoke(log, e.fn, ev)
	}
}

func invoke(log logger.Logger, fn Handler, ev *model.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Handler panicked on %s event: %v", ev.Type, r)
		}
	}()

	fn(ev)
}
