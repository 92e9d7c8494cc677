package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"PatternBoard/internal/applog"
)

type EventType string

const (
	EventElementAdded   EventType = "element_added"
	EventElementChanged EventType = "element_changed"
	EventElementRemoved EventType = "element_removed"
	EventSceneReset     EventType = "scene_reset"
	EventRegionChanged  EventType = "region_changed"
	EventArtworkSaved   EventType = "artwork_saved"
	EventArtworkDeleted EventType = "artwork_deleted"
	EventExported       EventType = "exported"
)

// Surfaces an event can originate from.
const (
	SurfaceDraw      = "draw"
	SurfaceComposite = "composite"
)

// Event describes a change to one of the surfaces. Data carries optional
// small payloads such as a storage key or an export size. Preview is a PNG
// of saved or exported artwork, sized for peers to display.
type Event struct {
	Type      EventType         `json:"type"`
	Surface   string            `json:"surface,omitempty"`
	ElementID string            `json:"element_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Preview   []byte            `json:"preview,omitempty"`
	Lamport   uint64            `json:"lamport"`
	Site      string            `json:"site"`
	At        time.Time         `json:"at"`
}

// Bus fans events out to subscribers. A nil *Bus drops everything, so
// engines can run without one.
type Bus struct {
	site  string
	clock Clock

	mu   sync.RWMutex
	subs map[int]func(Event)
	next int
}

// NewBus returns a Bus with a fresh site identity.
func NewBus() *Bus {
	return &Bus{
		site: uuid.NewString(),
		subs: make(map[int]func(Event)),
	}
}

// Site returns the identity stamped on locally published events.
func (b *Bus) Site() string {
	return b.site
}

// Subscribe registers fn and returns a function removing it. Handlers run
// synchronously on the publishing goroutine.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish stamps e with the next Lamport time and this site, then delivers
// it to every subscriber.
func (b *Bus) Publish(e Event) Event {
	if b == nil {
		return e
	}
	e.Lamport = b.clock.Tick()
	e.Site = b.site
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.deliver(e)
	return e
}

// Deliver hands a peer's event to local subscribers after advancing the
// clock past it. Events carrying our own site are ignored.
func (b *Bus) Deliver(e Event) {
	if b == nil || e.Site == b.site {
		return
	}
	b.clock.Witness(e.Lamport)
	applog.Component("bus").Debug("remote event", "type", e.Type, "site", e.Site, "lamport", e.Lamport)
	b.deliver(e)
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}
