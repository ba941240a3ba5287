package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/quicknotes/internal/debounce"
)

const (
	// RefreshEventNoteChanged tells a client its display list is stale.
	RefreshEventNoteChanged = "note-change"
	refreshEventHeartbeat   = "heartbeat"

	// The original UI re-rendered at most once per 250ms of quiet after a
	// burst of changes; the notifier keeps the same window.
	defaultRefreshDelay = 250 * time.Millisecond
)

type RefreshMessage struct {
	UserID    string
	EventType string
	NoteIDs   []string
	Timestamp time.Time
}

// RefreshDispatcher fans refresh messages out to the per-user subscribers
// currently holding an events stream open.
type RefreshDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*refreshSubscriber
	nextID      int64
	bufferSize  int
}

type refreshSubscriber struct {
	id     int64
	stream chan RefreshMessage
}

func NewRefreshDispatcher() *RefreshDispatcher {
	return &RefreshDispatcher{
		subscribers: make(map[string]map[int64]*refreshSubscriber),
		bufferSize:  16,
	}
}

func (d *RefreshDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RefreshMessage, func()) {
	if userID == "" {
		ch := make(chan RefreshMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &refreshSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RefreshMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(userID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RefreshDispatcher) Publish(message RefreshMessage) {
	if message.UserID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*refreshSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RefreshDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RefreshDispatcher) registerSubscriber(userID string, subscriber *refreshSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*refreshSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RefreshDispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}

// refreshNotifier coalesces mutation bursts into a single note-change message
// per user, mirroring the debounced re-render of the original UI.
type refreshNotifier struct {
	mu         sync.Mutex
	dispatcher *RefreshDispatcher
	delay      time.Duration
	clock      func() time.Time
	pending    map[string]*pendingRefresh
}

type pendingRefresh struct {
	debouncer *debounce.Debouncer
	noteIDs   []string
}

func newRefreshNotifier(dispatcher *RefreshDispatcher, delay time.Duration, clock func() time.Time) *refreshNotifier {
	if delay <= 0 {
		delay = defaultRefreshDelay
	}
	if clock == nil {
		clock = time.Now
	}
	return &refreshNotifier{
		dispatcher: dispatcher,
		delay:      delay,
		clock:      clock,
		pending:    make(map[string]*pendingRefresh),
	}
}

// NoteChanged records that the user's display list is stale and schedules a
// debounced note-change publish carrying the ids touched during the burst.
func (n *refreshNotifier) NoteChanged(userID string, noteIDs ...string) {
	if userID == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.pending[userID]
	if !ok {
		entry = &pendingRefresh{debouncer: debounce.New(n.delay)}
		n.pending[userID] = entry
	}
	entry.noteIDs = append(entry.noteIDs, noteIDs...)
	// Triggering under the lock keeps a concurrent flush from pairing a
	// stale debouncer with a freshly created entry.
	entry.debouncer.Trigger(func() {
		n.flush(userID)
	})
}

func (n *refreshNotifier) flush(userID string) {
	n.mu.Lock()
	entry, ok := n.pending[userID]
	if !ok {
		n.mu.Unlock()
		return
	}
	noteIDs := entry.noteIDs
	delete(n.pending, userID)
	n.mu.Unlock()

	n.dispatcher.Publish(RefreshMessage{
		UserID:    userID,
		EventType: RefreshEventNoteChanged,
		NoteIDs:   noteIDs,
		Timestamp: n.clock().UTC(),
	})
}

// Stop cancels every pending debounced publish.
func (n *refreshNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for userID, entry := range n.pending {
		entry.debouncer.Stop()
		delete(n.pending, userID)
	}
}
