package authclient

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuthEventType enumerates session lifecycle events.
type AuthEventType string

const (
	EventListenerRegistered AuthEventType = "auth.listener.registered"
	EventUserAdded          AuthEventType = "auth.user.added"
	EventUserLoggedIn       AuthEventType = "auth.user.logged_in"
	EventUserLoggedOut      AuthEventType = "auth.user.logged_out"
	EventUserLinked         AuthEventType = "auth.user.linked"
	EventUserRemoved        AuthEventType = "auth.user.removed"
	EventActiveUserChanged  AuthEventType = "auth.active_user.changed"
)

// AuthEvent carries the minimal payload for one lifecycle event. User is set
// for per-user events; CurrentActiveUser/PreviousActiveUser are set for
// EventActiveUserChanged and may each be nil.
type AuthEvent struct {
	Type               AuthEventType
	User               *User
	CurrentActiveUser  *User
	PreviousActiveUser *User
	OccurredAt         time.Time
}

// AuthListener consumes auth events. Synchronous listeners run inline before
// the triggering operation returns; asynchronous listeners run on a dispatch
// goroutine with no ordering guarantee relative to each other.
type AuthListener interface {
	OnAuthEvent(event AuthEvent)
}

// AuthListenerFunc adapts a function to the AuthListener interface.
type AuthListenerFunc func(event AuthEvent)

// OnAuthEvent implements AuthListener.
func (f AuthListenerFunc) OnAuthEvent(event AuthEvent) {
	if f == nil {
		return
	}
	f(event)
}

// dispatchItem targets a single listener when target is non-nil, otherwise
// every async listener registered at delivery time.
type dispatchItem struct {
	event  AuthEvent
	target AuthListener
}

// eventDispatcher fans events out to the two listener registries. Async
// delivery runs on one goroutine fed by a bounded channel; the channel is
// drained on close so accepted events are not lost.
type eventDispatcher struct {
	mu        sync.Mutex
	syncList  []AuthListener
	asyncList []AuthListener

	ch        chan dispatchItem
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

const defaultEventBuffer = 16

func newEventDispatcher(buffer int) *eventDispatcher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	d := &eventDispatcher{
		ch:   make(chan dispatchItem, buffer),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case item := <-d.ch:
			d.deliverAsync(item)
		case <-d.done:
			for {
				select {
				case item := <-d.ch:
					d.deliverAsync(item)
				default:
					return
				}
			}
		}
	}
}

func (d *eventDispatcher) deliverAsync(item dispatchItem) {
	if item.target != nil {
		item.target.OnAuthEvent(item.event)
		return
	}
	d.mu.Lock()
	listeners := append([]AuthListener(nil), d.asyncList...)
	d.mu.Unlock()
	for _, l := range listeners {
		l.OnAuthEvent(item.event)
	}
}

// addSync registers a synchronous listener and hands it the synthetic
// registration event inline.
func (d *eventDispatcher) addSync(l AuthListener, registered AuthEvent) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.syncList = append(d.syncList, l)
	d.mu.Unlock()
	l.OnAuthEvent(registered)
}

// addAsync registers an asynchronous listener; the synthetic registration
// event is queued for that listener only.
func (d *eventDispatcher) addAsync(l AuthListener, registered AuthEvent) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.asyncList = append(d.asyncList, l)
	d.mu.Unlock()
	d.enqueue(dispatchItem{event: registered, target: l})
}

// remove deregisters a listener from both registries.
func (d *eventDispatcher) remove(l AuthListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncList = removeListener(d.syncList, l)
	d.asyncList = removeListener(d.asyncList, l)
}

func removeListener(listeners []AuthListener, l AuthListener) []AuthListener {
	out := listeners[:0]
	for _, candidate := range listeners {
		if candidate != l {
			out = append(out, candidate)
		}
	}
	return out
}

// dispatch delivers the event inline to synchronous listeners in registration
// order, then queues it for the async registry.
func (d *eventDispatcher) dispatch(event AuthEvent) {
	if d.closed.Load() {
		return
	}
	d.mu.Lock()
	listeners := append([]AuthListener(nil), d.syncList...)
	d.mu.Unlock()
	for _, l := range listeners {
		l.OnAuthEvent(event)
	}
	d.enqueue(dispatchItem{event: event})
}

func (d *eventDispatcher) enqueue(item dispatchItem) {
	if d.closed.Load() {
		return
	}
	select {
	case d.ch <- item:
	case <-d.done:
	}
}

func (d *eventDispatcher) close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
