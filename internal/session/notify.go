package session

import "sync"

// notifier broadcasts state changes to subscribed watchers. Sends never
// block: a watcher that falls behind misses intermediate events and catches
// up from the next one, which is fine for re-render hints.
type notifier struct {
	mu       sync.Mutex
	watchers map[int]chan State
	nextID   int
	closed   bool
}

func (n *notifier) subscribe() (<-chan State, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		ch := make(chan State)
		close(ch)
		return ch, func() {}
	}

	if n.watchers == nil {
		n.watchers = make(map[int]chan State)
	}
	id := n.nextID
	n.nextID++

	ch := make(chan State, 8)
	n.watchers[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.watchers[id]; ok {
			delete(n.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (n *notifier) broadcast(state State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.watchers {
		select {
		case ch <- state:
		default:
		}
	}
}

// closeAll closes every watcher channel and rejects future subscriptions.
// Called when the session is removed from its store.
func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.watchers {
		delete(n.watchers, id)
		close(ch)
	}
}
