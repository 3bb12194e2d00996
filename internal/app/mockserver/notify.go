package mockserver

import (
	"sync"
	"time"
)

// notify wakes waiters whenever a request was matched.
type notify struct {
	notify chan struct{}
	mu     sync.Mutex
}

func newNotify() *notify {
	return &notify{notify: make(chan struct{})}
}

func (n *notify) Wait(timeout time.Duration) {
	n.mu.Lock()
	ch := n.notify
	n.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
}

func (n *notify) Notify() {
	n.mu.Lock()
	close(n.notify)
	n.notify = make(chan struct{})
	n.mu.Unlock()
}
