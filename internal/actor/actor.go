package actor

import "sync"

// Mailbox executes submitted turns strictly one at a time, in submission
// order. It stands in for a hosted actor runtime: no two turns for the same
// mailbox ever overlap, so state owned by the mailbox needs no locking.
type Mailbox struct {
	calls chan func()

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewMailbox() *Mailbox {
	m := &Mailbox{
		calls:   make(chan func()),
		stopped: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mailbox) run() {
	for {
		select {
		case fn := <-m.calls:
			fn()
		case <-m.stopped:
			return
		}
	}
}

// Do runs fn as the mailbox's next turn and waits for it to finish. After
// Stop, Do returns without running fn.
func (m *Mailbox) Do(fn func()) {
	done := make(chan struct{})
	select {
	case m.calls <- func() {
		fn()
		close(done)
	}:
	case <-m.stopped:
		return
	}
	select {
	case <-done:
	case <-m.stopped:
	}
}

func (m *Mailbox) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}
