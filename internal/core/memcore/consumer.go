package memcore

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/selector"
)

type consumerSession struct {
	conn    *Connection
	q       *queue
	sel     *selector.Selector
	topic   string
	durable *durable

	closeOnce sync.Once
	closed    chan struct{}

	// held tracks messages handed out and not yet deleted or unlocked.
	// Guarded by the engine lock.
	held map[*entry]*lockedMessage
}

func (cs *consumerSession) isClosed() bool {
	select {
	case <-cs.closed:
		return true
	default:
		return false
	}
}

// tryLock attempts to lock a message. Caller holds the engine lock.
func (cs *consumerSession) tryLock() (*lockedMessage, <-chan struct{}, time.Time, error) {
	if cs.q.deleted {
		return nil, nil, time.Time{}, errors.Wrap(core.ErrDestinationNotFound, cs.q.name)
	}
	en, wake := cs.conn.e.lock(cs.q, cs.sel)
	if en == nil {
		return nil, cs.q.notify, wake, nil
	}
	lm := &lockedMessage{cs: cs, en: en, msg: decodeEntry(en)}
	cs.held[en] = lm
	return lm, nil, time.Time{}, nil
}

func (cs *consumerSession) ReceiveNoWait() (core.LockedMessage, error) {
	if cs.isClosed() {
		return nil, core.ErrClosed
	}
	e := cs.conn.e
	e.mu.Lock()
	defer e.mu.Unlock()

	lm, _, _, err := cs.tryLock()
	if lm == nil || err != nil {
		return nil, err
	}
	return lm, nil
}

func (cs *consumerSession) Receive(ctx context.Context) (core.LockedMessage, error) {
	e := cs.conn.e
	for {
		if cs.isClosed() {
			return nil, core.ErrClosed
		}

		e.mu.Lock()
		lm, notify, wake, err := cs.tryLock()
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if lm != nil {
			return lm, nil
		}

		var timer *time.Timer
		var wakeC <-chan time.Time
		if !wake.IsZero() {
			timer = time.NewTimer(time.Until(wake))
			wakeC = timer.C
		}

		select {
		case <-notify:
		case <-wakeC:
		case <-cs.closed:
			err = core.ErrClosed
		case <-ctx.Done():
			err = ctx.Err()
		}
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			return nil, err
		}
	}
}

// Close releases held messages without counting a failed delivery and
// detaches the session from its queue.
func (cs *consumerSession) Close() error {
	cs.closeOnce.Do(func() {
		close(cs.closed)

		e := cs.conn.e
		e.mu.Lock()
		for en, lm := range cs.held {
			if !lm.pending {
				e.unlock(cs.q, en, false)
			}
		}
		cs.held = map[*entry]*lockedMessage{}
		cs.q.consumers--
		if cs.topic != "" {
			if t, ok := e.topics[cs.topic]; ok {
				delete(t.subs, cs.q)
			}
		}
		if cs.durable != nil {
			cs.durable.active = false
		}
		e.mu.Unlock()

		cs.conn.forget(cs)
	})
	return nil
}

type lockedMessage struct {
	cs      *consumerSession
	en      *entry
	msg     *core.JsMessage
	pending bool
	done    bool
}

func (lm *lockedMessage) Message() *core.JsMessage {
	return lm.msg
}

func (lm *lockedMessage) Delete(tran core.Transaction) error {
	if tran != nil {
		t, err := lm.cs.conn.ownTransaction(tran)
		if err != nil {
			return err
		}
		return t.addDelete(lm)
	}

	e := lm.cs.conn.e
	e.mu.Lock()
	defer e.mu.Unlock()
	lm.deleteLocked()
	return nil
}

// deleteLocked removes the entry. Caller holds the engine lock.
func (lm *lockedMessage) deleteLocked() {
	if lm.done {
		return
	}
	lm.done = true
	lm.cs.q.remove(lm.en)
	delete(lm.cs.held, lm.en)
}

func (lm *lockedMessage) Unlock() error {
	e := lm.cs.conn.e
	e.mu.Lock()
	defer e.mu.Unlock()
	lm.unlockLocked()
	return nil
}

// unlockLocked releases the entry for redelivery. Caller holds the engine
// lock.
func (lm *lockedMessage) unlockLocked() {
	if lm.done {
		return
	}
	lm.done = true
	delete(lm.cs.held, lm.en)
	lm.cs.conn.e.unlock(lm.cs.q, lm.en, true)
}

type browserSession struct {
	snapshot []*core.JsMessage
	pos      int
}

func (b *browserSession) Next() (*core.JsMessage, error) {
	if b.pos >= len(b.snapshot) {
		return nil, nil
	}
	m := b.snapshot[b.pos]
	b.pos++
	return m, nil
}

func (b *browserSession) Close() error {
	b.snapshot = nil
	return nil
}
