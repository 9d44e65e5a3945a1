package memcore

import (
	"context"
	"sync"

	"github.com/ChipArtem/sibjms/internal/core"
)

// transaction buffers sends until commit and holds deletes so that rollback
// can return the messages for redelivery.
type transaction struct {
	conn *Connection

	mu      sync.Mutex
	done    bool
	sends   []pendingSend
	deletes []*lockedMessage
}

type pendingSend struct {
	dest core.Address
	msg  *core.JsMessage
}

func (t *transaction) addSend(dest core.Address, msg *core.JsMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return core.ErrTransactionCompleted
	}
	t.sends = append(t.sends, pendingSend{dest: dest, msg: msg})
	return nil
}

func (t *transaction) addDelete(lm *lockedMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return core.ErrTransactionCompleted
	}

	e := t.conn.e
	e.mu.Lock()
	lm.pending = true
	e.mu.Unlock()

	t.deletes = append(t.deletes, lm)
	return nil
}

func (t *transaction) finish() ([]pendingSend, []*lockedMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, nil, core.ErrTransactionCompleted
	}
	t.done = true
	sends, deletes := t.sends, t.deletes
	t.sends, t.deletes = nil, nil
	t.conn.forgetTransaction(t)
	return sends, deletes, nil
}

func (t *transaction) Commit(ctx context.Context) error {
	sends, deletes, err := t.finish()
	if err != nil {
		return err
	}

	e := t.conn.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, lm := range deletes {
		lm.deleteLocked()
	}
	var firstErr error
	for _, ps := range sends {
		if err := e.route(ps.dest, ps.msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *transaction) Rollback(ctx context.Context) error {
	_, deletes, err := t.finish()
	if err != nil {
		return err
	}

	e := t.conn.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, lm := range deletes {
		lm.unlockLocked()
	}
	return nil
}
