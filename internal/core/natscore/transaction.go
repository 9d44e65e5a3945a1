package natscore

import (
	"context"
	"sync"

	"github.com/ChipArtem/sibjms/internal/core"
)

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

// Commit publishes the buffered sends. A connection that is down at commit
// time fails the whole unit of work and its receives are rolled back.
func (t *transaction) Commit(ctx context.Context) error {
	if err := t.conn.checkOpen(); err != nil {
		if rerr := t.Rollback(ctx); rerr != nil {
			t.conn.log.Warn().Err(rerr).Msg("rollback after failed commit")
		}
		return err
	}
	sends, deletes, err := t.finish()
	if err != nil {
		return err
	}
	for _, lm := range deletes {
		lm.finish()
	}
	for _, ps := range sends {
		if err := t.conn.publish(ctx, ps.dest, ps.msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	_, deletes, err := t.finish()
	if err != nil {
		return err
	}
	for _, lm := range deletes {
		lm.Unlock()
	}
	return nil
}
