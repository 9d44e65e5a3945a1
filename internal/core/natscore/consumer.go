package natscore

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/selector"
)

type consumerSession struct {
	conn    *Connection
	dest    core.Address
	sub     *nats.Subscription
	sel     *selector.Selector
	noLocal bool
	durable *durable

	closeOnce sync.Once
	closed    chan struct{}

	mu sync.Mutex
	// redeliver holds unlocked messages ahead of anything new on the
	// subscription.
	redeliver []*core.JsMessage
	wake      chan struct{}
}

func newConsumerSession(c *Connection, spec core.ConsumerSpec, sub *nats.Subscription, sel *selector.Selector) *consumerSession {
	return &consumerSession{
		conn:    c,
		dest:    spec.Dest,
		sub:     sub,
		sel:     sel,
		noLocal: spec.NoLocal,
		closed:  make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (cs *consumerSession) isClosed() bool {
	select {
	case <-cs.closed:
		return true
	default:
		return false
	}
}

// popRedelivery removes and returns the first held message that is due at
// now, dropping expired ones on the way. When none is due it returns the
// earliest delivery time still waiting, or the zero time if nothing is held.
func (cs *consumerSession) popRedelivery(now time.Time) (*core.JsMessage, time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var (
		due  *core.JsMessage
		next time.Time
	)
	kept := cs.redeliver[:0]
	for _, m := range cs.redeliver {
		switch {
		case m.Expired(now):
			continue
		case due == nil && m.Deliverable(now):
			due = m
			continue
		case !m.Deliverable(now):
			if at := time.UnixMilli(m.DeliveryTime); next.IsZero() || at.Before(next) {
				next = at
			}
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(cs.redeliver); i++ {
		cs.redeliver[i] = nil
	}
	cs.redeliver = kept
	if due != nil {
		return due, time.Time{}
	}
	return nil, next
}

func (cs *consumerSession) pushRedelivery(m *core.JsMessage) {
	cs.mu.Lock()
	cs.redeliver = append(cs.redeliver, m)
	cs.mu.Unlock()
	select {
	case cs.wake <- struct{}{}:
	default:
	}
}

// accept decodes a raw NATS message and applies expiry, noLocal and the
// selector. A nil message with a nil error means the message was skipped.
func (cs *consumerSession) accept(raw *nats.Msg) (*core.JsMessage, error) {
	m, err := core.DecodeMessage(raw.Data)
	if err != nil {
		cs.conn.log.Error().Err(err).Str("subject", raw.Subject).Msg("discarding undecodable message")
		return nil, nil
	}
	if m.Expired(time.Now()) {
		return nil, nil
	}
	if cs.noLocal && m.ProducerConnID == cs.conn.id {
		return nil, nil
	}
	if !cs.sel.Matches(m) {
		if !cs.dest.Topic {
			cs.conn.log.Warn().
				Str("queue", cs.dest.Name).
				Str("msgID", m.MessageID()).
				Str("selector", cs.sel.String()).
				Msg("queue message does not match selector, discarded")
		}
		return nil, nil
	}
	return m, nil
}

func (cs *consumerSession) locked(m *core.JsMessage) *lockedMessage {
	return &lockedMessage{cs: cs, msg: m}
}

func (cs *consumerSession) ReceiveNoWait() (core.LockedMessage, error) {
	if cs.isClosed() {
		return nil, core.ErrClosed
	}
	if m, _ := cs.popRedelivery(time.Now()); m != nil {
		return cs.locked(m), nil
	}
	for {
		raw, err := cs.sub.NextMsg(time.Millisecond)
		if err == nats.ErrTimeout {
			return nil, nil
		}
		if err != nil {
			return nil, cs.mapErr(err)
		}
		m, err := cs.accept(raw)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if !m.Deliverable(time.Now()) {
			cs.hold(m)
			continue
		}
		return cs.locked(m), nil
	}
}

// hold keeps a message whose delivery time has not come yet behind any
// messages already held for redelivery.
func (cs *consumerSession) hold(m *core.JsMessage) {
	cs.mu.Lock()
	cs.redeliver = append(cs.redeliver, m)
	cs.mu.Unlock()
}

func (cs *consumerSession) Receive(ctx context.Context) (core.LockedMessage, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-cs.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if cs.isClosed() {
			return nil, core.ErrClosed
		}
		m, next := cs.popRedelivery(time.Now())
		if m != nil {
			return cs.locked(m), nil
		}

		// wait no longer than the earliest held delivery time
		wctx, wcancel := ctx, context.CancelFunc(func() {})
		if !next.IsZero() {
			wctx, wcancel = context.WithDeadline(ctx, next)
		}
		raw, err := cs.nextMsg(wctx)
		held := wctx.Err() != nil && ctx.Err() == nil
		wcancel()
		if err != nil {
			if held && !cs.isClosed() {
				continue
			}
			return nil, cs.mapErr(err)
		}
		if raw == nil {
			continue
		}

		m, err = cs.accept(raw)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		if !m.Deliverable(time.Now()) {
			cs.hold(m)
			continue
		}
		return cs.locked(m), nil
	}
}

// nextMsg waits for a subscription message or a redelivery wakeup, which is
// reported as a nil message.
func (cs *consumerSession) nextMsg(ctx context.Context) (*nats.Msg, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	woken := make(chan struct{})
	go func() {
		select {
		case <-cs.wake:
			close(woken)
			cancel()
		case <-wctx.Done():
		}
	}()

	raw, err := cs.sub.NextMsgWithContext(wctx)
	if err != nil {
		select {
		case <-woken:
			if ctx.Err() == nil {
				return nil, nil
			}
		default:
		}
		return nil, err
	}
	return raw, nil
}

func (cs *consumerSession) mapErr(err error) error {
	switch {
	case cs.isClosed():
		return core.ErrClosed
	case err == context.Canceled || err == context.DeadlineExceeded:
		return err
	case err == nats.ErrConnectionClosed || err == nats.ErrBadSubscription:
		return core.ErrClosed
	}
	return errors.Wrap(core.ErrConnectionLost, err.Error())
}

func (cs *consumerSession) Close() error {
	cs.closeOnce.Do(func() {
		close(cs.closed)
		if cs.durable == nil {
			if err := cs.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
				cs.conn.log.Warn().Err(err).Str("subject", cs.sub.Subject).Msg("unsubscribe")
			}
		}
		cs.mu.Lock()
		pending := cs.redeliver
		cs.redeliver = nil
		cs.mu.Unlock()
		// unacknowledged queue messages go back for other consumers
		if !cs.dest.Topic {
			for _, m := range pending {
				if err := cs.conn.publish(context.Background(), cs.dest, m); err != nil {
					cs.conn.log.Warn().Err(err).Str("msgID", m.MessageID()).Msg("requeue on close")
				}
			}
			pending = nil
		}
		cs.conn.forget(cs, pending)
	})
	return nil
}

type lockedMessage struct {
	cs   *consumerSession
	msg  *core.JsMessage
	mu   sync.Mutex
	done bool
}

func (lm *lockedMessage) Message() *core.JsMessage {
	return lm.msg.Clone()
}

func (lm *lockedMessage) finish() bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.done {
		return false
	}
	lm.done = true
	return true
}

func (lm *lockedMessage) Delete(tran core.Transaction) error {
	if tran != nil {
		t, err := lm.cs.conn.ownTransaction(tran)
		if err != nil {
			return err
		}
		return t.addDelete(lm)
	}
	lm.finish()
	return nil
}

func (lm *lockedMessage) Unlock() error {
	if !lm.finish() {
		return nil
	}
	m := lm.msg
	m.RedeliveredCount++
	if m.RedeliveredCount >= lm.cs.conn.maxFailed {
		lm.cs.conn.moveToException(m)
		return nil
	}
	if lm.cs.isClosed() {
		switch {
		case !lm.cs.dest.Topic:
			return lm.cs.conn.publish(context.Background(), lm.cs.dest, m)
		case lm.cs.durable != nil:
			lm.cs.conn.keepForDurable(lm.cs.durable, m)
		}
		return nil
	}
	lm.cs.pushRedelivery(m)
	return nil
}
