// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/tomb.v2"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// MsgConsumerImpl receives messages from one destination, either through
// the Receive calls or by handing them to a message listener.
type MsgConsumerImpl struct {
	session *SessionImpl
	dest    jms20subset.Destination
	spec    core.ConsumerSpec
	cs      core.ConsumerSession
	log     zerolog.Logger

	mu       sync.Mutex
	listener jms20subset.MessageListener
	delivery *tomb.Tomb
	closed   bool
	closedCh chan struct{}
}

func newConsumer(sess *SessionImpl, dest jms20subset.Destination, spec core.ConsumerSpec, cs core.ConsumerSession) *MsgConsumerImpl {
	l := sess.log.With().Str("consumer", spec.Dest.String())
	if spec.Selector != "" {
		l = l.Str("selector", spec.Selector)
	}
	return &MsgConsumerImpl{
		session:  sess,
		dest:     dest,
		spec:     spec,
		cs:       cs,
		log:      l.Logger(),
		closedCh: make(chan struct{}),
	}
}

func (consumer *MsgConsumerImpl) checkOpen() jms20subset.JMSException {
	consumer.mu.Lock()
	closed := consumer.closed
	consumer.mu.Unlock()
	if closed {
		return illegalState("consumer closed")
	}
	return consumer.session.checkOpen()
}

func (consumer *MsgConsumerImpl) checkSynchronous(op string) jms20subset.JMSException {
	if ex := consumer.checkOpen(); ex != nil {
		return ex
	}
	consumer.mu.Lock()
	hasListener := consumer.listener != nil
	consumer.mu.Unlock()
	if hasListener {
		return illegalState(op + " is not allowed on a consumer with a message listener")
	}
	return consumer.session.checkSynchronousUsage(op)
}

// Receive waits until a message arrives or the consumer is closed, in which
// case it returns nil.
func (consumer *MsgConsumerImpl) Receive() (jms20subset.Message, jms20subset.JMSException) {
	return consumer.ReceiveWithTimeout(0)
}

// ReceiveWithTimeout waits up to timeout milliseconds for a message and
// returns nil if none arrives. A timeout of 0 waits forever. While the
// connection is stopped no message is returned.
func (consumer *MsgConsumerImpl) ReceiveWithTimeout(timeout int64) (jms20subset.Message, jms20subset.JMSException) {
	if ex := consumer.checkSynchronous("Receive"); ex != nil {
		return nil, ex
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
	}

	if !consumer.session.waitStarted(ctx, consumer.closedCh) {
		return nil, nil
	}
	lm, err := consumer.cs.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil || consumer.isClosed() {
			return nil, nil
		}
		return nil, fromCoreError(err, "receive from "+consumer.spec.Dest.String())
	}
	return consumer.received(lm)
}

// ReceiveNoWait returns a message if one is immediately available, or nil.
func (consumer *MsgConsumerImpl) ReceiveNoWait() (jms20subset.Message, jms20subset.JMSException) {
	if ex := consumer.checkSynchronous("ReceiveNoWait"); ex != nil {
		return nil, ex
	}
	if !consumer.session.isStarted() {
		return nil, nil
	}
	lm, err := consumer.cs.ReceiveNoWait()
	if err != nil {
		return nil, fromCoreError(err, "receive from "+consumer.spec.Dest.String())
	}
	if lm == nil {
		return nil, nil
	}
	return consumer.received(lm)
}

func (consumer *MsgConsumerImpl) inbound(lm core.LockedMessage) jms20subset.Message {
	jm := lm.Message()
	if jm.Destination == nil {
		a := consumer.spec.Dest
		jm.Destination = &a
	}
	consumer.session.conn.metrics.received.WithLabelValues(consumer.spec.Dest.Name).Inc()
	return InboundMessagePath(jm, consumer.session)
}

func (consumer *MsgConsumerImpl) received(lm core.LockedMessage) (jms20subset.Message, jms20subset.JMSException) {
	msg := consumer.inbound(lm)
	if ex := consumer.session.consumed(lm); ex != nil {
		return nil, ex
	}
	consumer.log.Debug().Str("msgID", msg.GetJMSMessageID()).Msg("received")
	return msg, nil
}

func (consumer *MsgConsumerImpl) GetMessageListener() jms20subset.MessageListener {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.listener
}

// SetMessageListener delivers future messages to listener on a goroutine
// owned by the consumer. A nil listener stops delivery and makes the
// consumer synchronous again.
func (consumer *MsgConsumerImpl) SetMessageListener(listener jms20subset.MessageListener) jms20subset.JMSException {
	if ex := consumer.checkOpen(); ex != nil {
		return ex
	}

	consumer.mu.Lock()
	old := consumer.delivery
	consumer.listener = listener
	if listener != nil {
		if old == nil {
			t := &tomb.Tomb{}
			consumer.delivery = t
			consumer.mu.Unlock()
			consumer.session.moveToAsync(consumer, true)
			t.Go(func() error {
				return consumer.deliveryLoop(t)
			})
			return nil
		}
		consumer.mu.Unlock()
		return nil
	}
	consumer.delivery = nil
	consumer.mu.Unlock()

	if old != nil {
		consumer.stopDelivery(old)
		consumer.session.moveToAsync(consumer, false)
	}
	return nil
}

// stopDelivery ends a delivery goroutine and waits for it. A listener of
// the session only tells it to stop: it may be that goroutine, or one
// waiting for the delivery lock the listener holds.
func (consumer *MsgConsumerImpl) stopDelivery(t *tomb.Tomb) {
	t.Kill(nil)
	if consumer.session.listener.isCaller() {
		return
	}
	if err := t.Wait(); err != nil {
		consumer.log.Warn().Err(err).Msg("delivery stopped")
	}
}

func (consumer *MsgConsumerImpl) deliveryLoop(t *tomb.Tomb) error {
	ctx := t.Context(nil)
	sess := consumer.session
	gid := goroutineID()
	for {
		if !sess.waitStarted(ctx, consumer.closedCh) {
			return nil
		}
		lm, err := consumer.cs.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || consumer.isClosed() {
				return nil
			}
			sess.conn.notifyException(fromCoreError(err, "receive from "+consumer.spec.Dest.String()))
			return nil
		}
		consumer.dispatch(ctx, gid, lm)
	}
}

// dispatch runs the listener for one message under the session delivery
// lock and then settles the message according to the acknowledge mode.
func (consumer *MsgConsumerImpl) dispatch(ctx context.Context, gid uint64, lm core.LockedMessage) {
	sess := consumer.session
	for {
		if !sess.waitStarted(ctx, consumer.closedCh) {
			consumer.release(lm)
			return
		}
		sess.deliveryLock.Lock()
		if sess.isStarted() {
			break
		}
		sess.deliveryLock.Unlock()
	}
	defer sess.deliveryLock.Unlock()

	listener := consumer.GetMessageListener()
	if listener == nil || ctx.Err() != nil {
		consumer.release(lm)
		return
	}

	msg := consumer.inbound(lm)
	if sess.ackMode != jms20subset.JMSContextAUTOACKNOWLEDGE {
		if ex := sess.preConsume(lm); ex != nil {
			sess.conn.notifyException(ex)
			return
		}
	}

	sess.recoverRequested.Store(false)
	sess.listener.enter(gid)
	panicked := consumer.invoke(listener, msg)
	sess.listener.leave()

	var ex jms20subset.JMSException
	switch sess.ackMode {
	case jms20subset.JMSContextAUTOACKNOWLEDGE:
		if panicked || sess.recoverRequested.Swap(false) {
			ex = fromCoreError(lm.Unlock(), "unlock message")
		} else {
			ex = fromCoreError(lm.Delete(nil), "delete message")
		}
	case jms20subset.JMSContextDUPSOKACKNOWLEDGE:
		if panicked {
			ex = sess.rollbackTransaction()
		} else {
			ex = sess.postConsume()
		}
	}
	if ex != nil {
		sess.conn.notifyException(ex)
	}
}

func (consumer *MsgConsumerImpl) invoke(listener jms20subset.MessageListener, msg jms20subset.Message) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			consumer.session.conn.metrics.listenerPanics.Inc()
			consumer.log.Error().Interface("panic", r).Str("msgID", msg.GetJMSMessageID()).Msg("message listener panicked")
			consumer.session.conn.notifyException(newException(jms20subset.JMSExceptionKind,
				"message listener panicked", errors.Errorf("%v", r)))
		}
	}()
	listener.OnMessage(msg)
	return false
}

// release returns an undelivered message to the destination.
func (consumer *MsgConsumerImpl) release(lm core.LockedMessage) {
	if err := lm.Unlock(); err != nil {
		consumer.log.Warn().Err(err).Msg("unlock undelivered message")
	}
}

func (consumer *MsgConsumerImpl) isClosed() bool {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.closed
}

func (consumer *MsgConsumerImpl) GetMessageSelector() string {
	return consumer.spec.Selector
}

func (consumer *MsgConsumerImpl) GetNoLocal() bool {
	return consumer.spec.NoLocal
}

func (consumer *MsgConsumerImpl) GetDestination() jms20subset.Destination {
	return consumer.dest
}

// Close stops delivery and releases the consumer. Work outstanding on a
// DUPS_OK session is committed.
func (consumer *MsgConsumerImpl) Close() jms20subset.JMSException {
	return consumer.closeConsumer()
}

func (consumer *MsgConsumerImpl) closeConsumer() jms20subset.JMSException {
	consumer.mu.Lock()
	if consumer.closed {
		consumer.mu.Unlock()
		return nil
	}
	consumer.closed = true
	close(consumer.closedCh)
	t := consumer.delivery
	consumer.delivery = nil
	consumer.mu.Unlock()

	if t != nil {
		consumer.stopDelivery(t)
	}

	ex := fromCoreError(consumer.cs.Close(), "close consumer")
	consumer.session.removeConsumer(consumer)

	if consumer.session.ackMode == jms20subset.JMSContextDUPSOKACKNOWLEDGE {
		if cex := consumer.session.commitTransaction(); cex != nil {
			if ex == nil {
				return cex
			}
			consumer.log.Warn().Str("reason", cex.GetReason()).Msg("commit on close")
		}
	}
	return ex
}
