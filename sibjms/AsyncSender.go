// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/tomb.v2"

	"github.com/ChipArtem/sibjms/jms20subset"
)

// asyncSend is one send queued with a completion listener.
type asyncSend struct {
	producer *MsgProducerImpl
	dest     jms20subset.Destination
	msg      jmsMessage
	settings sendSettings
	listener jms20subset.CompletionListener
}

// asyncSender performs a session's asynchronous sends in order on a single
// goroutine and calls their completion listeners.
type asyncSender struct {
	sess  *SessionImpl
	t     tomb.Tomb
	queue chan *asyncSend
	gid   uint64

	mu      sync.Mutex
	idle    *sync.Cond
	pending int
	closing bool
}

func newAsyncSender(sess *SessionImpl, size int) *asyncSender {
	a := &asyncSender{
		sess:  sess,
		queue: make(chan *asyncSend, size),
	}
	a.idle = sync.NewCond(&a.mu)
	a.t.Go(a.run)
	return a
}

// enqueue blocks while the queue is full.
func (a *asyncSender) enqueue(op *asyncSend) jms20subset.JMSException {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return illegalState("session closed")
	}
	a.pending++
	a.mu.Unlock()

	a.sess.conn.metrics.asyncDepth.Inc()
	a.queue <- op
	return nil
}

func (a *asyncSender) run() error {
	a.gid = goroutineID()
	for {
		select {
		case op := <-a.queue:
			a.process(op)
		case <-a.t.Dying():
			return a.drain()
		}
	}
}

// drain completes every send accepted before close.
func (a *asyncSender) drain() error {
	for {
		a.mu.Lock()
		n := a.pending
		a.mu.Unlock()
		if n == 0 {
			return nil
		}
		a.process(<-a.queue)
	}
}

func (a *asyncSender) process(op *asyncSend) {
	a.sess.conn.metrics.asyncDepth.Dec()
	defer a.done()

	ex := op.producer.sendNow(op.dest, op.msg, op.settings)

	a.sess.completion.enter(a.gid)
	defer a.sess.completion.leave()
	defer func() {
		if r := recover(); r != nil {
			a.sess.log.Error().Interface("panic", r).Msg("completion listener panicked")
			a.sess.conn.notifyException(newException(jms20subset.JMSExceptionKind,
				"completion listener panicked", errors.Errorf("%v", r)))
		}
	}()

	if ex != nil {
		op.listener.OnException(op.msg, ex)
		return
	}
	op.listener.OnCompletion(op.msg)
}

func (a *asyncSender) done() {
	a.mu.Lock()
	a.pending--
	if a.pending == 0 {
		a.idle.Broadcast()
	}
	a.mu.Unlock()
}

// waitForCompletion blocks until no send is queued or in progress.
func (a *asyncSender) waitForCompletion() {
	a.mu.Lock()
	for a.pending > 0 {
		a.idle.Wait()
	}
	a.mu.Unlock()
}

// close stops accepting sends, waits for the queued ones and stops the
// worker goroutine.
func (a *asyncSender) close() {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()

	a.t.Kill(nil)
	if err := a.t.Wait(); err != nil {
		a.sess.log.Warn().Err(err).Msg("async sender")
	}
}
