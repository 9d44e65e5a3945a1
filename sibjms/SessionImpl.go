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
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nuid"
	"github.com/rs/zerolog"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

type sessionState int

const (
	sessionStopped sessionState = iota
	sessionStarted
	sessionClosed
)

// A warning is logged each time a session reaches another multiple of this
// many producers or consumers.
const childWarningInterval = 100

// SessionImpl is a single-threaded context for producing and consuming
// messages.
type SessionImpl struct {
	conn    *ConnectionImpl
	id      string
	ackMode int
	log     zerolog.Logger

	mu             sync.Mutex
	state          sessionState
	startGate      chan struct{}
	closedCh       chan struct{}
	producers      map[*MsgProducerImpl]struct{}
	syncConsumers  map[*MsgConsumerImpl]struct{}
	asyncConsumers map[*MsgConsumerImpl]struct{}
	browsers       map[*QueueBrowserImpl]struct{}
	producerCount  int
	consumerCount  int
	sender         *asyncSender
	closing        bool
	closeDone      chan struct{}

	tranMu                           sync.Mutex
	tran                             core.Transaction
	uncommittedReceiveCount          int
	rolledBackDueToConnectionFailure bool

	// deliveryLock is held while a message listener runs.
	deliveryLock     sync.Mutex
	listener         callbackOwner
	completion       callbackOwner
	recoverRequested atomic.Bool

	idStem    []byte
	idCounter atomic.Uint64
}

func newSession(conn *ConnectionImpl, ackMode int) *SessionImpl {
	id := nuid.Next()
	return &SessionImpl{
		conn:           conn,
		id:             id,
		ackMode:        ackMode,
		log:            conn.log.With().Str("session", id).Int("ackMode", ackMode).Logger(),
		startGate:      make(chan struct{}),
		closedCh:       make(chan struct{}),
		closeDone:      make(chan struct{}),
		producers:      map[*MsgProducerImpl]struct{}{},
		syncConsumers:  map[*MsgConsumerImpl]struct{}{},
		asyncConsumers: map[*MsgConsumerImpl]struct{}{},
		browsers:       map[*QueueBrowserImpl]struct{}{},
		idStem:         conn.core.UniqueID(),
	}
}

func (sess *SessionImpl) checkOpen() jms20subset.JMSException {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionClosed {
		return illegalState("session closed")
	}
	return nil
}

func (sess *SessionImpl) isStarted() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state == sessionStarted
}

func (sess *SessionImpl) start() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionStopped {
		sess.state = sessionStarted
		close(sess.startGate)
	}
}

// inCallback reports whether the caller is this session's message listener
// or completion listener.
func (sess *SessionImpl) inCallback() bool {
	return sess.listener.isCaller() || sess.completion.isCaller()
}

// stop returns once no message listener of this session is running. It must
// not be called from one of them.
func (sess *SessionImpl) stop() {
	sess.mu.Lock()
	if sess.state == sessionStarted {
		sess.state = sessionStopped
		sess.startGate = make(chan struct{})
	}
	sess.mu.Unlock()

	sess.deliveryLock.Lock()
	sess.deliveryLock.Unlock()
}

// waitStarted blocks until the session is started. It returns false when
// the session closes, done is closed or ctx ends first.
func (sess *SessionImpl) waitStarted(ctx context.Context, done <-chan struct{}) bool {
	for {
		sess.mu.Lock()
		state, gate := sess.state, sess.startGate
		sess.mu.Unlock()

		switch state {
		case sessionStarted:
			return true
		case sessionClosed:
			return false
		}

		select {
		case <-gate:
		case <-sess.closedCh:
			return false
		case <-done:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (sess *SessionImpl) GetAcknowledgeMode() int {
	return sess.ackMode
}

func (sess *SessionImpl) GetTransacted() bool {
	return sess.ackMode == jms20subset.JMSContextSESSIONTRANSACTED
}

// nextMessageID returns a 24 byte ID: the connection-unique stem followed by
// a big-endian counter.
func (sess *SessionImpl) nextMessageID() []byte {
	id := make([]byte, 0, len(sess.idStem)+8)
	id = append(id, sess.idStem...)
	return binary.BigEndian.AppendUint64(id, sess.idCounter.Add(1))
}

func (sess *SessionImpl) CreateMessage() (jms20subset.Message, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	msg := newMessageImpl(core.BodyNull)
	return &msg, nil
}

func (sess *SessionImpl) CreateBytesMessage() (jms20subset.BytesMessage, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	return newBytesMessage(sess.conn.wontModify), nil
}

func (sess *SessionImpl) CreateTextMessage() (jms20subset.TextMessage, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	return newTextMessage(nil), nil
}

func (sess *SessionImpl) CreateTextMessageWithString(txt string) (jms20subset.TextMessage, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	return newTextMessage(&txt), nil
}

func (sess *SessionImpl) CreateQueue(queueName string) (jms20subset.Queue, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	if queueName == "" {
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "queue name must not be empty", nil)
	}
	return &QueueImpl{queueName: queueName}, nil
}

func (sess *SessionImpl) CreateTopic(topicName string) (jms20subset.Topic, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	if topicName == "" {
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "topic name must not be empty", nil)
	}
	return &TopicImpl{topicName: topicName}, nil
}

func (sess *SessionImpl) CreateTemporaryQueue() (jms20subset.TemporaryQueue, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	a, err := sess.conn.core.CreateTemporaryQueue()
	if err != nil {
		return nil, fromCoreError(err, "create temporary queue")
	}
	return &TemporaryQueueImpl{
		QueueImpl: QueueImpl{queueName: a.Name, busName: a.BusName},
		conn:      sess.conn,
	}, nil
}

// CreateProducer creates a producer for dest. A nil dest creates an
// unidentified producer that is given a destination on each send.
func (sess *SessionImpl) CreateProducer(dest jms20subset.Destination) (jms20subset.MessageProducer, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	producer, ex := newProducer(sess, dest)
	if ex != nil {
		return nil, ex
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionClosed {
		return nil, illegalState("session closed")
	}
	sess.producers[producer] = struct{}{}
	sess.producerCount++
	if sess.producerCount%childWarningInterval == 0 {
		sess.log.Warn().Int("producers", sess.producerCount).Msg("session has created many producers")
	}
	return producer, nil
}

func (sess *SessionImpl) CreateConsumer(dest jms20subset.Destination) (jms20subset.MessageConsumer, jms20subset.JMSException) {
	return sess.CreateConsumerWithSelector(dest, "", false)
}

func (sess *SessionImpl) CreateConsumerWithSelector(dest jms20subset.Destination, selector string, noLocal bool) (jms20subset.MessageConsumer, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	a, ex := addressOf(dest)
	if ex != nil {
		return nil, ex
	}
	return sess.createConsumer(dest, core.ConsumerSpec{Dest: a, Selector: selector, NoLocal: noLocal})
}

// CreateDurableSubscriber creates a consumer on a durable subscription,
// which keeps collecting messages while no consumer is attached. The
// connection must have a client ID.
func (sess *SessionImpl) CreateDurableSubscriber(topic jms20subset.Topic, name string, selector string, noLocal bool) (jms20subset.MessageConsumer, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	if topic == nil {
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "topic is nil", nil)
	}
	clientID := sess.conn.GetClientID()
	if clientID == "" {
		return nil, illegalState("a client ID is required for durable subscriptions")
	}
	subName, ex := CoreDurableSubName(clientID, name)
	if ex != nil {
		return nil, ex
	}
	a, ex := addressOf(topic)
	if ex != nil {
		return nil, ex
	}
	return sess.createConsumer(topic, core.ConsumerSpec{Dest: a, Selector: selector, NoLocal: noLocal, DurableName: subName})
}

func (sess *SessionImpl) createConsumer(dest jms20subset.Destination, spec core.ConsumerSpec) (jms20subset.MessageConsumer, jms20subset.JMSException) {
	cs, err := sess.conn.core.CreateConsumerSession(spec)
	if err != nil {
		return nil, fromCoreError(err, "create consumer on "+spec.Dest.String())
	}
	consumer := newConsumer(sess, dest, spec, cs)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionClosed {
		cs.Close()
		return nil, illegalState("session closed")
	}
	sess.syncConsumers[consumer] = struct{}{}
	sess.consumerCount++
	if sess.consumerCount%childWarningInterval == 0 {
		sess.log.Warn().Int("consumers", sess.consumerCount).Msg("session has created many consumers")
	}
	return consumer, nil
}

func (sess *SessionImpl) CreateBrowser(queue jms20subset.Queue, selector string) (jms20subset.QueueBrowser, jms20subset.JMSException) {
	if ex := sess.checkOpen(); ex != nil {
		return nil, ex
	}
	if queue == nil {
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "queue is nil", nil)
	}
	a, ex := addressOf(queue)
	if ex != nil {
		return nil, ex
	}
	// validate the selector and destination up front
	bs, err := sess.conn.core.CreateBrowserSession(a, selector)
	if err != nil {
		return nil, fromCoreError(err, "create browser on "+a.String())
	}
	bs.Close()

	browser := &QueueBrowserImpl{session: sess, queue: queue, addr: a, selector: selector}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionClosed {
		return nil, illegalState("session closed")
	}
	sess.browsers[browser] = struct{}{}
	return browser, nil
}

// Unsubscribe deletes a durable subscription created by this client.
func (sess *SessionImpl) Unsubscribe(name string) jms20subset.JMSException {
	if ex := sess.checkOpen(); ex != nil {
		return ex
	}
	subName, ex := CoreDurableSubName(sess.conn.GetClientID(), name)
	if ex != nil {
		return ex
	}
	return fromCoreError(sess.conn.core.Unsubscribe(subName), "unsubscribe "+name)
}

// moveToAsync records that a consumer now has a message listener, or
// moves it back when listener is nil.
func (sess *SessionImpl) moveToAsync(consumer *MsgConsumerImpl, async bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if async {
		delete(sess.syncConsumers, consumer)
		sess.asyncConsumers[consumer] = struct{}{}
	} else {
		delete(sess.asyncConsumers, consumer)
		sess.syncConsumers[consumer] = struct{}{}
	}
}

func (sess *SessionImpl) removeConsumer(consumer *MsgConsumerImpl) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.syncConsumers, consumer)
	delete(sess.asyncConsumers, consumer)
}

func (sess *SessionImpl) removeProducer(producer *MsgProducerImpl) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.producers, producer)
}

func (sess *SessionImpl) removeBrowser(browser *QueueBrowserImpl) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.browsers, browser)
}

// checkSynchronousUsage rejects a synchronous receive while message
// listeners are delivering on this session.
func (sess *SessionImpl) checkSynchronousUsage(op string) jms20subset.JMSException {
	sess.mu.Lock()
	busy := sess.state == sessionStarted && len(sess.asyncConsumers) > 0
	sess.mu.Unlock()
	if busy && !sess.listener.isCaller() {
		return illegalState(op + " is not allowed while the session has message listeners")
	}
	return nil
}

// asyncSender returns the session's async send worker, starting it on first
// use.
func (sess *SessionImpl) asyncSender() (*asyncSender, jms20subset.JMSException) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == sessionClosed || sess.closing {
		return nil, illegalState("session closed")
	}
	if sess.sender == nil {
		sess.sender = newAsyncSender(sess, sess.conn.asyncQueueSize)
	}
	return sess.sender, nil
}

// waitForAsyncSends blocks until every queued send has completed. It does
// nothing when called from a completion listener.
func (sess *SessionImpl) waitForAsyncSends() {
	if sess.completion.isCaller() {
		return
	}
	sess.mu.Lock()
	sender := sess.sender
	sess.mu.Unlock()
	if sender != nil {
		sender.waitForCompletion()
	}
}

// transaction returns the open local transaction, creating one if needed.
// Caller holds tranMu.
func (sess *SessionImpl) transaction() (core.Transaction, jms20subset.JMSException) {
	if sess.tran == nil {
		tran, err := sess.conn.core.CreateUncoordinatedTransaction()
		if err != nil {
			return nil, fromCoreError(err, "create transaction")
		}
		sess.tran = tran
	}
	return sess.tran, nil
}

// currentTransaction is transaction for callers not holding tranMu.
func (sess *SessionImpl) currentTransaction() (core.Transaction, jms20subset.JMSException) {
	sess.tranMu.Lock()
	defer sess.tranMu.Unlock()
	return sess.transaction()
}

// commitTransaction commits the open transaction, if any. A commit that
// failed because the engine was lost has rolled the work back, which is
// remembered so the rollback that follows is a no-op.
func (sess *SessionImpl) commitTransaction() jms20subset.JMSException {
	sess.tranMu.Lock()
	defer sess.tranMu.Unlock()

	tran := sess.tran
	sess.tran = nil
	sess.uncommittedReceiveCount = 0
	if tran == nil {
		return nil
	}

	err := tran.Commit(context.Background())
	if err == nil {
		sess.conn.metrics.transactions.WithLabelValues(outcomeCommit).Inc()
		return nil
	}
	sess.conn.metrics.transactions.WithLabelValues(outcomeFailed).Inc()
	if isConnectionLost(err) {
		sess.rolledBackDueToConnectionFailure = true
		return newException(jms20subset.TransactionRolledBackExceptionKind, "transaction rolled back because the connection was lost", err)
	}
	return fromCoreError(err, "commit")
}

func (sess *SessionImpl) rollbackTransaction() jms20subset.JMSException {
	sess.tranMu.Lock()
	defer sess.tranMu.Unlock()

	if sess.rolledBackDueToConnectionFailure {
		sess.rolledBackDueToConnectionFailure = false
		return nil
	}
	tran := sess.tran
	sess.tran = nil
	sess.uncommittedReceiveCount = 0
	if tran == nil {
		return nil
	}

	if err := tran.Rollback(context.Background()); err != nil {
		sess.conn.metrics.transactions.WithLabelValues(outcomeFailed).Inc()
		return fromCoreError(err, "rollback")
	}
	sess.conn.metrics.transactions.WithLabelValues(outcomeRollback).Inc()
	return nil
}

func (sess *SessionImpl) checkTransactedCall(op string) jms20subset.JMSException {
	if ex := sess.checkOpen(); ex != nil {
		return ex
	}
	if !sess.GetTransacted() {
		return illegalState(op + " called on a session that is not transacted")
	}
	if sess.completion.isCaller() {
		return illegalState(op + " is not allowed from a completion listener")
	}
	return nil
}

// Commit commits all messages sent and received in the current transaction.
func (sess *SessionImpl) Commit() jms20subset.JMSException {
	if ex := sess.checkTransactedCall("Commit"); ex != nil {
		return ex
	}
	sess.waitForAsyncSends()
	return sess.commitTransaction()
}

// Rollback discards the messages sent in the current transaction and makes
// the received ones available for redelivery.
func (sess *SessionImpl) Rollback() jms20subset.JMSException {
	if ex := sess.checkTransactedCall("Rollback"); ex != nil {
		return ex
	}
	sess.waitForAsyncSends()
	return sess.rollbackTransaction()
}

// Recover restarts delivery from the oldest unacknowledged message.
func (sess *SessionImpl) Recover() jms20subset.JMSException {
	if ex := sess.checkOpen(); ex != nil {
		return ex
	}

	switch sess.ackMode {
	case jms20subset.JMSContextSESSIONTRANSACTED:
		return illegalState("Recover called on a transacted session")
	case jms20subset.JMSContextCLIENTACKNOWLEDGE:
		sess.tranMu.Lock()
		pending := sess.uncommittedReceiveCount > 0
		sess.tranMu.Unlock()
		if pending {
			return sess.rollbackTransaction()
		}
	case jms20subset.JMSContextDUPSOKACKNOWLEDGE:
		return sess.commitTransaction()
	case jms20subset.JMSContextAUTOACKNOWLEDGE:
		if sess.listener.isCaller() {
			sess.recoverRequested.Store(true)
		}
	}
	return nil
}

// acknowledge implements Message.Acknowledge.
func (sess *SessionImpl) acknowledge() jms20subset.JMSException {
	if ex := sess.checkOpen(); ex != nil {
		return ex
	}
	switch sess.ackMode {
	case jms20subset.JMSContextCLIENTACKNOWLEDGE, jms20subset.JMSContextDUPSOKACKNOWLEDGE:
		return sess.commitTransaction()
	}
	return nil
}

// consumed settles a message returned by a synchronous receive.
func (sess *SessionImpl) consumed(lm core.LockedMessage) jms20subset.JMSException {
	if ex := sess.preConsume(lm); ex != nil {
		return ex
	}
	return sess.postConsume()
}

// preConsume deletes a received message: at once under AUTO, otherwise under
// the session transaction.
func (sess *SessionImpl) preConsume(lm core.LockedMessage) jms20subset.JMSException {
	if sess.ackMode == jms20subset.JMSContextAUTOACKNOWLEDGE {
		return fromCoreError(lm.Delete(nil), "delete message")
	}

	sess.tranMu.Lock()
	defer sess.tranMu.Unlock()
	tran, ex := sess.transaction()
	if ex != nil {
		return ex
	}
	if err := lm.Delete(tran); err != nil {
		return fromCoreError(err, "delete message")
	}
	sess.uncommittedReceiveCount++
	return nil
}

// postConsume commits a DUPS_OK session once dupsOkBatchSize messages are
// outstanding.
func (sess *SessionImpl) postConsume() jms20subset.JMSException {
	if sess.ackMode != jms20subset.JMSContextDUPSOKACKNOWLEDGE {
		return nil
	}
	sess.tranMu.Lock()
	batchFull := sess.uncommittedReceiveCount >= sess.conn.dupsOkBatchSize
	sess.tranMu.Unlock()
	if batchFull {
		return sess.commitTransaction()
	}
	return nil
}

// Close closes the session and everything created from it. It waits for a
// running message listener to return. Closing a closed session does nothing.
func (sess *SessionImpl) Close() jms20subset.JMSException {
	return sess.close()
}

// close runs the shutdown sequence once. A concurrent caller waits for the
// first one to finish.
func (sess *SessionImpl) close() jms20subset.JMSException {
	if sess.inCallback() {
		return illegalState("a session cannot be closed from its own listener")
	}

	sess.mu.Lock()
	if sess.state == sessionClosed {
		sess.mu.Unlock()
		return nil
	}
	if sess.closing {
		sess.mu.Unlock()
		<-sess.closeDone
		return nil
	}
	sess.closing = true
	sender := sess.sender
	sess.mu.Unlock()
	defer close(sess.closeDone)

	var first jms20subset.JMSException
	record := func(ex jms20subset.JMSException) {
		if ex == nil {
			return
		}
		if first == nil {
			first = ex
			return
		}
		sess.log.Warn().Str("kind", ex.GetErrorCode()).Str("reason", ex.GetReason()).Msg("close")
	}

	if sender != nil {
		sender.close()
	}

	sess.mu.Lock()
	syncConsumers := consumerList(sess.syncConsumers)
	sess.mu.Unlock()
	for _, c := range syncConsumers {
		record(c.Close())
	}

	sess.stop()

	sess.mu.Lock()
	sess.state = sessionClosed
	close(sess.closedCh)
	producers := make([]*MsgProducerImpl, 0, len(sess.producers))
	for p := range sess.producers {
		producers = append(producers, p)
	}
	asyncConsumers := consumerList(sess.asyncConsumers)
	browsers := make([]*QueueBrowserImpl, 0, len(sess.browsers))
	for b := range sess.browsers {
		browsers = append(browsers, b)
	}
	sess.mu.Unlock()

	if sess.ackMode == jms20subset.JMSContextDUPSOKACKNOWLEDGE {
		record(sess.commitTransaction())
	}

	for _, p := range producers {
		record(p.Close())
	}
	for _, c := range asyncConsumers {
		record(c.closeConsumer())
	}
	for _, b := range browsers {
		record(b.Close())
	}

	record(sess.rollbackTransaction())
	sess.conn.removeSession(sess)
	return first
}

func consumerList(m map[*MsgConsumerImpl]struct{}) []*MsgConsumerImpl {
	list := make([]*MsgConsumerImpl, 0, len(m))
	for c := range m {
		list = append(list, c)
	}
	return list
}
