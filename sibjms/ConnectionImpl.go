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

	"github.com/rs/zerolog"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// ConnectionImpl is an open connection to a messaging engine and the factory
// for sessions on it.
type ConnectionImpl struct {
	core    core.Connection
	log     zerolog.Logger
	metrics *metrics

	userName        string
	wontModify      bool
	dupsOkBatchSize int
	asyncQueueSize  int
	maxMsgLength    int32

	mu                sync.Mutex
	clientID          string
	clientIDFixed     bool
	started           bool
	closed            bool
	sessions          map[*SessionImpl]struct{}
	exceptionListener jms20subset.ExceptionListener
}

const (
	defaultDupsOkBatchSize    = 20
	defaultAsyncSendQueueSize = 100
)

func newConnection(cc core.Connection, cf *ConnectionFactoryImpl, co jms20subset.ConnectionOptions) *ConnectionImpl {
	l := logger
	if co.Logger != nil {
		l = *co.Logger
	}

	conn := &ConnectionImpl{
		core:            cc,
		log:             l.With().Str("conn", cc.ConnectionID()).Logger(),
		metrics:         newMetrics(co.Registerer),
		userName:        cf.UserName,
		wontModify:      cf.ProducerWontModifyPayloadAfterSet,
		dupsOkBatchSize: cf.DupsOkBatchSize,
		asyncQueueSize:  cf.AsyncSendQueueSize,
		maxMsgLength:    co.MaxMsgLength,
		clientID:        cf.ClientID,
		sessions:        map[*SessionImpl]struct{}{},
	}
	if co.ClientID != "" {
		conn.clientID = co.ClientID
	}
	if co.DupsOkBatchSize > 0 {
		conn.dupsOkBatchSize = co.DupsOkBatchSize
	}
	if co.AsyncSendQueueSize > 0 {
		conn.asyncQueueSize = co.AsyncSendQueueSize
	}
	if conn.dupsOkBatchSize <= 0 {
		conn.dupsOkBatchSize = defaultDupsOkBatchSize
	}
	if conn.asyncQueueSize <= 0 {
		conn.asyncQueueSize = defaultAsyncSendQueueSize
	}
	return conn
}

func (conn *ConnectionImpl) checkOpen() jms20subset.JMSException {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return illegalState("connection closed")
	}
	return nil
}

// CreateSession creates a session with the given acknowledge mode, one of
// the JMSContext session mode constants.
func (conn *ConnectionImpl) CreateSession(sessionMode int) (jms20subset.Session, jms20subset.JMSException) {
	if sessionMode < jms20subset.JMSContextSESSIONTRANSACTED || sessionMode > jms20subset.JMSContextDUPSOKACKNOWLEDGE {
		return nil, newException(jms20subset.JMSExceptionKind, "invalid session mode", nil)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return nil, illegalState("connection closed")
	}
	conn.clientIDFixed = true

	sess := newSession(conn, sessionMode)
	conn.sessions[sess] = struct{}{}
	if conn.started {
		sess.start()
	}
	return sess, nil
}

// Start starts (or restarts) delivery of incoming messages.
func (conn *ConnectionImpl) Start() jms20subset.JMSException {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return illegalState("connection closed")
	}
	conn.clientIDFixed = true
	conn.started = true
	for sess := range conn.sessions {
		sess.start()
	}
	return nil
}

// Stop pauses delivery. It returns once every message listener running on
// the connection has finished. Listeners of the connection may not call it.
func (conn *ConnectionImpl) Stop() jms20subset.JMSException {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return illegalState("connection closed")
	}
	if conn.calledFromCallback() {
		conn.mu.Unlock()
		return illegalState("Stop is not allowed from a listener of the connection")
	}
	conn.clientIDFixed = true
	conn.started = false
	sessions := conn.sessionList()
	conn.mu.Unlock()

	for _, sess := range sessions {
		sess.stop()
	}
	return nil
}

// calledFromCallback reports whether the caller is a message or completion
// listener of one of the sessions. Caller holds mu.
func (conn *ConnectionImpl) calledFromCallback() bool {
	for sess := range conn.sessions {
		if sess.inCallback() {
			return true
		}
	}
	return false
}

func (conn *ConnectionImpl) sessionList() []*SessionImpl {
	sessions := make([]*SessionImpl, 0, len(conn.sessions))
	for sess := range conn.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Close closes every session and then the engine connection. Closing a
// closed connection does nothing. Listeners of the connection may not call
// it.
func (conn *ConnectionImpl) Close() jms20subset.JMSException {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return nil
	}
	if conn.calledFromCallback() {
		conn.mu.Unlock()
		return illegalState("Close is not allowed from a listener of the connection")
	}
	conn.closed = true
	conn.started = false
	sessions := conn.sessionList()
	conn.mu.Unlock()

	var first jms20subset.JMSException
	for _, sess := range sessions {
		if ex := sess.close(); ex != nil {
			if first == nil {
				first = ex
			} else {
				conn.log.Warn().Str("reason", ex.GetReason()).Msg("session close")
			}
		}
	}

	if err := conn.core.Close(); err != nil {
		ex := fromCoreError(err, "close connection")
		if first == nil {
			first = ex
		} else {
			conn.log.Warn().Err(err).Msg("engine connection close")
		}
	}
	return first
}

func (conn *ConnectionImpl) removeSession(sess *SessionImpl) {
	conn.mu.Lock()
	delete(conn.sessions, sess)
	conn.mu.Unlock()
}

func (conn *ConnectionImpl) GetClientID() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.clientID
}

// SetClientID is only allowed before the connection is first used.
func (conn *ConnectionImpl) SetClientID(clientID string) jms20subset.JMSException {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return illegalState("connection closed")
	}
	if conn.clientIDFixed || conn.clientID != "" {
		return illegalState("client ID can no longer be set")
	}
	if clientID == "" {
		return newException(jms20subset.InvalidClientIDExceptionKind, "client ID must not be empty", nil)
	}
	conn.clientID = clientID
	conn.clientIDFixed = true
	return nil
}

func (conn *ConnectionImpl) SetExceptionListener(listener jms20subset.ExceptionListener) jms20subset.JMSException {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return illegalState("connection closed")
	}
	conn.exceptionListener = listener
	return nil
}

func (conn *ConnectionImpl) GetExceptionListener() jms20subset.ExceptionListener {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.exceptionListener
}

// notifyException passes ex to the exception listener, if there is one.
func (conn *ConnectionImpl) notifyException(ex jms20subset.JMSException) {
	l := conn.GetExceptionListener()
	if l == nil {
		conn.log.Warn().Str("kind", ex.GetErrorCode()).Str("reason", ex.GetReason()).Msg("no exception listener")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			conn.log.Error().Interface("panic", r).Msg("exception listener panicked")
		}
	}()
	l.OnException(ex)
}
