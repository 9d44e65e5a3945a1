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

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// QueueBrowserImpl looks at the messages on a queue without removing them.
type QueueBrowserImpl struct {
	session  *SessionImpl
	queue    jms20subset.Queue
	addr     core.Address
	selector string

	mu           sync.Mutex
	closed       bool
	enumerations []*messageEnumeration
}

func (browser *QueueBrowserImpl) GetQueue() jms20subset.Queue {
	return browser.queue
}

func (browser *QueueBrowserImpl) GetMessageSelector() string {
	return browser.selector
}

// GetEnumeration returns the messages on the queue that match the selector,
// in delivery order, as they were when it was called.
func (browser *QueueBrowserImpl) GetEnumeration() (jms20subset.MessageEnumeration, jms20subset.JMSException) {
	if ex := browser.session.checkOpen(); ex != nil {
		return nil, ex
	}
	bs, err := browser.session.conn.core.CreateBrowserSession(browser.addr, browser.selector)
	if err != nil {
		return nil, fromCoreError(err, "browse "+browser.addr.String())
	}

	browser.mu.Lock()
	defer browser.mu.Unlock()
	if browser.closed {
		bs.Close()
		return nil, illegalState("browser closed")
	}
	e := &messageEnumeration{browser: browser, bs: bs}
	browser.enumerations = append(browser.enumerations, e)
	return e, nil
}

func (browser *QueueBrowserImpl) Close() jms20subset.JMSException {
	browser.mu.Lock()
	if browser.closed {
		browser.mu.Unlock()
		return nil
	}
	browser.closed = true
	enumerations := browser.enumerations
	browser.enumerations = nil
	browser.mu.Unlock()

	for _, e := range enumerations {
		e.close()
	}
	browser.session.removeBrowser(browser)
	return nil
}

type messageEnumeration struct {
	browser *QueueBrowserImpl
	bs      core.BrowserSession
	next    *core.JsMessage
	done    bool
}

// HasMoreElements fetches ahead one message.
func (e *messageEnumeration) HasMoreElements() bool {
	if e.next != nil {
		return true
	}
	if e.done {
		return false
	}
	m, err := e.bs.Next()
	if err != nil {
		e.browser.session.log.Warn().Err(err).Str("queue", e.browser.addr.Name).Msg("browse")
	}
	if err != nil || m == nil {
		e.close()
		return false
	}
	e.next = m
	return true
}

func (e *messageEnumeration) NextElement() (jms20subset.Message, jms20subset.JMSException) {
	if !e.HasMoreElements() {
		return nil, newException(jms20subset.JMSExceptionKind, "no more messages to browse", nil)
	}
	m := e.next
	e.next = nil
	if m.Destination == nil {
		a := e.browser.addr
		m.Destination = &a
	}
	return InboundMessagePath(m, nil), nil
}

func (e *messageEnumeration) close() {
	if e.done {
		return
	}
	e.done = true
	e.bs.Close()
}
