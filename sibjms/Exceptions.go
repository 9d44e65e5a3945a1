// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

// Package sibjms provides the implementation of the JMS style Golang
// interfaces on top of a Service Integration Bus messaging engine, either
// in-process or reached over NATS.
package sibjms

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

func newException(kind string, reason string, linked error) jms20subset.JMSException {
	return jms20subset.CreateJMSException(reason, kind, linked)
}

func illegalState(reason string) jms20subset.JMSException {
	return newException(jms20subset.IllegalStateExceptionKind, reason, nil)
}

func notWriteable(what string) jms20subset.JMSException {
	return newException(jms20subset.MessageNotWriteableExceptionKind, what+" is read-only", nil)
}

func formatError(reason string, linked error) jms20subset.JMSException {
	return newException(jms20subset.MessageFormatExceptionKind, reason, linked)
}

// fromCoreError converts an engine error into the JMSException kind an
// application would expect for it.
func fromCoreError(err error, op string) jms20subset.JMSException {
	if err == nil {
		return nil
	}

	kind := jms20subset.JMSExceptionKind
	switch errors.Cause(err) {
	case core.ErrClosed, core.ErrSubscriptionInUse, core.ErrDestinationInUse, core.ErrTransactionCompleted:
		kind = jms20subset.IllegalStateExceptionKind
	case core.ErrInvalidSelector:
		kind = jms20subset.InvalidSelectorExceptionKind
	case core.ErrDestinationNotFound, core.ErrSubscriptionNotFound:
		kind = jms20subset.InvalidDestinationExceptionKind
	case core.ErrNotSupported:
		kind = jms20subset.UnsupportedOperationExceptionKind
	case context.DeadlineExceeded, context.Canceled:
		kind = jms20subset.JMSExceptionKind
	}
	return newException(kind, op+" failed", err)
}

// isConnectionLost reports whether err means the engine can no longer be
// reached.
func isConnectionLost(err error) bool {
	return errors.Cause(err) == core.ErrConnectionLost
}
