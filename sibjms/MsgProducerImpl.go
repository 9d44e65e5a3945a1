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
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

const (
	// MaxTimeToLive is the largest time to live, in milliseconds, a producer
	// accepts.
	MaxTimeToLive int64 = math.MaxInt64 / 4

	// MaxDeliveryDelay is the largest delivery delay, in milliseconds, a
	// producer accepts.
	MaxDeliveryDelay int64 = math.MaxInt64 / 4
)

// jmsxAppID identifies messages sent by this client.
const jmsxAppID = "sibjms"

// sendSettings are the producer values applied to a message as it is sent.
type sendSettings struct {
	deliveryMode     int
	priority         int
	timeToLive       int64
	deliveryDelay    int64
	disableID        bool
	disableTimestamp bool
}

// MsgProducerImpl sends messages to a destination, or to a destination
// chosen per send when it is unidentified.
type MsgProducerImpl struct {
	session *SessionImpl
	dest    jms20subset.Destination
	log     zerolog.Logger
	closed  atomic.Bool

	settings sendSettings
}

func newProducer(sess *SessionImpl, dest jms20subset.Destination) (*MsgProducerImpl, jms20subset.JMSException) {
	l := sess.log.With().Str("producer", "unidentified").Logger()
	if dest != nil {
		a, ex := addressOf(dest)
		if ex != nil {
			return nil, ex
		}
		l = sess.log.With().Str("dest", a.String()).Logger()
	}

	return &MsgProducerImpl{
		session: sess,
		dest:    dest,
		log:     l,
		settings: sendSettings{
			deliveryMode: jms20subset.DeliveryMode_PERSISTENT,
			priority:     jms20subset.Priority_DEFAULT,
		},
	}, nil
}

func (producer *MsgProducerImpl) checkOpen() jms20subset.JMSException {
	if producer.closed.Load() {
		return illegalState("producer closed")
	}
	return producer.session.checkOpen()
}

// SetDeliveryMode sets the delivery mode of sent messages. Invalid values
// are logged and ignored.
func (producer *MsgProducerImpl) SetDeliveryMode(mode int) jms20subset.MessageProducer {
	switch mode {
	case jms20subset.DeliveryMode_PERSISTENT, jms20subset.DeliveryMode_NON_PERSISTENT:
		producer.settings.deliveryMode = mode
	default:
		producer.log.Warn().Int("deliveryMode", mode).Msg("invalid delivery mode ignored")
	}
	return producer
}

func (producer *MsgProducerImpl) GetDeliveryMode() int {
	return producer.settings.deliveryMode
}

func (producer *MsgProducerImpl) SetPriority(priority int) jms20subset.MessageProducer {
	if priority < jms20subset.Priority_MIN || priority > jms20subset.Priority_MAX {
		producer.log.Warn().Int("priority", priority).Msg("invalid priority ignored")
		return producer
	}
	producer.settings.priority = priority
	return producer
}

func (producer *MsgProducerImpl) GetPriority() int {
	return producer.settings.priority
}

// SetTimeToLive sets how long, in milliseconds, sent messages live. Zero
// means forever.
func (producer *MsgProducerImpl) SetTimeToLive(timeToLive int64) jms20subset.MessageProducer {
	if timeToLive < 0 || timeToLive > MaxTimeToLive {
		producer.log.Warn().Int64("timeToLive", timeToLive).Msg("invalid time to live ignored")
		return producer
	}
	producer.settings.timeToLive = timeToLive
	return producer
}

func (producer *MsgProducerImpl) GetTimeToLive() int64 {
	return producer.settings.timeToLive
}

// SetDeliveryDelay sets the minimum time, in milliseconds, before a sent
// message can be delivered.
func (producer *MsgProducerImpl) SetDeliveryDelay(deliveryDelay int64) jms20subset.MessageProducer {
	if deliveryDelay < 0 || deliveryDelay > MaxDeliveryDelay {
		producer.log.Warn().Int64("deliveryDelay", deliveryDelay).Msg("invalid delivery delay ignored")
		return producer
	}
	producer.settings.deliveryDelay = deliveryDelay
	return producer
}

func (producer *MsgProducerImpl) GetDeliveryDelay() int64 {
	return producer.settings.deliveryDelay
}

func (producer *MsgProducerImpl) SetDisableMessageID(disable bool) jms20subset.MessageProducer {
	producer.settings.disableID = disable
	return producer
}

func (producer *MsgProducerImpl) GetDisableMessageID() bool {
	return producer.settings.disableID
}

func (producer *MsgProducerImpl) SetDisableMessageTimestamp(disable bool) jms20subset.MessageProducer {
	producer.settings.disableTimestamp = disable
	return producer
}

func (producer *MsgProducerImpl) GetDisableMessageTimestamp() bool {
	return producer.settings.disableTimestamp
}

func (producer *MsgProducerImpl) GetDestination() jms20subset.Destination {
	return producer.dest
}

// resolve picks the destination for a send and checks the message.
func (producer *MsgProducerImpl) resolve(dest jms20subset.Destination, msg jms20subset.Message) (jms20subset.Destination, jmsMessage, jms20subset.JMSException) {
	if ex := producer.checkOpen(); ex != nil {
		return nil, nil, ex
	}
	if msg == nil {
		return nil, nil, formatError("message is nil", nil)
	}
	m, ok := msg.(jmsMessage)
	if !ok {
		return nil, nil, formatError("message was not created by this provider", nil)
	}

	switch {
	case producer.dest != nil && dest != nil:
		return nil, nil, newException(jms20subset.UnsupportedOperationExceptionKind, "producer already has a destination", nil)
	case producer.dest != nil:
		dest = producer.dest
	case dest == nil:
		return nil, nil, newException(jms20subset.InvalidDestinationExceptionKind, "unidentified producer needs a destination", nil)
	}

	if s := producer.settings; s.timeToLive > 0 && s.deliveryDelay > 0 && s.timeToLive <= s.deliveryDelay {
		return nil, nil, newException(jms20subset.JMSExceptionKind, "time to live must be greater than the delivery delay", nil)
	}
	return dest, m, nil
}

func (producer *MsgProducerImpl) Send(msg jms20subset.Message) jms20subset.JMSException {
	return producer.SendTo(nil, msg)
}

// SendTo sends msg and returns once the engine has accepted it. Sends
// queued earlier with a completion listener are completed first.
func (producer *MsgProducerImpl) SendTo(dest jms20subset.Destination, msg jms20subset.Message) jms20subset.JMSException {
	d, m, ex := producer.resolve(dest, msg)
	if ex != nil {
		return ex
	}
	producer.session.waitForAsyncSends()
	return producer.sendNow(d, m, producer.settings)
}

func (producer *MsgProducerImpl) SendWithListener(msg jms20subset.Message, listener jms20subset.CompletionListener) jms20subset.JMSException {
	return producer.SendToWithListener(nil, msg, listener)
}

// SendToWithListener queues msg for sending and returns at once; listener is
// called when the send completes.
func (producer *MsgProducerImpl) SendToWithListener(dest jms20subset.Destination, msg jms20subset.Message, listener jms20subset.CompletionListener) jms20subset.JMSException {
	if listener == nil {
		return newException(jms20subset.IllegalArgumentExceptionKind, "completion listener is nil", nil)
	}
	d, m, ex := producer.resolve(dest, msg)
	if ex != nil {
		return ex
	}
	sender, ex := producer.session.asyncSender()
	if ex != nil {
		return ex
	}
	return sender.enqueue(&asyncSend{producer: producer, dest: d, msg: m, settings: producer.settings, listener: listener})
}

// sendNow fills in the send-time header fields and hands the message to the
// engine.
func (producer *MsgProducerImpl) sendNow(dest jms20subset.Destination, m jmsMessage, s sendSettings) jms20subset.JMSException {
	sess := producer.session
	if ex := sess.checkOpen(); ex != nil {
		return ex
	}
	a, ex := addressOf(dest)
	if ex != nil {
		return ex
	}

	base := m.base()
	jm := base.msg
	jm.Persistent = s.deliveryMode == jms20subset.DeliveryMode_PERSISTENT
	jm.Priority = s.priority

	inhibit := false
	if cd, ok := dest.(coreDestination); ok {
		inhibit = cd.inhibitJMSDestination()
	}
	if inhibit {
		base.setDestination(nil, nil)
	} else {
		addr := a
		base.setDestination(&addr, dest)
	}

	if s.disableID {
		base.setMessageID(nil)
	} else {
		base.setMessageID(sess.nextMessageID())
	}

	base.setProviderProperty(propAppID, jmsxAppID)
	if sess.conn.userName != "" {
		base.setProviderProperty(propUserID, sess.conn.userName)
	}
	if _, hasSeq := jm.Properties[propGroupSeq]; hasSeq {
		if _, hasID := jm.Properties[propGroupID]; !hasID {
			group := core.JsMessage{ID: sess.nextMessageID()}
			base.setProviderProperty(propGroupID, group.MessageID())
		}
	}

	now := time.Now().UnixMilli()
	jm.TimeToLive = s.timeToLive
	jm.Expiration = 0
	if s.timeToLive > 0 {
		jm.Expiration = now + s.timeToLive
	}
	jm.Timestamp = 0
	if !s.disableTimestamp {
		jm.Timestamp = now
	}
	jm.DeliveryTime = now + s.deliveryDelay
	jm.ProducerConnID = sess.conn.core.ConnectionID()

	if ex := m.exportBody(); ex != nil {
		return ex
	}
	if limit := sess.conn.maxMsgLength; limit > 0 && len(jm.Body) > int(limit) {
		return newException(jms20subset.JMSExceptionKind, "message body exceeds the maximum message length", nil)
	}

	var tran core.Transaction
	if sess.GetTransacted() {
		if tran, ex = sess.currentTransaction(); ex != nil {
			return ex
		}
	}

	if err := sess.conn.core.Send(context.Background(), a, jm, tran); err != nil {
		return fromCoreError(err, "send to "+a.String())
	}
	sess.conn.metrics.sent.WithLabelValues(a.Name).Inc()
	producer.log.Debug().Str("msgID", base.GetJMSMessageID()).Str("dest", a.String()).Msg("sent")
	return nil
}

// Close releases the producer. Further sends fail.
func (producer *MsgProducerImpl) Close() jms20subset.JMSException {
	if producer.closed.Swap(true) {
		return nil
	}
	producer.session.removeProducer(producer)
	return nil
}
