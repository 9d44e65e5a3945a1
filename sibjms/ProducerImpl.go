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

	"github.com/ChipArtem/sibjms/jms20subset"
)

// ProducerImpl defines a struct that contains the necessary objects for
// sending messages to a queue or topic through a JMSContext.
type ProducerImpl struct {
	ctx           *ContextImpl
	deliveryMode  int
	timeToLive    int
	priority      int
	deliveryDelay int
	async         jms20subset.CompletionListener

	once     sync.Once
	producer *MsgProducerImpl
	ex       jms20subset.JMSException
}

var _ jms20subset.JMSProducer = (*ProducerImpl)(nil)

// SendString sends a TextMessage with the specified body to the specified
// Destination using any message options that are defined on this JMSProducer.
func (producer *ProducerImpl) SendString(dest jms20subset.Destination, bodyStr string) jms20subset.JMSException {
	return producer.Send(dest, producer.ctx.CreateTextMessageWithString(bodyStr))
}

// SendBytes sends a BytesMessage with the specified body to the specified
// Destination using any message options that are defined on this JMSProducer.
func (producer *ProducerImpl) SendBytes(dest jms20subset.Destination, body []byte) jms20subset.JMSException {
	return producer.Send(dest, producer.ctx.CreateBytesMessageWithBytes(body))
}

// Send a message to the specified Destination, using any message options
// that are defined on this JMSProducer. When a CompletionListener has been
// set with SetAsync the send completes in the background.
func (producer *ProducerImpl) Send(dest jms20subset.Destination, msg jms20subset.Message) jms20subset.JMSException {

	// The underlying producer is unidentified so that each send can name
	// its own destination.
	producer.once.Do(func() {
		var p jms20subset.MessageProducer
		if p, producer.ex = producer.ctx.session.CreateProducer(nil); producer.ex == nil {
			producer.producer = p.(*MsgProducerImpl)
		}
	})
	if producer.ex != nil {
		return producer.ex
	}

	p := producer.producer
	p.SetDeliveryMode(producer.deliveryMode)
	p.SetPriority(producer.priority)
	p.SetTimeToLive(int64(producer.timeToLive))
	p.SetDeliveryDelay(int64(producer.deliveryDelay))

	if producer.async != nil {
		return p.SendToWithListener(dest, msg, producer.async)
	}
	return p.SendTo(dest, msg)
}

// SetDeliveryMode stores the delivery mode applied to messages sent by this
// producer.
func (producer *ProducerImpl) SetDeliveryMode(mode int) jms20subset.JMSProducer {

	// Check that the specified mode parameter is one of the values that we permit,
	// and if so store that value inside producer.
	if mode == jms20subset.DeliveryMode_PERSISTENT || mode == jms20subset.DeliveryMode_NON_PERSISTENT {
		producer.deliveryMode = mode

	} else {
		// Method chaining rules out returning an error, so the value is
		// ignored and a warning logged.
		producer.ctx.session.log.Warn().Int("deliveryMode", mode).Msg("invalid DeliveryMode specified")
	}

	return producer
}

// GetDeliveryMode returns the current delivery mode that is set on this
// Producer.
func (producer *ProducerImpl) GetDeliveryMode() int {
	return producer.deliveryMode
}

// SetTimeToLive stores the time to live, in milliseconds, applied to
// messages sent by this producer. Zero means messages never expire.
func (producer *ProducerImpl) SetTimeToLive(timeToLive int) jms20subset.JMSProducer {

	// Only accept a non-negative value for time to live.
	if timeToLive >= 0 && int64(timeToLive) <= MaxTimeToLive {
		producer.timeToLive = timeToLive

	} else {
		producer.ctx.session.log.Warn().Int("timeToLive", timeToLive).Msg("invalid TimeToLive specified")
	}

	return producer
}

// GetTimeToLive returns the current time to live that is set on this
// Producer.
func (producer *ProducerImpl) GetTimeToLive() int {
	return producer.timeToLive
}

// SetPriority stores the priority applied to messages sent by this producer.
func (producer *ProducerImpl) SetPriority(priority int) jms20subset.JMSProducer {

	if priority >= jms20subset.Priority_MIN && priority <= jms20subset.Priority_MAX {
		producer.priority = priority

	} else {
		producer.ctx.session.log.Warn().Int("priority", priority).Msg("invalid Priority specified")
	}

	return producer
}

// GetPriority returns the priority for all messages sent by this producer.
func (producer *ProducerImpl) GetPriority() int {
	return producer.priority
}

// SetDeliveryDelay stores the minimum time, in milliseconds, after a send
// before a message can be delivered.
func (producer *ProducerImpl) SetDeliveryDelay(deliveryDelay int) jms20subset.JMSProducer {

	if deliveryDelay >= 0 && int64(deliveryDelay) <= MaxDeliveryDelay {
		producer.deliveryDelay = deliveryDelay

	} else {
		producer.ctx.session.log.Warn().Int("deliveryDelay", deliveryDelay).Msg("invalid DeliveryDelay specified")
	}

	return producer
}

// GetDeliveryDelay returns the delivery delay set on this Producer.
func (producer *ProducerImpl) GetDeliveryDelay() int {
	return producer.deliveryDelay
}

// SetAsync makes later sends asynchronous, reporting their outcome to
// listener. A nil listener makes sends synchronous again.
func (producer *ProducerImpl) SetAsync(listener jms20subset.CompletionListener) jms20subset.JMSProducer {
	producer.async = listener
	return producer
}

// GetAsync returns the CompletionListener set with SetAsync.
func (producer *ProducerImpl) GetAsync() jms20subset.CompletionListener {
	return producer.async
}
