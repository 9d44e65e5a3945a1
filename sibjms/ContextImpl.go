// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"github.com/ChipArtem/sibjms/jms20subset"
)

// ContextImpl encapsulates the objects necessary to maintain an active
// connection to a messaging engine: one started connection and one
// session on it.
type ContextImpl struct {
	conn    *ConnectionImpl
	session *SessionImpl
}

var _ jms20subset.JMSContext = (*ContextImpl)(nil)

// CreateQueue creates an object representing the named queue.
func (ctx *ContextImpl) CreateQueue(queueName string) jms20subset.Queue {
	return &QueueImpl{queueName: queueName}
}

// CreateProducer creates a JMSProducer that sends messages to destinations
// named on each send.
func (ctx *ContextImpl) CreateProducer() jms20subset.JMSProducer {

	// Initialise the Producer with the attributes necessary for it to send
	// messages.
	producer := ProducerImpl{
		ctx:          ctx,
		deliveryMode: jms20subset.DeliveryMode_PERSISTENT,
		priority:     jms20subset.Priority_DEFAULT,
	}

	return &producer
}

// CreateConsumer creates a consumer object that allows an application to
// receive messages from the specified Destination.
func (ctx *ContextImpl) CreateConsumer(dest jms20subset.Destination) (jms20subset.JMSConsumer, jms20subset.JMSException) {
	return ctx.CreateConsumerWithSelector(dest, "")
}

// CreateConsumerWithSelector creates a consumer object that allows an application to
// receive messages that match the specified selector from the given Destination.
func (ctx *ContextImpl) CreateConsumerWithSelector(dest jms20subset.Destination, selector string) (jms20subset.JMSConsumer, jms20subset.JMSException) {

	consumer, ex := ctx.session.CreateConsumerWithSelector(dest, selector, false)
	if ex != nil {
		return nil, ex
	}

	return &ConsumerImpl{
		ctx:      ctx,
		consumer: consumer.(*MsgConsumerImpl),
	}, nil
}

// CreateBrowser creates a browser that looks at the messages on a queue
// without removing them.
func (ctx *ContextImpl) CreateBrowser(queue jms20subset.Queue) (jms20subset.QueueBrowser, jms20subset.JMSException) {
	return ctx.session.CreateBrowser(queue, "")
}

// CreateTextMessage creates a text message with no body.
func (ctx *ContextImpl) CreateTextMessage() jms20subset.TextMessage {
	return newTextMessage(nil)
}

// CreateTextMessageWithString creates a text message holding txt.
func (ctx *ContextImpl) CreateTextMessageWithString(txt string) jms20subset.TextMessage {
	return newTextMessage(&txt)
}

// CreateBytesMessage creates an empty bytes message.
func (ctx *ContextImpl) CreateBytesMessage() jms20subset.BytesMessage {
	return newBytesMessage(ctx.conn.wontModify)
}

// CreateBytesMessageWithBytes creates a bytes message whose body is bytes.
func (ctx *ContextImpl) CreateBytesMessageWithBytes(bytes []byte) jms20subset.BytesMessage {
	msg := newBytesMessage(ctx.conn.wontModify)
	msg.WriteBytes(bytes)
	return msg
}

// Commit confirms all messages that were sent and received under the
// current transaction.
func (ctx *ContextImpl) Commit() jms20subset.JMSException {
	return ctx.session.Commit()
}

// Rollback releases all messages that were sent and received under the
// current transaction.
func (ctx *ContextImpl) Rollback() jms20subset.JMSException {
	return ctx.session.Rollback()
}

// Close the connection to the messaging engine, and release any resources
// that were allocated to support it.
func (ctx *ContextImpl) Close() {

	// JMS semantics are to roll back an active transaction on Close.
	if ctx.session.GetTransacted() {
		if ex := ctx.session.Rollback(); ex != nil && !jms20subset.IsKind(ex, jms20subset.IllegalStateExceptionKind) {
			ctx.session.log.Warn().Err(jms20subset.AsError(ex)).Msg("rollback on context close")
		}
	}

	if ex := ctx.conn.Close(); ex != nil {
		ctx.conn.log.Warn().Err(jms20subset.AsError(ex)).Msg("context close")
	}
}

// ConsumerImpl is the JMSConsumer of a ContextImpl.
type ConsumerImpl struct {
	ctx      *ContextImpl
	consumer *MsgConsumerImpl
}

var _ jms20subset.JMSConsumer = (*ConsumerImpl)(nil)

// ReceiveNoWait returns a message if one is available, or nil otherwise.
func (consumer *ConsumerImpl) ReceiveNoWait() (jms20subset.Message, jms20subset.JMSException) {
	return consumer.consumer.ReceiveNoWait()
}

// Receive waits up to waitMillis milliseconds for a message. A wait of zero
// blocks until a message arrives or the consumer is closed.
func (consumer *ConsumerImpl) Receive(waitMillis int32) (jms20subset.Message, jms20subset.JMSException) {
	if waitMillis <= 0 {
		return consumer.consumer.Receive()
	}
	return consumer.consumer.ReceiveWithTimeout(int64(waitMillis))
}

// ReceiveStringBodyNoWait returns the body of a text message if one is
// available, or nil otherwise.
func (consumer *ConsumerImpl) ReceiveStringBodyNoWait() (*string, jms20subset.JMSException) {
	msg, ex := consumer.ReceiveNoWait()
	return stringBody(msg, ex)
}

// ReceiveStringBody waits up to waitMillis milliseconds for a text message
// and returns its body.
func (consumer *ConsumerImpl) ReceiveStringBody(waitMillis int32) (*string, jms20subset.JMSException) {
	msg, ex := consumer.Receive(waitMillis)
	return stringBody(msg, ex)
}

// ReceiveBytesBodyNoWait returns the body of a bytes message if one is
// available, or nil otherwise.
func (consumer *ConsumerImpl) ReceiveBytesBodyNoWait() (*[]byte, jms20subset.JMSException) {
	msg, ex := consumer.ReceiveNoWait()
	return bytesBody(msg, ex)
}

// ReceiveBytesBody waits up to waitMillis milliseconds for a bytes message
// and returns its body.
func (consumer *ConsumerImpl) ReceiveBytesBody(waitMillis int32) (*[]byte, jms20subset.JMSException) {
	msg, ex := consumer.Receive(waitMillis)
	return bytesBody(msg, ex)
}

// Close closes the consumer. Errors are logged.
func (consumer *ConsumerImpl) Close() {
	if ex := consumer.consumer.Close(); ex != nil {
		consumer.consumer.log.Warn().Err(jms20subset.AsError(ex)).Msg("consumer close")
	}
}

func stringBody(msg jms20subset.Message, ex jms20subset.JMSException) (*string, jms20subset.JMSException) {
	if ex != nil || msg == nil {
		return nil, ex
	}
	text, ok := msg.(*TextMessageImpl)
	if !ok {
		return nil, formatError("message is not a TextMessage", nil)
	}
	return text.GetText()
}

func bytesBody(msg jms20subset.Message, ex jms20subset.JMSException) (*[]byte, jms20subset.JMSException) {
	if ex != nil || msg == nil {
		return nil, ex
	}
	bm, ok := msg.(*BytesMessageImpl)
	if !ok {
		return nil, formatError("message is not a BytesMessage", nil)
	}
	body, ex := bm.GetBody()
	if ex != nil {
		return nil, ex
	}
	b, _ := body.([]byte)
	return &b, nil
}
