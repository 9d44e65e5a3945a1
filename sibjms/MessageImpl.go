// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// jmsMessage is implemented by every message type of this package.
type jmsMessage interface {
	jms20subset.Message

	base() *MessageImpl

	// exportBody writes the current body into the engine message ready to be
	// sent.
	exportBody() jms20subset.JMSException
}

// MessageImpl contains the header and properties common to all messages and
// is itself a message with no body.
type MessageImpl struct {
	msg     *core.JsMessage
	session *SessionImpl

	propertiesReadOnly bool
	bodyReadOnly       bool
	inbound            bool

	cachedMessageID string
	cachedReplyTo   jms20subset.Destination
	cachedDest      jms20subset.Destination
}

func newMessageImpl(bodyType core.BodyType) MessageImpl {
	return MessageImpl{msg: core.NewJsMessage(bodyType)}
}

func (msg *MessageImpl) base() *MessageImpl {
	return msg
}

func (msg *MessageImpl) exportBody() jms20subset.JMSException {
	return nil
}

// GetJMSMessageID returns the message ID assigned when the message was sent,
// or "" if none was assigned.
func (msg *MessageImpl) GetJMSMessageID() string {
	if msg.cachedMessageID == "" {
		msg.cachedMessageID = msg.msg.MessageID()
	}
	return msg.cachedMessageID
}

func (msg *MessageImpl) setMessageID(id []byte) {
	msg.msg.ID = id
	msg.cachedMessageID = ""
}

func (msg *MessageImpl) GetJMSTimestamp() int64 {
	return msg.msg.Timestamp
}

// GetJMSCorrelationID returns the correlation ID. A correlation ID set as
// bytes is returned in its ID: hex form.
func (msg *MessageImpl) GetJMSCorrelationID() string {
	if msg.msg.CorrelationIDBytes != nil {
		return "ID:" + strings.ToUpper(hex.EncodeToString(msg.msg.CorrelationIDBytes))
	}
	return msg.msg.CorrelationID
}

func (msg *MessageImpl) SetJMSCorrelationID(correlID string) jms20subset.JMSException {
	msg.msg.CorrelationID = correlID
	msg.msg.CorrelationIDBytes = nil
	return nil
}

func (msg *MessageImpl) GetJMSCorrelationIDAsBytes() []byte {
	if msg.msg.CorrelationIDBytes != nil {
		return append([]byte(nil), msg.msg.CorrelationIDBytes...)
	}
	if msg.msg.CorrelationID == "" {
		return nil
	}
	return []byte(msg.msg.CorrelationID)
}

func (msg *MessageImpl) SetJMSCorrelationIDAsBytes(correlID []byte) jms20subset.JMSException {
	msg.msg.CorrelationIDBytes = append([]byte(nil), correlID...)
	msg.msg.CorrelationID = ""
	if correlID == nil {
		msg.msg.CorrelationIDBytes = nil
	}
	return nil
}

func (msg *MessageImpl) GetJMSReplyTo() jms20subset.Destination {
	if msg.cachedReplyTo == nil && msg.msg.ReplyTo != nil {
		msg.cachedReplyTo = destinationFromAddress(msg.msg.ReplyTo)
	}
	return msg.cachedReplyTo
}

// SetJMSReplyTo also marks the message as a request, or as a datagram when
// dest is nil.
func (msg *MessageImpl) SetJMSReplyTo(dest jms20subset.Destination) jms20subset.JMSException {
	msgType := msgTypeDatagram
	if dest == nil {
		msg.msg.ReplyTo = nil
	} else {
		a, ex := addressOf(dest)
		if ex != nil {
			return ex
		}
		msg.msg.ReplyTo = &a
		msgType = msgTypeRequest
	}
	msg.cachedReplyTo = dest
	msg.msg.Properties[propMsgType] = core.Property{Kind: core.KindInt, Int: int64(msgType)}
	return nil
}

func (msg *MessageImpl) GetJMSDestination() jms20subset.Destination {
	if msg.cachedDest == nil && msg.msg.Destination != nil {
		msg.cachedDest = destinationFromAddress(msg.msg.Destination)
	}
	return msg.cachedDest
}

func (msg *MessageImpl) setDestination(a *core.Address, dest jms20subset.Destination) {
	msg.msg.Destination = a
	msg.cachedDest = dest
}

func (msg *MessageImpl) GetJMSDeliveryMode() int {
	if msg.msg.Persistent {
		return jms20subset.DeliveryMode_PERSISTENT
	}
	return jms20subset.DeliveryMode_NON_PERSISTENT
}

func (msg *MessageImpl) SetJMSDeliveryMode(mode int) jms20subset.JMSException {
	switch mode {
	case jms20subset.DeliveryMode_PERSISTENT:
		msg.msg.Persistent = true
	case jms20subset.DeliveryMode_NON_PERSISTENT:
		msg.msg.Persistent = false
	default:
		return newException(jms20subset.JMSExceptionKind, "invalid delivery mode", nil)
	}
	return nil
}

func (msg *MessageImpl) GetJMSRedelivered() bool {
	return msg.msg.RedeliveredCount > 0
}

func (msg *MessageImpl) GetJMSType() string {
	return msg.msg.Type
}

func (msg *MessageImpl) SetJMSType(jmsType string) jms20subset.JMSException {
	msg.msg.Type = jmsType
	return nil
}

func (msg *MessageImpl) GetJMSExpiration() int64 {
	return msg.msg.Expiration
}

func (msg *MessageImpl) GetJMSPriority() int {
	if msg.msg.Priority < 0 {
		return jms20subset.Priority_DEFAULT
	}
	return msg.msg.Priority
}

func (msg *MessageImpl) SetJMSPriority(priority int) jms20subset.JMSException {
	if priority < jms20subset.Priority_MIN || priority > jms20subset.Priority_MAX {
		return newException(jms20subset.JMSExceptionKind, "priority must be between 0 and 9", nil)
	}
	msg.msg.Priority = priority
	return nil
}

func (msg *MessageImpl) GetJMSDeliveryTime() int64 {
	return msg.msg.DeliveryTime
}

// ClearProperties removes every property and makes the properties writable.
func (msg *MessageImpl) ClearProperties() jms20subset.JMSException {
	msg.msg.Properties = map[string]core.Property{}
	msg.propertiesReadOnly = false
	return nil
}

func (msg *MessageImpl) lookupProperty(name string) (interface{}, bool) {
	if name == propDeliveryCount && msg.inbound {
		return int32(msg.msg.RedeliveredCount + 1), true
	}
	p, ok := msg.msg.Properties[name]
	if !ok {
		return nil, false
	}
	v := p.Value()
	if b, isBytes := v.([]byte); isBytes {
		return append([]byte(nil), b...), true
	}
	return v, true
}

func (msg *MessageImpl) PropertyExists(name string) (bool, jms20subset.JMSException) {
	_, ok := msg.lookupProperty(name)
	return ok, nil
}

// GetPropertyNames lists the properties set on the message, including the
// JMSX values the provider derives.
func (msg *MessageImpl) GetPropertyNames() ([]string, jms20subset.JMSException) {
	names := make([]string, 0, len(msg.msg.Properties)+1)
	for name := range msg.msg.Properties {
		names = append(names, name)
	}
	if _, ok := msg.msg.Properties[propDeliveryCount]; !ok && msg.inbound {
		names = append(names, propDeliveryCount)
	}
	sort.Strings(names)
	return names, nil
}

func (msg *MessageImpl) GetBooleanProperty(name string) (bool, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	return propertyToBoolean(v)
}

func (msg *MessageImpl) GetByteProperty(name string) (int8, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	n, ex := propertyToInteger(v, 8, "byte")
	return int8(n), ex
}

func (msg *MessageImpl) GetShortProperty(name string) (int16, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	n, ex := propertyToInteger(v, 16, "short")
	return int16(n), ex
}

func (msg *MessageImpl) GetIntProperty(name string) (int32, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	n, ex := propertyToInteger(v, 32, "int")
	return int32(n), ex
}

func (msg *MessageImpl) GetLongProperty(name string) (int64, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	return propertyToInteger(v, 64, "long")
}

func (msg *MessageImpl) GetFloatProperty(name string) (float32, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	f, ex := propertyToFloat(v, 32, "float")
	return float32(f), ex
}

func (msg *MessageImpl) GetDoubleProperty(name string) (float64, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	return propertyToFloat(v, 64, "double")
}

// GetStringProperty returns nil if the property is not set.
func (msg *MessageImpl) GetStringProperty(name string) (*string, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	return propertyToString(v)
}

func (msg *MessageImpl) GetObjectProperty(name string) (interface{}, jms20subset.JMSException) {
	v, _ := msg.lookupProperty(name)
	return v, nil
}

// setProperty checks the name, then the value type, then that the
// properties are writable.
func (msg *MessageImpl) setProperty(name string, value interface{}) jms20subset.JMSException {
	if ex := CheckPropertyName(name); ex != nil {
		return ex
	}

	if value == nil {
		if msg.propertiesReadOnly {
			return notWriteable("message properties")
		}
		delete(msg.msg.Properties, name)
		return nil
	}

	p, err := core.NewProperty(value)
	if err != nil {
		return formatError("unsupported property type", err)
	}
	if ex := CheckPropertyType(name, p); ex != nil {
		return ex
	}
	if msg.propertiesReadOnly {
		return notWriteable("message properties")
	}
	msg.msg.Properties[name] = p
	return nil
}

func (msg *MessageImpl) SetBooleanProperty(name string, value bool) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetByteProperty(name string, value int8) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetShortProperty(name string, value int16) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetIntProperty(name string, value int32) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetLongProperty(name string, value int64) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetFloatProperty(name string, value float32) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

func (msg *MessageImpl) SetDoubleProperty(name string, value float64) jms20subset.JMSException {
	return msg.setProperty(name, value)
}

// SetStringProperty removes the property when value is nil.
func (msg *MessageImpl) SetStringProperty(name string, value *string) jms20subset.JMSException {
	if value == nil {
		return msg.setProperty(name, nil)
	}
	return msg.setProperty(name, *value)
}

// SetObjectProperty accepts the Go equivalents of the JMS property types. A
// nil value removes the property.
func (msg *MessageImpl) SetObjectProperty(name string, value interface{}) jms20subset.JMSException {
	switch v := value.(type) {
	case int:
		if int(int32(v)) != v {
			if ex := CheckPropertyName(name); ex != nil {
				return ex
			}
			return formatError("int property value out of range", nil)
		}
		value = int32(v)
	case uint8:
		value = int8(v)
	case *string:
		if v == nil {
			value = nil
		} else {
			value = *v
		}
	}
	return msg.setProperty(name, value)
}

// setProviderProperty sets a property without the application checks.
func (msg *MessageImpl) setProviderProperty(name string, value interface{}) {
	if p, err := core.NewProperty(value); err == nil {
		msg.msg.Properties[name] = p
	}
}

// Acknowledge acknowledges every message the session has consumed so far.
// It applies to CLIENT_ACKNOWLEDGE and DUPS_OK_ACKNOWLEDGE sessions and is
// ignored otherwise.
func (msg *MessageImpl) Acknowledge() jms20subset.JMSException {
	if msg.session == nil {
		return illegalState("message was not received by a session")
	}
	return msg.session.acknowledge()
}

func (msg *MessageImpl) ClearBody() jms20subset.JMSException {
	msg.bodyReadOnly = false
	return nil
}

// GetBody returns nil: a plain message has no body.
func (msg *MessageImpl) GetBody() (interface{}, jms20subset.JMSException) {
	return nil, nil
}

func (msg *MessageImpl) IsBodyAssignableTo(sample interface{}) bool {
	return true
}
