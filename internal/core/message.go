package core

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// BodyType identifies the JMS message class carried by a JsMessage.
type BodyType uint8

const (
	BodyNull BodyType = iota
	BodyBytes
	BodyText
	BodyMap
	BodyObject
	BodyStream
)

func (b BodyType) String() string {
	switch b {
	case BodyNull:
		return "null"
	case BodyBytes:
		return "bytes"
	case BodyText:
		return "text"
	case BodyMap:
		return "map"
	case BodyObject:
		return "object"
	case BodyStream:
		return "stream"
	}
	return fmt.Sprintf("BodyType(%d)", uint8(b))
}

// Address names a queue or topic.
type Address struct {
	Name      string `codec:"n"`
	Topic     bool   `codec:"t,omitempty"`
	Temporary bool   `codec:"tmp,omitempty"`
	BusName   string `codec:"bus,omitempty"`
}

func (a Address) String() string {
	if a.Topic {
		return "topic://" + a.Name
	}
	return "queue://" + a.Name
}

// PropertyKind is the Java type a property value was set with.
type PropertyKind uint8

const (
	KindBool PropertyKind = iota + 1
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBytes
)

// Property is a typed message property value.
type Property struct {
	Kind  PropertyKind `codec:"k"`
	Bool  bool         `codec:"b,omitempty"`
	Int   int64        `codec:"i,omitempty"`
	Float float64      `codec:"f,omitempty"`
	Str   string       `codec:"s,omitempty"`
	Bytes []byte       `codec:"y,omitempty"`
}

// NewProperty wraps a Go value. Accepted types are bool, int8, int16, int32,
// int64, float32, float64, string and []byte.
func NewProperty(v interface{}) (Property, error) {
	switch t := v.(type) {
	case bool:
		return Property{Kind: KindBool, Bool: t}, nil
	case int8:
		return Property{Kind: KindByte, Int: int64(t)}, nil
	case int16:
		return Property{Kind: KindShort, Int: int64(t)}, nil
	case int32:
		return Property{Kind: KindInt, Int: int64(t)}, nil
	case int64:
		return Property{Kind: KindLong, Int: t}, nil
	case float32:
		return Property{Kind: KindFloat, Float: float64(t)}, nil
	case float64:
		return Property{Kind: KindDouble, Float: t}, nil
	case string:
		return Property{Kind: KindString, Str: t}, nil
	case []byte:
		return Property{Kind: KindBytes, Bytes: append([]byte(nil), t...)}, nil
	}
	return Property{}, errors.Errorf("unsupported property type %T", v)
}

// Value returns the property as the Go type it was created from.
func (p Property) Value() interface{} {
	switch p.Kind {
	case KindBool:
		return p.Bool
	case KindByte:
		return int8(p.Int)
	case KindShort:
		return int16(p.Int)
	case KindInt:
		return int32(p.Int)
	case KindLong:
		return p.Int
	case KindFloat:
		return float32(p.Float)
	case KindDouble:
		return p.Float
	case KindString:
		return p.Str
	case KindBytes:
		return p.Bytes
	}
	return nil
}

// JsMessage is the engine representation of a message.
type JsMessage struct {
	ID                 []byte              `codec:"id,omitempty"`
	BodyType           BodyType            `codec:"bt"`
	Priority           int                 `codec:"pri"`
	Persistent         bool                `codec:"per"`
	Timestamp          int64               `codec:"ts,omitempty"`
	Expiration         int64               `codec:"exp,omitempty"`
	DeliveryTime       int64               `codec:"dt,omitempty"`
	TimeToLive         int64               `codec:"ttl,omitempty"`
	CorrelationID      string              `codec:"cid,omitempty"`
	CorrelationIDBytes []byte              `codec:"cidb,omitempty"`
	ReplyTo            *Address            `codec:"rto,omitempty"`
	Destination        *Address            `codec:"dst,omitempty"`
	Type               string              `codec:"typ,omitempty"`
	RedeliveredCount   int                 `codec:"rc,omitempty"`
	ProducerConnID     string              `codec:"pc,omitempty"`
	Properties         map[string]Property `codec:"props,omitempty"`
	Body               []byte              `codec:"body,omitempty"`
	Text               *string             `codec:"text,omitempty"`
}

// NewJsMessage returns an empty message of the given body type with default
// priority and persistence.
func NewJsMessage(bodyType BodyType) *JsMessage {
	return &JsMessage{
		BodyType:   bodyType,
		Priority:   4,
		Persistent: true,
		Properties: map[string]Property{},
	}
}

// Clone returns a deep copy.
func (m *JsMessage) Clone() *JsMessage {
	c := *m
	c.ID = cloneBytes(m.ID)
	c.CorrelationIDBytes = cloneBytes(m.CorrelationIDBytes)
	c.Body = cloneBytes(m.Body)
	if m.ReplyTo != nil {
		a := *m.ReplyTo
		c.ReplyTo = &a
	}
	if m.Destination != nil {
		a := *m.Destination
		c.Destination = &a
	}
	if m.Text != nil {
		t := *m.Text
		c.Text = &t
	}
	c.Properties = make(map[string]Property, len(m.Properties))
	for k, v := range m.Properties {
		v.Bytes = cloneBytes(v.Bytes)
		c.Properties[k] = v
	}
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// MessageID formats ID the way JMSMessageID presents it.
func (m *JsMessage) MessageID() string {
	if len(m.ID) == 0 {
		return ""
	}
	return "ID:" + strings.ToUpper(hex.EncodeToString(m.ID))
}

// Expired reports whether the message expiration has passed at now.
func (m *JsMessage) Expired(now time.Time) bool {
	return m.Expiration > 0 && now.UnixMilli() >= m.Expiration
}

// Deliverable reports whether the delivery time has been reached at now.
func (m *JsMessage) Deliverable(now time.Time) bool {
	return m.DeliveryTime <= 0 || now.UnixMilli() >= m.DeliveryTime
}

// Lookup resolves selector identifiers against the header fields and
// properties of the message.
func (m *JsMessage) Lookup(name string) (interface{}, bool) {
	switch name {
	case "JMSDeliveryMode":
		if m.Persistent {
			return "PERSISTENT", true
		}
		return "NON_PERSISTENT", true
	case "JMSPriority":
		return int64(m.Priority), true
	case "JMSMessageID":
		if len(m.ID) == 0 {
			return nil, false
		}
		return m.MessageID(), true
	case "JMSTimestamp":
		return m.Timestamp, true
	case "JMSCorrelationID":
		if m.CorrelationID == "" {
			return nil, false
		}
		return m.CorrelationID, true
	case "JMSType":
		if m.Type == "" {
			return nil, false
		}
		return m.Type, true
	case "JMSRedelivered":
		return m.RedeliveredCount > 0, true
	case "JMSXDeliveryCount":
		return int64(m.RedeliveredCount + 1), true
	}
	p, ok := m.Properties[name]
	if !ok || p.Kind == KindBytes {
		return nil, false
	}
	return p.Value(), true
}
