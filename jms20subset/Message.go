package jms20subset

// Message is the root interface of all JMS messages. It defines the message
// header fields and the typed property accessors.
//
// Messages received from a consumer have read-only properties and body;
// ClearProperties and ClearBody make them writable again.
type Message interface {
	GetJMSMessageID() string
	GetJMSTimestamp() int64

	GetJMSCorrelationID() string
	SetJMSCorrelationID(correlID string) JMSException
	GetJMSCorrelationIDAsBytes() []byte
	SetJMSCorrelationIDAsBytes(correlID []byte) JMSException

	GetJMSReplyTo() Destination
	SetJMSReplyTo(dest Destination) JMSException
	GetJMSDestination() Destination

	GetJMSDeliveryMode() int
	SetJMSDeliveryMode(mode int) JMSException
	GetJMSRedelivered() bool
	GetJMSType() string
	SetJMSType(jmsType string) JMSException
	GetJMSExpiration() int64
	GetJMSPriority() int
	SetJMSPriority(priority int) JMSException
	GetJMSDeliveryTime() int64

	ClearProperties() JMSException
	PropertyExists(name string) (bool, JMSException)
	GetPropertyNames() ([]string, JMSException)

	GetBooleanProperty(name string) (bool, JMSException)
	GetByteProperty(name string) (int8, JMSException)
	GetShortProperty(name string) (int16, JMSException)
	GetIntProperty(name string) (int32, JMSException)
	GetLongProperty(name string) (int64, JMSException)
	GetFloatProperty(name string) (float32, JMSException)
	GetDoubleProperty(name string) (float64, JMSException)
	GetStringProperty(name string) (*string, JMSException)
	GetObjectProperty(name string) (interface{}, JMSException)

	SetBooleanProperty(name string, value bool) JMSException
	SetByteProperty(name string, value int8) JMSException
	SetShortProperty(name string, value int16) JMSException
	SetIntProperty(name string, value int32) JMSException
	SetLongProperty(name string, value int64) JMSException
	SetFloatProperty(name string, value float32) JMSException
	SetDoubleProperty(name string, value float64) JMSException
	SetStringProperty(name string, value *string) JMSException
	SetObjectProperty(name string, value interface{}) JMSException

	// Acknowledge acknowledges every message consumed by the session that
	// received this message, when that session uses client acknowledgement.
	Acknowledge() JMSException

	ClearBody() JMSException

	// GetBody returns the body as []byte for a BytesMessage, *string for a
	// TextMessage and nil for a message without a body.
	GetBody() (interface{}, JMSException)

	// IsBodyAssignableTo reports whether GetBody would return a value of the
	// same type as sample.
	IsBodyAssignableTo(sample interface{}) bool
}

// TextMessage is a message whose body is a string.
type TextMessage interface {
	Message

	SetText(newBody string) JMSException
	GetText() (*string, JMSException)
}

// Delivery modes.
const (
	DeliveryMode_NON_PERSISTENT int = 1
	DeliveryMode_PERSISTENT     int = 2
)

// Priority bounds and defaults.
const (
	Priority_MIN     int = 0
	Priority_MAX     int = 9
	Priority_DEFAULT int = 4
)

// Defaults for producer timing, in milliseconds.
const (
	TimeToLive_DEFAULT    int64 = 0
	DeliveryDelay_DEFAULT int64 = 0
)
