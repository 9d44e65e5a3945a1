package jms20subset

// MessageProducer sends messages to a destination. Setters return the
// producer so that calls can be chained; invalid values are ignored and
// logged.
type MessageProducer interface {
	Send(msg Message) JMSException
	SendTo(dest Destination, msg Message) JMSException

	// SendWithListener sends msg on the session's asynchronous send worker
	// and reports the outcome to listener.
	SendWithListener(msg Message, listener CompletionListener) JMSException
	SendToWithListener(dest Destination, msg Message, listener CompletionListener) JMSException

	SetDeliveryMode(mode int) MessageProducer
	GetDeliveryMode() int
	SetPriority(priority int) MessageProducer
	GetPriority() int
	SetTimeToLive(timeToLive int64) MessageProducer
	GetTimeToLive() int64
	SetDeliveryDelay(deliveryDelay int64) MessageProducer
	GetDeliveryDelay() int64
	SetDisableMessageID(disable bool) MessageProducer
	GetDisableMessageID() bool
	SetDisableMessageTimestamp(disable bool) MessageProducer
	GetDisableMessageTimestamp() bool

	GetDestination() Destination
	Close() JMSException
}
