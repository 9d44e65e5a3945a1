package jms20subset

// QueueBrowser looks at messages on a queue without removing them.
type QueueBrowser interface {
	GetQueue() Queue
	GetMessageSelector() string

	// GetEnumeration returns a snapshot of the messages currently on the
	// queue that match the selector.
	GetEnumeration() (MessageEnumeration, JMSException)

	Close() JMSException
}

// MessageEnumeration iterates over browsed messages.
type MessageEnumeration interface {
	HasMoreElements() bool
	NextElement() (Message, JMSException)
}
