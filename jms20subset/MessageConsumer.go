package jms20subset

// MessageConsumer receives messages from a destination, either by explicit
// receive calls or through a MessageListener.
type MessageConsumer interface {
	// Receive blocks until a message arrives or the consumer is closed, in
	// which case it returns a nil message.
	Receive() (Message, JMSException)

	// ReceiveWithTimeout waits at most timeout milliseconds. Zero waits
	// forever.
	ReceiveWithTimeout(timeout int64) (Message, JMSException)

	// ReceiveNoWait returns nil when no message is immediately available.
	ReceiveNoWait() (Message, JMSException)

	// SetMessageListener switches the consumer to asynchronous delivery. A
	// nil listener switches it back.
	SetMessageListener(listener MessageListener) JMSException
	GetMessageListener() MessageListener

	GetMessageSelector() string
	GetNoLocal() bool
	GetDestination() Destination

	Close() JMSException
}
