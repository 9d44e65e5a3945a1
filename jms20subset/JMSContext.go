package jms20subset

// JMSContext combines a Connection and a single Session, as in the
// simplified JMS 2.0 API.
type JMSContext interface {
	CreateQueue(queueName string) Queue
	CreateProducer() JMSProducer
	CreateConsumer(dest Destination) (JMSConsumer, JMSException)
	CreateConsumerWithSelector(dest Destination, selector string) (JMSConsumer, JMSException)
	CreateBrowser(queue Queue) (QueueBrowser, JMSException)

	CreateTextMessage() TextMessage
	CreateTextMessageWithString(txt string) TextMessage
	CreateBytesMessage() BytesMessage
	CreateBytesMessageWithBytes(bytes []byte) BytesMessage

	Commit() JMSException
	Rollback() JMSException

	// Close rolls back any uncommitted work and releases the connection.
	Close()
}

// JMSProducer sends messages with the options configured on it.
type JMSProducer interface {
	Send(dest Destination, msg Message) JMSException
	SendString(dest Destination, body string) JMSException
	SendBytes(dest Destination, body []byte) JMSException

	SetDeliveryMode(mode int) JMSProducer
	GetDeliveryMode() int
	SetTimeToLive(timeToLive int) JMSProducer
	GetTimeToLive() int
	SetPriority(priority int) JMSProducer
	GetPriority() int
	SetDeliveryDelay(deliveryDelay int) JMSProducer
	GetDeliveryDelay() int

	// SetAsync makes subsequent sends asynchronous, reporting to listener.
	// A nil listener restores synchronous sends.
	SetAsync(listener CompletionListener) JMSProducer
	GetAsync() CompletionListener
}

// JMSConsumer receives messages for a JMSContext.
type JMSConsumer interface {
	ReceiveNoWait() (Message, JMSException)
	Receive(waitMillis int32) (Message, JMSException)
	ReceiveStringBodyNoWait() (*string, JMSException)
	ReceiveStringBody(waitMillis int32) (*string, JMSException)
	ReceiveBytesBodyNoWait() (*[]byte, JMSException)
	ReceiveBytesBody(waitMillis int32) (*[]byte, JMSException)
	Close()
}
