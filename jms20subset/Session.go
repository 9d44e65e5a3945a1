package jms20subset

// Session is a single-threaded context for producing and consuming
// messages. It is also the scope of transactions and acknowledgement.
type Session interface {
	CreateMessage() (Message, JMSException)
	CreateBytesMessage() (BytesMessage, JMSException)
	CreateTextMessage() (TextMessage, JMSException)
	CreateTextMessageWithString(txt string) (TextMessage, JMSException)

	CreateQueue(queueName string) (Queue, JMSException)
	CreateTopic(topicName string) (Topic, JMSException)
	CreateTemporaryQueue() (TemporaryQueue, JMSException)

	// CreateProducer creates a producer for dest. A nil dest creates an
	// unidentified producer that must be given a destination on every send.
	CreateProducer(dest Destination) (MessageProducer, JMSException)

	CreateConsumer(dest Destination) (MessageConsumer, JMSException)
	CreateConsumerWithSelector(dest Destination, selector string, noLocal bool) (MessageConsumer, JMSException)
	CreateDurableSubscriber(topic Topic, name string, selector string, noLocal bool) (MessageConsumer, JMSException)
	CreateBrowser(queue Queue, selector string) (QueueBrowser, JMSException)

	// Unsubscribe deletes a durable subscription created by this client.
	Unsubscribe(name string) JMSException

	GetAcknowledgeMode() int
	GetTransacted() bool

	Commit() JMSException
	Rollback() JMSException

	// Recover restarts delivery with the oldest unacknowledged message.
	Recover() JMSException

	Close() JMSException
}

// Session modes.
const (
	JMSContextSESSIONTRANSACTED int = 0
	JMSContextAUTOACKNOWLEDGE   int = 1
	JMSContextCLIENTACKNOWLEDGE int = 2
	JMSContextDUPSOKACKNOWLEDGE int = 3
)
