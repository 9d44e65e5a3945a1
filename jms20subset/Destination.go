package jms20subset

// Destination encapsulates a provider-specific address.
type Destination interface {
	GetDestinationName() string
}

// Queue is a point-to-point destination.
type Queue interface {
	Destination
	GetQueueName() string
}

// Topic is a publish/subscribe destination.
type Topic interface {
	Destination
	GetTopicName() string
}

// TemporaryQueue is a queue that lives as long as the connection that
// created it.
type TemporaryQueue interface {
	Queue

	// Delete removes the queue. It fails while consumers are still open on it.
	Delete() JMSException
}
