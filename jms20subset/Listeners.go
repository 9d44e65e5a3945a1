package jms20subset

// MessageListener receives messages asynchronously from a consumer.
type MessageListener interface {
	OnMessage(msg Message)
}

// MessageListenerFunc adapts an ordinary function to MessageListener.
type MessageListenerFunc func(msg Message)

func (f MessageListenerFunc) OnMessage(msg Message) {
	f(msg)
}

// CompletionListener is notified when an asynchronous send completes.
type CompletionListener interface {
	OnCompletion(msg Message)
	OnException(msg Message, ex JMSException)
}

// ExceptionListener is told about problems detected asynchronously, such as
// a panic in a MessageListener.
type ExceptionListener interface {
	OnException(ex JMSException)
}

// ExceptionListenerFunc adapts an ordinary function to ExceptionListener.
type ExceptionListenerFunc func(ex JMSException)

func (f ExceptionListenerFunc) OnException(ex JMSException) {
	f(ex)
}
