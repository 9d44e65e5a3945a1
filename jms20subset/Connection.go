package jms20subset

// Connection is an active connection to the messaging engine. Sessions are
// created from it; delivery to asynchronous consumers only starts once the
// connection is started.
type Connection interface {
	CreateSession(sessionMode int) (Session, JMSException)

	Start() JMSException
	Stop() JMSException
	Close() JMSException

	GetClientID() string

	// SetClientID may only be called before the connection is first used.
	SetClientID(clientID string) JMSException

	SetExceptionListener(listener ExceptionListener) JMSException
	GetExceptionListener() ExceptionListener
}

// ConnectionFactory creates connections and contexts.
type ConnectionFactory interface {
	CreateConnection(opts ...ConnectionOption) (Connection, JMSException)
	CreateContext(opts ...ConnectionOption) (JMSContext, JMSException)
	CreateContextWithSessionMode(sessionMode int, opts ...ConnectionOption) (JMSContext, JMSException)
}
