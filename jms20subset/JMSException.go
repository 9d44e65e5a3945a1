package jms20subset

import (
	"fmt"

	jms20 "github.com/ibm-messaging/mq-golang-jms20/jms20subset"
)

// JMSException is the error type returned by every JMS operation. The error
// code carries the JMS exception class name, for example
// MessageNotWriteableException, so callers can branch on the failure kind.
type JMSException = jms20.JMSException

// CreateJMSException builds a JMSException with the given reason, error code
// and optional linked error.
func CreateJMSException(reason string, errCode string, linkedErr error) JMSException {
	return jms20.CreateJMSException(reason, errCode, linkedErr)
}

// Exception kinds, used as the error code of a JMSException.
const (
	JMSExceptionKind                   = "JMSException"
	MessageNotWriteableExceptionKind   = "MessageNotWriteableException"
	MessageNotReadableExceptionKind    = "MessageNotReadableException"
	MessageEOFExceptionKind            = "MessageEOFException"
	MessageFormatExceptionKind         = "MessageFormatException"
	NumberFormatExceptionKind          = "NumberFormatException"
	IllegalStateExceptionKind          = "IllegalStateException"
	IllegalArgumentExceptionKind       = "IllegalArgumentException"
	NullPointerExceptionKind           = "NullPointerException"
	InvalidDestinationExceptionKind    = "InvalidDestinationException"
	InvalidSelectorExceptionKind       = "InvalidSelectorException"
	InvalidClientIDExceptionKind       = "InvalidClientIDException"
	TransactionRolledBackExceptionKind = "TransactionRolledBackException"
	UnsupportedOperationExceptionKind  = "UnsupportedOperationException"
)

// IsKind reports whether ex carries the given exception kind.
func IsKind(ex JMSException, kind string) bool {
	return ex != nil && ex.GetErrorCode() == kind
}

type jmsError struct {
	ex JMSException
}

func (e jmsError) Error() string {
	if linked := e.ex.GetLinkedError(); linked != nil {
		return fmt.Sprintf("%s: %s: %v", e.ex.GetErrorCode(), e.ex.GetReason(), linked)
	}
	return fmt.Sprintf("%s: %s", e.ex.GetErrorCode(), e.ex.GetReason())
}

func (e jmsError) Unwrap() error {
	return e.ex.GetLinkedError()
}

// AsError adapts a JMSException to the error interface. A nil exception
// gives a nil error.
func AsError(ex JMSException) error {
	if ex == nil {
		return nil
	}
	return jmsError{ex: ex}
}
