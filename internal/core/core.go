// Package core defines the messaging engine interface the JMS layer drives:
// connections, consumer and browser sessions, locked messages and local
// transactions. Engines live in the memcore and natscore sub-packages.
package core

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrClosed               = errors.New("core: connection closed")
	ErrConnectionLost       = errors.New("core: connection to the messaging engine lost")
	ErrInvalidSelector      = errors.New("core: invalid selector")
	ErrDestinationNotFound  = errors.New("core: destination not found")
	ErrDestinationInUse     = errors.New("core: destination in use")
	ErrSubscriptionNotFound = errors.New("core: durable subscription not found")
	ErrSubscriptionInUse    = errors.New("core: durable subscription in use")
	ErrTransactionCompleted = errors.New("core: transaction already completed")
	ErrNotSupported         = errors.New("core: operation not supported by engine")
)

// ExceptionDestination receives messages that exceeded the maximum number
// of failed deliveries.
const ExceptionDestination = "_SYSTEM.Exception.Destination"

// DefaultMaxFailedDeliveries is used when an engine is not configured with
// an explicit limit.
const DefaultMaxFailedDeliveries = 5

// ConsumerSpec describes the messages a consumer session attaches to.
type ConsumerSpec struct {
	Dest     Address
	Selector string
	NoLocal  bool

	// DurableName is the engine-level subscription name for a durable topic
	// subscriber. Empty for every other consumer.
	DurableName string
}

// Connection is a connection to a messaging engine.
type Connection interface {
	// ConnectionID identifies the connection; messages carry it as
	// ProducerConnID so that noLocal consumers can skip their own messages.
	ConnectionID() string

	// UniqueID returns 16 bytes that are unique across connections.
	UniqueID() []byte

	// Send delivers msg to dest. msg.Destination is the header value seen by
	// consumers and may differ from dest or be nil. With a non-nil tran the
	// message becomes visible when tran commits.
	Send(ctx context.Context, dest Address, msg *JsMessage, tran Transaction) error

	CreateConsumerSession(spec ConsumerSpec) (ConsumerSession, error)
	CreateBrowserSession(dest Address, selector string) (BrowserSession, error)
	CreateUncoordinatedTransaction() (Transaction, error)

	CreateTemporaryQueue() (Address, error)
	DeleteTemporaryDestination(dest Address) error

	// Unsubscribe removes a durable subscription that has no active consumer.
	Unsubscribe(subName string) error

	Close() error
}

// ConsumerSession hands out messages from one destination.
type ConsumerSession interface {
	// Receive blocks until a message is available, ctx is done or the
	// session is closed.
	Receive(ctx context.Context) (LockedMessage, error)

	// ReceiveNoWait returns nil when no message is immediately available.
	ReceiveNoWait() (LockedMessage, error)

	Close() error
}

// LockedMessage is a message handed to one consumer and hidden from the
// others until it is deleted or unlocked.
type LockedMessage interface {
	Message() *JsMessage

	// Delete removes the message. A nil tran deletes immediately, otherwise
	// the delete happens when tran commits and is undone by rollback.
	Delete(tran Transaction) error

	// Unlock makes the message available again with its redelivery count
	// incremented.
	Unlock() error
}

// BrowserSession iterates over a snapshot of a queue without consuming.
type BrowserSession interface {
	// Next returns nil once the snapshot is exhausted.
	Next() (*JsMessage, error)
	Close() error
}

// Transaction is a local unit of work on one connection.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
