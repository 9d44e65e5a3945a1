package jms20subset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ConnectionOptions carries the tuning knobs applied when a connection is
// created. Zero values leave the connection factory settings in place.
type ConnectionOptions struct {
	MaxMsgLength       int32
	ClientID           string
	DupsOkBatchSize    int
	AsyncSendQueueSize int
	Logger             *zerolog.Logger
	Registerer         prometheus.Registerer
}

type ConnectionOption func(co *ConnectionOptions)

// WithMaxMsgLength limits the encoded size of message bodies sent on the
// connection.
func WithMaxMsgLength(maxMsgLength int32) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.MaxMsgLength = maxMsgLength
	}
}

func WithClientID(clientID string) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.ClientID = clientID
	}
}

// WithDupsOkBatchSize sets how many messages a DUPS_OK_ACKNOWLEDGE session
// receives before it acknowledges them as a batch.
func WithDupsOkBatchSize(n int) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.DupsOkBatchSize = n
	}
}

func WithAsyncSendQueueSize(n int) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.AsyncSendQueueSize = n
	}
}

func WithLogger(l zerolog.Logger) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.Logger = &l
	}
}

// WithMetricsRegisterer registers the connection metrics with r instead of
// the package registry.
func WithMetricsRegisterer(r prometheus.Registerer) ConnectionOption {
	return func(co *ConnectionOptions) {
		co.Registerer = r
	}
}

// ApplyOptions folds opts into a ConnectionOptions value.
func ApplyOptions(opts ...ConnectionOption) ConnectionOptions {
	var co ConnectionOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}
