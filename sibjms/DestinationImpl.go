// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"strings"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// coreDestination is implemented by the destinations of this package.
type coreDestination interface {
	address() core.Address

	// inhibitJMSDestination reports whether sends leave the JMSDestination
	// header empty.
	inhibitJMSDestination() bool
}

// QueueImpl encapsulates the provider-specific attributes necessary to
// communicate with a queue.
type QueueImpl struct {
	queueName string
	busName   string
	inhibit   bool
}

func (queue *QueueImpl) GetQueueName() string {
	return queue.queueName
}

func (queue *QueueImpl) GetDestinationName() string {
	return queue.queueName
}

// SetInhibitJMSDestination controls whether messages sent to this queue carry
// it as their JMSDestination.
func (queue *QueueImpl) SetInhibitJMSDestination(inhibit bool) *QueueImpl {
	queue.inhibit = inhibit
	return queue
}

func (queue *QueueImpl) address() core.Address {
	return core.Address{Name: queue.queueName, BusName: queue.busName}
}

func (queue *QueueImpl) inhibitJMSDestination() bool {
	return queue.inhibit
}

// TopicImpl is a publish/subscribe destination.
type TopicImpl struct {
	topicName string
	busName   string
	inhibit   bool
}

func (topic *TopicImpl) GetTopicName() string {
	return topic.topicName
}

func (topic *TopicImpl) GetDestinationName() string {
	return topic.topicName
}

func (topic *TopicImpl) SetInhibitJMSDestination(inhibit bool) *TopicImpl {
	topic.inhibit = inhibit
	return topic
}

func (topic *TopicImpl) address() core.Address {
	return core.Address{Name: topic.topicName, Topic: true, BusName: topic.busName}
}

func (topic *TopicImpl) inhibitJMSDestination() bool {
	return topic.inhibit
}

// TemporaryQueueImpl is a queue that lives as long as the connection that
// created it.
type TemporaryQueueImpl struct {
	QueueImpl
	conn *ConnectionImpl
}

func (queue *TemporaryQueueImpl) address() core.Address {
	a := queue.QueueImpl.address()
	a.Temporary = true
	return a
}

// Delete removes the temporary queue. It fails while a consumer is open on
// it.
func (queue *TemporaryQueueImpl) Delete() jms20subset.JMSException {
	if queue.conn == nil {
		return illegalState("temporary queue has no connection")
	}
	if ex := queue.conn.checkOpen(); ex != nil {
		return ex
	}
	err := queue.conn.core.DeleteTemporaryDestination(queue.address())
	return fromCoreError(err, "delete temporary queue "+queue.queueName)
}

// destinationFromAddress rebuilds the application view of an address
// carried in a message header.
func destinationFromAddress(a *core.Address) jms20subset.Destination {
	if a == nil {
		return nil
	}
	if a.Topic {
		return &TopicImpl{topicName: a.Name, busName: a.BusName}
	}
	q := QueueImpl{queueName: a.Name, busName: a.BusName}
	if a.Temporary {
		return &TemporaryQueueImpl{QueueImpl: q}
	}
	return &q
}

// ParseDestination creates a destination from a queue://NAME or topic://NAME
// URI. A bare name is taken to be a queue.
func ParseDestination(uri string) (jms20subset.Destination, jms20subset.JMSException) {
	name := uri
	topic := false
	switch {
	case strings.HasPrefix(uri, "queue://"):
		name = strings.TrimPrefix(uri, "queue://")
	case strings.HasPrefix(uri, "topic://"):
		name = strings.TrimPrefix(uri, "topic://")
		topic = true
	case strings.Contains(uri, "://"):
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "unknown destination scheme in "+uri, nil)
	}

	// an optional ?busName=X qualifier
	var bus string
	if i := strings.Index(name, "?"); i >= 0 {
		for _, kv := range strings.Split(name[i+1:], "&") {
			k, v, _ := strings.Cut(kv, "=")
			if k == "busName" {
				bus = v
			}
		}
		name = name[:i]
	}
	if name == "" {
		return nil, newException(jms20subset.InvalidDestinationExceptionKind, "destination name is empty in "+uri, nil)
	}

	if topic {
		return &TopicImpl{topicName: name, busName: bus}, nil
	}
	return &QueueImpl{queueName: name, busName: bus}, nil
}
