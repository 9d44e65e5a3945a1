// Package memcore is an in-process messaging engine. Queues and topic
// subscriptions live in memory; messages are held in their encoded form so
// that every consumer receives an independent copy.
package memcore

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/selector"
)

// Option configures an Engine.
type Option func(*Engine)

// WithMaxFailedDeliveries sets how many times a message may be unlocked or
// rolled back before it is moved to the exception destination.
func WithMaxFailedDeliveries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFailed = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// Engine owns every destination. Connections created from the same Engine
// see the same queues and topics.
type Engine struct {
	mu        sync.Mutex
	queues    map[string]*queue
	topics    map[string]*topic
	durables  map[string]*durable
	seq       uint64
	maxFailed int
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		queues:    map[string]*queue{},
		topics:    map[string]*topic{},
		durables:  map[string]*durable{},
		maxFailed: core.DefaultMaxFailedDeliveries,
		log:       log.With().Str("pkg", "memcore").Logger().Output(os.Stderr).Level(zerolog.WarnLevel),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var buses = struct {
	sync.Mutex
	m map[string]*Engine
}{m: map[string]*Engine{}}

// Bus returns the process-wide engine registered under name, creating it
// with opts on first use. Later calls ignore opts.
func Bus(name string, opts ...Option) *Engine {
	buses.Lock()
	defer buses.Unlock()

	e, ok := buses.m[name]
	if !ok {
		e = New(opts...)
		buses.m[name] = e
	}
	return e
}

// queue is an ordered list of entries: highest priority first, FIFO within
// a priority.
type queue struct {
	name      string
	entries   []*entry
	notify    chan struct{}
	consumers int
	temporary bool
	owner     string
	deleted   bool
}

type entry struct {
	seq         uint64
	priority    int
	data        []byte
	msg         *core.JsMessage
	locked      bool
	redelivered int
}

type topic struct {
	subs map[*queue]*subscriber
}

type subscriber struct {
	noLocal bool
	connID  string
}

// durable is a durable topic subscription. Its queue keeps collecting
// messages while no consumer is attached.
type durable struct {
	name     string
	topic    string
	selector string
	noLocal  bool
	connID   string
	q        *queue
	active   bool
}

func newQueue(name string) *queue {
	return &queue{name: name, notify: make(chan struct{})}
}

// signal wakes every receiver waiting on q.
func (q *queue) signal() {
	close(q.notify)
	q.notify = make(chan struct{})
}

func (q *queue) insert(en *entry) {
	i := sort.Search(len(q.entries), func(i int) bool {
		other := q.entries[i]
		if other.priority != en.priority {
			return other.priority < en.priority
		}
		return other.seq > en.seq
	})
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = en
	q.signal()
}

func (q *queue) remove(en *entry) bool {
	for i, other := range q.entries {
		if other == en {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// lookupQueue returns the named queue, creating permanent queues on demand.
// Caller holds e.mu.
func (e *Engine) lookupQueue(addr core.Address) (*queue, error) {
	q, ok := e.queues[addr.Name]
	if ok {
		return q, nil
	}
	if addr.Temporary {
		return nil, core.ErrDestinationNotFound
	}
	q = newQueue(addr.Name)
	e.queues[addr.Name] = q
	return q, nil
}

func (e *Engine) lookupTopic(name string) *topic {
	t, ok := e.topics[name]
	if !ok {
		t = &topic{subs: map[*queue]*subscriber{}}
		e.topics[name] = t
	}
	return t
}

// route places an encoded copy of msg on dest. Caller holds e.mu.
func (e *Engine) route(dest core.Address, msg *core.JsMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	// the stored copy is decoded so later mutation by the sender is not seen
	stored, err := core.DecodeMessage(data)
	if err != nil {
		return err
	}

	if !dest.Topic {
		q, err := e.lookupQueue(dest)
		if err != nil {
			return err
		}
		e.enqueue(q, stored, data, 0)
		return nil
	}

	t := e.lookupTopic(dest.Name)
	for q, sub := range t.subs {
		if sub.noLocal && sub.connID == msg.ProducerConnID {
			continue
		}
		e.enqueue(q, stored, data, 0)
	}
	return nil
}

func (e *Engine) enqueue(q *queue, msg *core.JsMessage, data []byte, redelivered int) {
	e.seq++
	q.insert(&entry{
		seq:         e.seq,
		priority:    msg.Priority,
		data:        data,
		msg:         msg,
		redelivered: redelivered,
	})
}

// lock finds the first available entry on q that matches sel. It also
// reports the earliest future delivery time among skipped entries so a
// blocked receiver knows when to look again. Caller holds e.mu.
func (e *Engine) lock(q *queue, sel *selector.Selector) (*entry, time.Time) {
	now := e.now()
	var wake time.Time
	kept := q.entries[:0]
	var found *entry
	for _, en := range q.entries {
		if !en.locked && en.msg.Expired(now) {
			e.log.Debug().Str("queue", q.name).Str("msgID", en.msg.MessageID()).Msg("discarding expired message")
			continue
		}
		kept = append(kept, en)
		if found != nil || en.locked {
			continue
		}
		if !en.msg.Deliverable(now) {
			at := time.UnixMilli(en.msg.DeliveryTime)
			if wake.IsZero() || at.Before(wake) {
				wake = at
			}
			continue
		}
		if sel.Matches(en.msg) {
			en.locked = true
			found = en
		}
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	return found, wake
}

// unlock makes en available again. A counted unlock increments the
// redelivery count and moves the message to the exception destination once
// the limit is reached. Caller holds e.mu.
func (e *Engine) unlock(q *queue, en *entry, counted bool) {
	en.locked = false
	if counted {
		en.redelivered++
	}
	if counted && en.redelivered >= e.maxFailed && q.name != core.ExceptionDestination {
		if q.remove(en) {
			e.log.Warn().
				Str("queue", q.name).
				Str("msgID", en.msg.MessageID()).
				Int("deliveries", en.redelivered).
				Msg("moving message to exception destination")
			exq, _ := e.lookupQueue(core.Address{Name: core.ExceptionDestination})
			e.enqueue(exq, en.msg, en.data, en.redelivered)
		}
	}
	q.signal()
}

// Depth returns the number of messages held on a queue, locked or not.
func (e *Engine) Depth(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[name]
	if !ok {
		return 0
	}
	return len(q.entries)
}
