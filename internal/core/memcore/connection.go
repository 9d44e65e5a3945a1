package memcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/selector"
)

// Connection is a core.Connection onto an Engine.
type Connection struct {
	e      *Engine
	id     string
	log    zerolog.Logger
	mu     sync.Mutex
	closed bool
	tmpSeq int

	consumers map[*consumerSession]struct{}
	trans     map[*transaction]struct{}
	temps     map[string]*queue
}

var _ core.Connection = (*Connection)(nil)

// Connect opens a connection to the engine.
func (e *Engine) Connect() *Connection {
	id := nuid.Next()
	return &Connection{
		e:         e,
		id:        id,
		log:       e.log.With().Str("conn", id).Logger(),
		consumers: map[*consumerSession]struct{}{},
		trans:     map[*transaction]struct{}{},
		temps:     map[string]*queue{},
	}
}

func (c *Connection) ConnectionID() string {
	return c.id
}

func (c *Connection) UniqueID() []byte {
	return []byte(nuid.New().Next()[:16])
}

func (c *Connection) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	return nil
}

func (c *Connection) Send(ctx context.Context, dest core.Address, msg *core.JsMessage, tran core.Transaction) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if tran != nil {
		t, err := c.ownTransaction(tran)
		if err != nil {
			return err
		}
		return t.addSend(dest, msg.Clone())
	}

	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.e.route(dest, msg)
}

func (c *Connection) ownTransaction(tran core.Transaction) (*transaction, error) {
	t, ok := tran.(*transaction)
	if !ok || t.conn != c {
		return nil, errors.New("memcore: transaction belongs to a different connection")
	}
	return t, nil
}

func (c *Connection) CreateConsumerSession(spec core.ConsumerSpec) (core.ConsumerSession, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	sel, err := selector.Parse(spec.Selector)
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidSelector, err.Error())
	}

	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	cs := &consumerSession{
		conn:   c,
		sel:    sel,
		closed: make(chan struct{}),
		held:   map[*entry]*lockedMessage{},
	}

	switch {
	case !spec.Dest.Topic:
		q, err := e.lookupQueue(spec.Dest)
		if err != nil {
			return nil, err
		}
		if q.temporary && q.owner != c.id {
			return nil, errors.Wrapf(core.ErrDestinationNotFound, "temporary queue %s belongs to another connection", q.name)
		}
		cs.q = q

	case spec.DurableName != "":
		d, ok := e.durables[spec.DurableName]
		if ok && d.active {
			return nil, errors.Wrap(core.ErrSubscriptionInUse, spec.DurableName)
		}
		if ok && (d.topic != spec.Dest.Name || d.selector != spec.Selector || d.noLocal != spec.NoLocal) {
			// A changed subscription replaces the old one and its messages.
			delete(e.topics[d.topic].subs, d.q)
			ok = false
		}
		if !ok {
			d = &durable{
				name:     spec.DurableName,
				topic:    spec.Dest.Name,
				selector: spec.Selector,
				noLocal:  spec.NoLocal,
				connID:   c.id,
				q:        newQueue(spec.DurableName),
			}
			e.durables[spec.DurableName] = d
			e.lookupTopic(spec.Dest.Name).subs[d.q] = &subscriber{noLocal: spec.NoLocal, connID: c.id}
		}
		d.connID = c.id
		e.topics[d.topic].subs[d.q].connID = c.id
		d.active = true
		cs.q = d.q
		cs.durable = d

	default:
		q := newQueue(fmt.Sprintf("_SUB.%s.%s", spec.Dest.Name, nuid.Next()))
		e.lookupTopic(spec.Dest.Name).subs[q] = &subscriber{noLocal: spec.NoLocal, connID: c.id}
		cs.q = q
		cs.topic = spec.Dest.Name
	}

	cs.q.consumers++

	c.mu.Lock()
	c.consumers[cs] = struct{}{}
	c.mu.Unlock()

	return cs, nil
}

func (c *Connection) CreateBrowserSession(dest core.Address, sel string) (core.BrowserSession, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if dest.Topic {
		return nil, errors.Wrap(core.ErrNotSupported, "browse topic")
	}
	s, err := selector.Parse(sel)
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidSelector, err.Error())
	}

	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.lookupQueue(dest)
	if err != nil {
		return nil, err
	}
	now := e.now()
	b := &browserSession{}
	for _, en := range q.entries {
		if en.msg.Expired(now) || !en.msg.Deliverable(now) || !s.Matches(en.msg) {
			continue
		}
		b.snapshot = append(b.snapshot, decodeEntry(en))
	}
	return b, nil
}

func (c *Connection) CreateUncoordinatedTransaction() (core.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrClosed
	}
	t := &transaction{conn: c}
	c.trans[t] = struct{}{}
	return t, nil
}

func (c *Connection) CreateTemporaryQueue() (core.Address, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.Address{}, core.ErrClosed
	}
	c.tmpSeq++
	name := fmt.Sprintf("_TQ.%s.%d", c.id, c.tmpSeq)
	c.mu.Unlock()

	q := newQueue(name)
	q.temporary = true
	q.owner = c.id

	c.e.mu.Lock()
	c.e.queues[name] = q
	c.e.mu.Unlock()

	c.mu.Lock()
	c.temps[name] = q
	c.mu.Unlock()

	return core.Address{Name: name, Temporary: true}, nil
}

func (c *Connection) DeleteTemporaryDestination(dest core.Address) error {
	c.mu.Lock()
	q, ok := c.temps[dest.Name]
	c.mu.Unlock()
	if !ok {
		return errors.Wrap(core.ErrDestinationNotFound, dest.Name)
	}

	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	if q.consumers > 0 {
		return errors.Wrap(core.ErrDestinationInUse, dest.Name)
	}
	c.e.dropQueue(q)

	c.mu.Lock()
	delete(c.temps, dest.Name)
	c.mu.Unlock()
	return nil
}

// dropQueue removes q from the engine. Caller holds e.mu.
func (e *Engine) dropQueue(q *queue) {
	delete(e.queues, q.name)
	q.deleted = true
	q.entries = nil
	q.signal()
}

func (c *Connection) Unsubscribe(subName string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.durables[subName]
	if !ok {
		return errors.Wrap(core.ErrSubscriptionNotFound, subName)
	}
	if d.active {
		return errors.Wrap(core.ErrSubscriptionInUse, subName)
	}
	delete(e.durables, subName)
	if t, ok := e.topics[d.topic]; ok {
		delete(t.subs, d.q)
	}
	return nil
}

// Close rolls back open transactions, closes consumer sessions and deletes
// temporary queues.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	trans := make([]*transaction, 0, len(c.trans))
	for t := range c.trans {
		trans = append(trans, t)
	}
	consumers := make([]*consumerSession, 0, len(c.consumers))
	for cs := range c.consumers {
		consumers = append(consumers, cs)
	}
	c.mu.Unlock()

	for _, t := range trans {
		if err := t.Rollback(context.Background()); err != nil && errors.Cause(err) != core.ErrTransactionCompleted {
			c.log.Warn().Err(err).Msg("rollback on close")
		}
	}
	for _, cs := range consumers {
		cs.Close()
	}

	c.e.mu.Lock()
	for _, q := range c.temps {
		c.e.dropQueue(q)
	}
	c.e.mu.Unlock()

	c.mu.Lock()
	c.temps = map[string]*queue{}
	c.mu.Unlock()
	return nil
}

func (c *Connection) forget(cs *consumerSession) {
	c.mu.Lock()
	delete(c.consumers, cs)
	c.mu.Unlock()
}

func (c *Connection) forgetTransaction(t *transaction) {
	c.mu.Lock()
	delete(c.trans, t)
	c.mu.Unlock()
}

func decodeEntry(en *entry) *core.JsMessage {
	m, err := core.DecodeMessage(en.data)
	if err != nil {
		// entries are only ever written by route
		panic(err)
	}
	m.RedeliveredCount = en.redelivered
	return m
}
