// Package natscore runs the messaging engine interface over a NATS server.
// Queues map to queue-group subscriptions and topics to plain subscriptions
// under a configurable subject prefix. NATS core has no acknowledgements, so
// unlocked messages are redelivered from a per-session list and transactions
// are buffered on the client. Durable subscriptions are subscriptions kept
// open by the connection while no consumer is attached; they last as long as
// the connection.
package natscore

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/selector"
)

// DefaultSubjectPrefix is the first subject token of every destination.
const DefaultSubjectPrefix = "sib"

// DefaultFlushTimeout bounds the wait for the server to confirm a persistent
// publish when the caller's context has no deadline.
const DefaultFlushTimeout = 5 * time.Second

type config struct {
	prefix    string
	maxFailed int
	log       zerolog.Logger
	natsOpts  []nats.Option
}

// Option configures a Connection.
type Option func(*config)

func WithSubjectPrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

func WithMaxFailedDeliveries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFailed = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithNATSOptions passes options through to nats.Connect.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(c *config) {
		c.natsOpts = append(c.natsOpts, opts...)
	}
}

// Connection is a core.Connection backed by one NATS connection.
type Connection struct {
	nc        *nats.Conn
	id        string
	prefix    string
	maxFailed int
	log       zerolog.Logger

	mu        sync.Mutex
	closed    bool
	consumers map[*consumerSession]struct{}
	trans     map[*transaction]struct{}
	temps     map[string]int
	durables  map[string]*durable
}

// durable is a durable topic subscription. Its NATS subscription buffers
// messages while no consumer session is attached.
type durable struct {
	spec   core.ConsumerSpec
	sub    *nats.Subscription
	active bool
	// pending holds unlocked messages left by the last consumer session.
	pending []*core.JsMessage
}

var _ core.Connection = (*Connection)(nil)

// Connect dials url.
func Connect(url string, opts ...Option) (*Connection, error) {
	cfg := config{
		prefix:    DefaultSubjectPrefix,
		maxFailed: core.DefaultMaxFailedDeliveries,
		log:       log.With().Str("pkg", "natscore").Logger().Output(os.Stderr).Level(zerolog.WarnLevel),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Connection{
		id:        nuid.Next(),
		prefix:    cfg.prefix,
		maxFailed: cfg.maxFailed,
		consumers: map[*consumerSession]struct{}{},
		trans:     map[*transaction]struct{}{},
		temps:     map[string]int{},
		durables:  map[string]*durable{},
	}
	c.log = cfg.log.With().Str("conn", c.id).Logger()

	natsOpts := append([]nats.Option{
		nats.Name("sibjms-" + c.id),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := c.log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("async error")
		}),
	}, cfg.natsOpts...)

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, errors.Wrapf(core.ErrConnectionLost, "connect %s: %v", url, err)
	}
	c.nc = nc
	return c, nil
}

func (c *Connection) ConnectionID() string {
	return c.id
}

func (c *Connection) UniqueID() []byte {
	return []byte(nuid.New().Next()[:16])
}

func (c *Connection) subject(dest core.Address) string {
	kind := "q"
	if dest.Topic {
		kind = "t"
	}
	return strings.Join([]string{c.prefix, kind, dest.Name}, ".")
}

// checkOpen maps the NATS connection state onto engine errors.
func (c *Connection) checkOpen() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return core.ErrClosed
	}
	if !c.nc.IsConnected() {
		return errors.Wrap(core.ErrConnectionLost, c.nc.Status().String())
	}
	return nil
}

func (c *Connection) publish(ctx context.Context, dest core.Address, msg *core.JsMessage) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.subject(dest), data); err != nil {
		return errors.Wrap(core.ErrConnectionLost, err.Error())
	}
	if msg.Persistent {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
			defer cancel()
		}
		if err := c.nc.FlushWithContext(ctx); err != nil {
			return errors.Wrap(core.ErrConnectionLost, err.Error())
		}
	}
	return nil
}

func (c *Connection) Send(ctx context.Context, dest core.Address, msg *core.JsMessage, tran core.Transaction) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if tran != nil {
		t, err := c.ownTransaction(tran)
		if err != nil {
			return err
		}
		return t.addSend(dest, msg.Clone())
	}
	return c.publish(ctx, dest, msg)
}

func (c *Connection) ownTransaction(tran core.Transaction) (*transaction, error) {
	t, ok := tran.(*transaction)
	if !ok || t.conn != c {
		return nil, errors.New("natscore: transaction belongs to a different connection")
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
	if spec.DurableName != "" {
		return c.attachDurable(spec, sel)
	}

	if spec.Dest.Temporary {
		c.mu.Lock()
		_, ok := c.temps[spec.Dest.Name]
		if ok {
			c.temps[spec.Dest.Name]++
		}
		c.mu.Unlock()
		if !ok {
			return nil, errors.Wrapf(core.ErrDestinationNotFound, "temporary queue %s", spec.Dest.Name)
		}
	}

	subject := c.subject(spec.Dest)
	var sub *nats.Subscription
	if spec.Dest.Topic {
		sub, err = c.nc.SubscribeSync(subject)
	} else {
		sub, err = c.nc.QueueSubscribeSync(subject, spec.Dest.Name)
	}
	if err != nil {
		return nil, errors.Wrap(core.ErrConnectionLost, err.Error())
	}
	// the subscription must reach the server before a subsequent send
	if err := c.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, errors.Wrap(core.ErrConnectionLost, err.Error())
	}

	cs := newConsumerSession(c, spec, sub, sel)
	c.mu.Lock()
	c.consumers[cs] = struct{}{}
	c.mu.Unlock()
	return cs, nil
}

// attachDurable creates or reattaches to a durable subscription. A changed
// topic, selector or noLocal setting replaces the old subscription and
// discards what it had kept.
func (c *Connection) attachDurable(spec core.ConsumerSpec, sel *selector.Selector) (core.ConsumerSession, error) {
	if !spec.Dest.Topic {
		return nil, errors.Wrapf(core.ErrDestinationNotFound, "durable subscription %s needs a topic", spec.DurableName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, core.ErrClosed
	}

	d, ok := c.durables[spec.DurableName]
	if ok && d.active {
		return nil, errors.Wrap(core.ErrSubscriptionInUse, spec.DurableName)
	}
	if ok && (d.spec.Dest != spec.Dest || d.spec.Selector != spec.Selector || d.spec.NoLocal != spec.NoLocal) {
		c.log.Info().Str("durable", spec.DurableName).Msg("durable subscription changed, replacing it")
		if err := d.sub.Unsubscribe(); err != nil {
			c.log.Warn().Err(err).Str("durable", spec.DurableName).Msg("unsubscribe")
		}
		delete(c.durables, spec.DurableName)
		ok = false
	}
	if !ok {
		sub, err := c.nc.SubscribeSync(c.subject(spec.Dest))
		if err != nil {
			return nil, errors.Wrap(core.ErrConnectionLost, err.Error())
		}
		if err := c.nc.Flush(); err != nil {
			sub.Unsubscribe()
			return nil, errors.Wrap(core.ErrConnectionLost, err.Error())
		}
		d = &durable{spec: spec, sub: sub}
		c.durables[spec.DurableName] = d
	}

	d.active = true
	cs := newConsumerSession(c, spec, d.sub, sel)
	cs.durable = d
	cs.redeliver, d.pending = d.pending, nil
	c.consumers[cs] = struct{}{}
	return cs, nil
}

// CreateBrowserSession is not available: NATS core keeps no queue contents
// to browse.
func (c *Connection) CreateBrowserSession(dest core.Address, sel string) (core.BrowserSession, error) {
	return nil, errors.Wrap(core.ErrNotSupported, "browse")
}

func (c *Connection) CreateUncoordinatedTransaction() (core.Transaction, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	t := &transaction{conn: c}
	c.mu.Lock()
	c.trans[t] = struct{}{}
	c.mu.Unlock()
	return t, nil
}

func (c *Connection) CreateTemporaryQueue() (core.Address, error) {
	if err := c.checkOpen(); err != nil {
		return core.Address{}, err
	}
	name := nats.NewInbox()
	c.mu.Lock()
	c.temps[name] = 0
	c.mu.Unlock()
	return core.Address{Name: name, Temporary: true}, nil
}

func (c *Connection) DeleteTemporaryDestination(dest core.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.temps[dest.Name]
	if !ok {
		return errors.Wrap(core.ErrDestinationNotFound, dest.Name)
	}
	if n > 0 {
		return errors.Wrap(core.ErrDestinationInUse, dest.Name)
	}
	delete(c.temps, dest.Name)
	return nil
}

func (c *Connection) Unsubscribe(subName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.durables[subName]
	if !ok {
		return errors.Wrap(core.ErrSubscriptionNotFound, subName)
	}
	if d.active {
		return errors.Wrap(core.ErrSubscriptionInUse, subName)
	}
	delete(c.durables, subName)
	if err := d.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		return errors.Wrap(core.ErrConnectionLost, err.Error())
	}
	return nil
}

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
	c.nc.Close()
	return nil
}

// forget detaches cs from the connection. pending goes back to the durable
// subscription cs was attached to, if any.
func (c *Connection) forget(cs *consumerSession, pending []*core.JsMessage) {
	c.mu.Lock()
	delete(c.consumers, cs)
	if cs.durable != nil {
		cs.durable.active = false
		cs.durable.pending = append(cs.durable.pending, pending...)
	}
	if cs.dest.Temporary {
		if n, ok := c.temps[cs.dest.Name]; ok && n > 0 {
			c.temps[cs.dest.Name] = n - 1
		}
	}
	c.mu.Unlock()
}

func (c *Connection) forgetTransaction(t *transaction) {
	c.mu.Lock()
	delete(c.trans, t)
	c.mu.Unlock()
}

// keepForDurable hands an unlocked message back to a durable subscription
// whose consumer session has closed.
func (c *Connection) keepForDurable(d *durable, m *core.JsMessage) {
	c.mu.Lock()
	d.pending = append(d.pending, m)
	c.mu.Unlock()
}

// moveToException publishes msg to the exception destination once it has
// failed too many times.
func (c *Connection) moveToException(msg *core.JsMessage) {
	c.log.Warn().
		Str("msgID", msg.MessageID()).
		Int("deliveries", msg.RedeliveredCount).
		Msg("moving message to exception destination")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publish(ctx, core.Address{Name: core.ExceptionDestination}, msg); err != nil {
		c.log.Error().Err(err).Str("msgID", msg.MessageID()).Msg("exception destination publish failed")
	}
}
