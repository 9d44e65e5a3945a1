// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/internal/core/memcore"
	"github.com/ChipArtem/sibjms/internal/core/natscore"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// Transport types for ConnectionFactoryImpl.TransportType.
const (
	// TransportType_MEMORY connects to an in-process messaging engine shared
	// by every connection in the process that names the same bus.
	TransportType_MEMORY int = 0

	// TransportType_NATS connects to a messaging engine reached through a
	// NATS server.
	TransportType_NATS int = 1
)

// DefaultBusName is the bus used when ConnectionFactoryImpl.BusName is empty.
const DefaultBusName = "SIBus"

const iniSection = "sibjms"

// ConnectionFactoryImpl defines a struct that contains attributes for
// each of the key properties required to establish a connection to a
// messaging engine.
//
// The fields are defined as Public so that the struct can be initialised
// programmatically using whatever approach the application prefers, or
// loaded from an INI file with NewConnectionFactoryFromINI.
type ConnectionFactoryImpl struct {
	TransportType int `ini:"-"` // Default to TransportType_MEMORY (0)

	// Location of the NATS server. URL wins when both are set.
	Hostname   string `ini:"Hostname"`
	PortNumber int    `ini:"PortNumber"`
	URL        string `ini:"URL"`

	// BusName selects the in-process engine, and is the subject prefix for
	// the NATS transport.
	BusName string `ini:"BusName"`

	UserName string `ini:"UserName"`
	Password string `ini:"Password"`

	// ClientID is given to every connection created by this factory unless
	// overridden with jms20subset.WithClientID.
	ClientID string `ini:"ClientID"`

	// Number of messages received in DUPS_OK_ACKNOWLEDGE mode before they are
	// acknowledged together. Default of 0 (zero) means 20.
	DupsOkBatchSize int `ini:"DupsOkBatchSize"`

	// Capacity of each session's asynchronous send queue. Default of 0
	// (zero) means 100.
	AsyncSendQueueSize int `ini:"AsyncSendQueueSize"`

	// When set the application promises not to change a byte slice after
	// passing it to a BytesMessage, and the message keeps a reference to it
	// rather than a copy.
	ProducerWontModifyPayloadAfterSet bool `ini:"ProducerWontModifyPayloadAfterSet"`

	// Number of failed deliveries before a message is moved to the exception
	// destination. Default of 0 (zero) means 5.
	MaxFailedDeliveries int `ini:"MaxFailedDeliveries"`
}

var _ jms20subset.ConnectionFactory = ConnectionFactoryImpl{}

// NewConnectionFactoryFromINI loads the [sibjms] section of an INI source,
// which is anything ini.Load accepts: a file name, a []byte or an
// io.Reader. The Transport key selects the transport by name, either
// "memory" (the default) or "nats".
func NewConnectionFactoryFromINI(v interface{}) (cf ConnectionFactoryImpl, err error) {
	var f *ini.File
	if f, err = ini.Load(v); err != nil {
		err = errors.Wrap(err, "load connection factory")
		return
	}

	sec := f.Section(iniSection)
	if err = sec.MapTo(&cf); err != nil {
		err = errors.Wrapf(err, "map section [%s]", iniSection)
		return
	}

	switch t := strings.ToLower(strings.TrimSpace(sec.Key("Transport").String())); t {
	case "", "memory":
		cf.TransportType = TransportType_MEMORY
	case "nats":
		cf.TransportType = TransportType_NATS
	default:
		err = errors.Errorf("unknown transport %q", t)
	}
	return
}

func (cf ConnectionFactoryImpl) busName() string {
	if cf.BusName == "" {
		return DefaultBusName
	}
	return cf.BusName
}

// natsURL returns the URL of the NATS server this factory connects to.
func (cf ConnectionFactoryImpl) natsURL() string {
	if cf.URL != "" {
		return cf.URL
	}
	host := cf.Hostname
	if host == "" {
		host = "localhost"
	}
	port := cf.PortNumber
	if port == 0 {
		port = nats.DefaultPort
	}
	return fmt.Sprintf("nats://%s:%d", host, port)
}

// CreateConnection creates a connection to the messaging engine. The
// connection does not deliver messages until Start is called.
func (cf ConnectionFactoryImpl) CreateConnection(opts ...jms20subset.ConnectionOption) (jms20subset.Connection, jms20subset.JMSException) {
	conn, ex := cf.connect(opts...)
	if ex != nil {
		return nil, ex
	}
	return conn, nil
}

func (cf ConnectionFactoryImpl) connect(opts ...jms20subset.ConnectionOption) (*ConnectionImpl, jms20subset.JMSException) {

	co := jms20subset.ApplyOptions(opts...)
	l := logger
	if co.Logger != nil {
		l = *co.Logger
	}

	var cc core.Connection

	switch cf.TransportType {
	case TransportType_MEMORY:
		engine := memcore.Bus(cf.busName(),
			memcore.WithMaxFailedDeliveries(cf.MaxFailedDeliveries),
			memcore.WithLogger(l.With().Str("bus", cf.busName()).Logger()),
		)
		cc = engine.Connect()

	case TransportType_NATS:
		var natsOpts []nats.Option
		if cf.UserName != "" {
			natsOpts = append(natsOpts, nats.UserInfo(cf.UserName, cf.Password))
		}
		natsOpts = append(natsOpts, nats.Name("sibjms:"+cf.busName()))

		url := cf.natsURL()
		nc, err := natscore.Connect(url,
			natscore.WithSubjectPrefix(cf.busName()),
			natscore.WithMaxFailedDeliveries(cf.MaxFailedDeliveries),
			natscore.WithLogger(l.With().Str("url", url).Logger()),
			natscore.WithNATSOptions(natsOpts...),
		)
		if err != nil {
			return nil, newException(jms20subset.JMSExceptionKind, "unable to connect to "+url, err)
		}
		cc = nc

	default:
		return nil, newException(jms20subset.IllegalArgumentExceptionKind,
			fmt.Sprintf("unknown transport type %d", cf.TransportType), nil)
	}

	return newConnection(cc, &cf, co), nil
}

// CreateContext creates a started connection and a single auto acknowledge
// session wrapped in a JMSContext.
func (cf ConnectionFactoryImpl) CreateContext(opts ...jms20subset.ConnectionOption) (jms20subset.JMSContext, jms20subset.JMSException) {
	return cf.CreateContextWithSessionMode(jms20subset.JMSContextAUTOACKNOWLEDGE, opts...)
}

// CreateContextWithSessionMode creates a JMSContext using the specified
// session mode.
func (cf ConnectionFactoryImpl) CreateContextWithSessionMode(sessionMode int, opts ...jms20subset.ConnectionOption) (jms20subset.JMSContext, jms20subset.JMSException) {

	conn, ex := cf.connect(opts...)
	if ex != nil {
		return nil, ex
	}

	sess, ex := conn.CreateSession(sessionMode)
	if ex != nil {
		conn.Close()
		return nil, ex
	}

	// A context starts delivery straight away.
	if ex = conn.Start(); ex != nil {
		conn.Close()
		return nil, ex
	}

	return &ContextImpl{
		conn:    conn,
		session: sess.(*SessionImpl),
	}, nil
}
