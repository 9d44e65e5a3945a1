package k6sib

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ChipArtem/sibjms/jms20subset"
	"github.com/ChipArtem/sibjms/sibjms"
)

const (
	readAttempts = 100
	readInterval = 10 * time.Millisecond
)

// MngSIB owns one context with a producer writing to queueIn and a consumer
// reading from queueOut.
type MngSIB struct {
	context  jms20subset.JMSContext
	producer jms20subset.JMSProducer
	consumer jms20subset.JMSConsumer
	queueIn  jms20subset.Queue
	queueOut jms20subset.Queue
}

// NewSIBMngFromINI loads a connection factory from the INI file at
// configPath and opens a manager with it.
func NewSIBMngFromINI(configPath, qIn, qOut string) (*MngSIB, error) {
	cf, err := sibjms.NewConnectionFactoryFromINI(configPath)
	if err != nil {
		return nil, err
	}
	return NewSIBMng(cf, qIn, qOut)
}

func NewSIBMng(cf sibjms.ConnectionFactoryImpl, qIn, qOut string) (*MngSIB, error) {
	context, ex := cf.CreateContext()
	if ex != nil {
		return nil, errors.Wrap(jms20subset.AsError(ex), "CreateContext")
	}

	queueOut := context.CreateQueue(qOut)

	consumer, ex := context.CreateConsumer(queueOut)
	if ex != nil {
		context.Close()
		return nil, errors.Wrap(jms20subset.AsError(ex), "CreateConsumer")
	}

	mng := &MngSIB{
		context:  context,
		producer: context.CreateProducer(),
		consumer: consumer,
		queueIn:  context.CreateQueue(qIn),
		queueOut: queueOut,
	}
	return mng, nil
}

func (m *MngSIB) WriteMessage(body []byte) error {
	if ex := m.producer.SendBytes(m.queueIn, body); ex != nil {
		return errors.Wrap(jms20subset.AsError(ex), "WriteMessage")
	}
	return nil
}

// ReadMessage returns the body of the next message on queueOut, polling for
// up to a second.
func (m *MngSIB) ReadMessage() ([]byte, error) {
	for i := 0; i < readAttempts; i++ {
		rcvBody, ex := m.consumer.ReceiveBytesBodyNoWait()
		if ex != nil {
			return nil, errors.Wrap(jms20subset.AsError(ex), "ReadMessage")
		}
		if rcvBody != nil {
			return *rcvBody, nil
		}
		time.Sleep(readInterval)
	}
	return nil, errors.New("no message received")
}

func (m *MngSIB) Close() {
	m.consumer.Close()
	m.context.Close()
}
