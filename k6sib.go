// Package k6sib is a k6 extension that writes messages to and reads
// messages from a Service Integration Bus.
package k6sib

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.k6.io/k6/js/modules"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("pkg", "k6sib").Logger()

func init() {
	modules.Register("k6/x/sibjms", new(K6SIB))
}

// K6SIB is the object scripts receive from require("k6/x/sibjms").
type K6SIB struct {
	mng *MngSIB
}

// Connect opens a manager using the INI file at configPath. Messages are
// written to queueIn and read from queueOut.
func (k *K6SIB) Connect(configPath, queueIn, queueOut string) (*K6SIB, error) {
	mng, err := NewSIBMngFromINI(configPath, queueIn, queueOut)
	if err != nil {
		logger.Error().Err(err).Str("config", configPath).Msg("connect failed")
		return nil, err
	}
	logger.Debug().Str("config", configPath).Str("queueIn", queueIn).Str("queueOut", queueOut).Msg("connected")
	return &K6SIB{mng: mng}, nil
}

func (k *K6SIB) checkConnected() error {
	if k.mng == nil {
		return errors.New("not connected")
	}
	return nil
}

func (k *K6SIB) Write(body string) error {
	if err := k.checkConnected(); err != nil {
		return err
	}
	return k.mng.WriteMessage([]byte(body))
}

// Read returns the body of the next message as a string.
func (k *K6SIB) Read() (string, error) {
	if err := k.checkConnected(); err != nil {
		return "", err
	}
	body, err := k.mng.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (k *K6SIB) Close() {
	if k.mng != nil {
		k.mng.Close()
		k.mng = nil
	}
}
