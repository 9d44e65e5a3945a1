package core

import (
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

var mh codec.MsgpackHandle

func init() {
	mh.RawToString = true
	mh.WriteExt = true
	mh.SignedInteger = true
}

// Encode serialises the message to msgpack.
func (m *JsMessage) Encode() ([]byte, error) {
	var raw [1024]byte
	b := raw[:0]
	enc := codec.NewEncoderBytes(&b, &mh)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, "encode message")
	}
	return b, nil
}

// DecodeMessage parses bytes produced by Encode.
func DecodeMessage(data []byte) (*JsMessage, error) {
	m := &JsMessage{}
	dec := codec.NewDecoderBytes(data, &mh)
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	if m.Properties == nil {
		m.Properties = map[string]Property{}
	}
	return m, nil
}
