// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// BytesMessageImpl is a message whose body is a stream of bytes and typed
// values. Values are written big-endian; the positions of the numeric values
// are remembered so the body can be re-encoded for the encoding named by the
// JMS_IBM_Encoding property when it is sent.
type BytesMessageImpl struct {
	MessageImpl

	// write mode
	buf            *bytes.Buffer
	ints           []numericField
	floats         []floatField
	payload        []byte
	payloadSet     bool
	wontModify     bool
	bodySetInJsMsg bool
	lastEncoding   int32

	// read mode
	readInit     bool
	readBody     []byte
	readPos      int
	readEncoding int32
}

type numericField struct {
	offset int
	size   int
}

type floatField struct {
	offset int
	size   int
	value  float64
}

func newBytesMessage(wontModify bool) *BytesMessageImpl {
	return &BytesMessageImpl{
		MessageImpl: newMessageImpl(core.BodyBytes),
		buf:         &bytes.Buffer{},
		wontModify:  wontModify,
	}
}

// encoding returns the value of JMS_IBM_Encoding, or ENC_NATIVE.
func (msg *BytesMessageImpl) encoding() int32 {
	if p, ok := msg.msg.Properties[propEncoding]; ok && p.Kind == core.KindInt {
		return int32(p.Int)
	}
	return jms20subset.ENC_NATIVE
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// exportBody encodes the written data into the engine message. The result
// is kept until the body or the encoding changes.
func (msg *BytesMessageImpl) exportBody() jms20subset.JMSException {
	if msg.buf == nil {
		// received body, already in its wire form
		return nil
	}

	enc := msg.encoding()
	if msg.bodySetInJsMsg && enc == msg.lastEncoding {
		return nil
	}

	if msg.payloadSet {
		msg.msg.Body = msg.payload
		msg.bodySetInJsMsg = true
		msg.lastEncoding = enc
		return nil
	}

	data := append([]byte(nil), msg.buf.Bytes()...)
	if enc&jms20subset.ENC_INTEGER_MASK == jms20subset.ENC_INTEGER_REVERSED {
		for _, f := range msg.ints {
			reverse(data[f.offset : f.offset+f.size])
		}
	}

	switch enc & jms20subset.ENC_FLOAT_MASK {
	case jms20subset.ENC_FLOAT_IEEE_REVERSED:
		for _, f := range msg.floats {
			reverse(data[f.offset : f.offset+f.size])
		}
	case jms20subset.ENC_FLOAT_S390:
		for _, f := range msg.floats {
			if f.size == 4 {
				bits, err := float32ToS390(float32(f.value))
				if err != nil {
					return formatError("float cannot be encoded", err)
				}
				binary.BigEndian.PutUint32(data[f.offset:], bits)
				continue
			}
			bits, err := float64ToS390(f.value)
			if err != nil {
				return formatError("double cannot be encoded", err)
			}
			binary.BigEndian.PutUint64(data[f.offset:], bits)
		}
	}

	msg.msg.Body = data
	msg.bodySetInJsMsg = true
	msg.lastEncoding = enc
	return nil
}

func (msg *BytesMessageImpl) checkWriteable() jms20subset.JMSException {
	if msg.bodyReadOnly {
		return notWriteable("message body")
	}
	if msg.wontModify {
		return illegalState("only a single WriteBytes is allowed when the producer will not modify the payload")
	}
	if msg.buf == nil {
		msg.buf = &bytes.Buffer{}
	}
	msg.bodySetInJsMsg = false
	return nil
}

func (msg *BytesMessageImpl) writeInteger(b []byte) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	msg.ints = append(msg.ints, numericField{offset: msg.buf.Len(), size: len(b)})
	msg.buf.Write(b)
	return nil
}

func (msg *BytesMessageImpl) WriteBoolean(value bool) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	if value {
		msg.buf.WriteByte(1)
	} else {
		msg.buf.WriteByte(0)
	}
	return nil
}

func (msg *BytesMessageImpl) WriteByte(value int8) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	msg.buf.WriteByte(byte(value))
	return nil
}

func (msg *BytesMessageImpl) WriteShort(value int16) jms20subset.JMSException {
	return msg.writeInteger(binary.BigEndian.AppendUint16(nil, uint16(value)))
}

func (msg *BytesMessageImpl) WriteChar(value uint16) jms20subset.JMSException {
	return msg.writeInteger(binary.BigEndian.AppendUint16(nil, value))
}

func (msg *BytesMessageImpl) WriteInt(value int32) jms20subset.JMSException {
	return msg.writeInteger(binary.BigEndian.AppendUint32(nil, uint32(value)))
}

func (msg *BytesMessageImpl) WriteLong(value int64) jms20subset.JMSException {
	return msg.writeInteger(binary.BigEndian.AppendUint64(nil, uint64(value)))
}

func (msg *BytesMessageImpl) WriteFloat(value float32) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	msg.floats = append(msg.floats, floatField{offset: msg.buf.Len(), size: 4, value: float64(value)})
	msg.buf.Write(binary.BigEndian.AppendUint32(nil, math.Float32bits(value)))
	return nil
}

func (msg *BytesMessageImpl) WriteDouble(value float64) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	msg.floats = append(msg.floats, floatField{offset: msg.buf.Len(), size: 8, value: value})
	msg.buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(value)))
	return nil
}

// WriteUTF writes a two byte length followed by the string in modified
// UTF-8. Neither part depends on the message encoding.
func (msg *BytesMessageImpl) WriteUTF(value string) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	data := encodeModifiedUTF8(value)
	if len(data) > maxUTFLength {
		return formatError("string too long for WriteUTF", nil)
	}
	msg.buf.Write(binary.BigEndian.AppendUint16(nil, uint16(len(data))))
	msg.buf.Write(data)
	return nil
}

func (msg *BytesMessageImpl) WriteBytes(value []byte) jms20subset.JMSException {
	if msg.wontModify {
		if msg.bodyReadOnly {
			return notWriteable("message body")
		}
		if msg.payloadSet {
			return illegalState("only a single WriteBytes is allowed when the producer will not modify the payload")
		}
		msg.payload = value
		msg.payloadSet = true
		msg.bodySetInJsMsg = false
		return nil
	}
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	msg.buf.Write(value)
	return nil
}

func (msg *BytesMessageImpl) WriteBytesRange(value []byte, offset int, length int) jms20subset.JMSException {
	if ex := msg.checkWriteable(); ex != nil {
		return ex
	}
	if offset < 0 || length < 0 || offset+length > len(value) {
		return newException(jms20subset.IllegalArgumentExceptionKind, "offset and length outside the array", nil)
	}
	msg.buf.Write(value[offset : offset+length])
	return nil
}

// WriteObject writes value using the method for its type.
func (msg *BytesMessageImpl) WriteObject(value interface{}) jms20subset.JMSException {
	switch v := value.(type) {
	case nil:
		return newException(jms20subset.NullPointerExceptionKind, "WriteObject value is nil", nil)
	case []byte:
		return msg.WriteBytes(v)
	case string:
		return msg.WriteUTF(v)
	case bool:
		return msg.WriteBoolean(v)
	case int8:
		return msg.WriteByte(v)
	case uint8:
		return msg.WriteByte(int8(v))
	case int16:
		return msg.WriteShort(v)
	case uint16:
		return msg.WriteChar(v)
	case int32:
		return msg.WriteInt(v)
	case int:
		if int(int32(v)) != v {
			return formatError("int value out of range", nil)
		}
		return msg.WriteInt(int32(v))
	case int64:
		return msg.WriteLong(v)
	case float32:
		return msg.WriteFloat(v)
	case float64:
		return msg.WriteDouble(v)
	}
	return formatError("unsupported type for WriteObject", nil)
}

// Reset puts the body in read-only mode and repositions the stream at the
// start.
func (msg *BytesMessageImpl) Reset() jms20subset.JMSException {
	if ex := msg.exportBody(); ex != nil {
		return ex
	}
	msg.bodyReadOnly = true
	msg.readInit = false
	return nil
}

func (msg *BytesMessageImpl) initRead() jms20subset.JMSException {
	if !msg.bodyReadOnly {
		return newException(jms20subset.MessageNotReadableExceptionKind, "message body is write-only", nil)
	}
	if !msg.readInit {
		msg.readBody = msg.msg.Body
		msg.readPos = 0
		msg.readEncoding = msg.encoding()
		msg.readInit = true
	}
	return nil
}

// next consumes n bytes. At the end of the body nothing is consumed.
func (msg *BytesMessageImpl) next(n int) ([]byte, jms20subset.JMSException) {
	if ex := msg.initRead(); ex != nil {
		return nil, ex
	}
	if msg.readPos+n > len(msg.readBody) {
		return nil, newException(jms20subset.MessageEOFExceptionKind, "end of message body", nil)
	}
	b := msg.readBody[msg.readPos : msg.readPos+n]
	msg.readPos += n
	return b, nil
}

func (msg *BytesMessageImpl) intOrder() binary.ByteOrder {
	if msg.readEncoding&jms20subset.ENC_INTEGER_MASK == jms20subset.ENC_INTEGER_REVERSED {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (msg *BytesMessageImpl) GetBodyLength() (int, jms20subset.JMSException) {
	if ex := msg.initRead(); ex != nil {
		return 0, ex
	}
	return len(msg.readBody), nil
}

func (msg *BytesMessageImpl) ReadBoolean() (bool, jms20subset.JMSException) {
	b, ex := msg.next(1)
	if ex != nil {
		return false, ex
	}
	return b[0] != 0, nil
}

func (msg *BytesMessageImpl) ReadByte() (int8, jms20subset.JMSException) {
	b, ex := msg.next(1)
	if ex != nil {
		return 0, ex
	}
	return int8(b[0]), nil
}

func (msg *BytesMessageImpl) ReadUnsignedByte() (int, jms20subset.JMSException) {
	b, ex := msg.next(1)
	if ex != nil {
		return 0, ex
	}
	return int(b[0]), nil
}

func (msg *BytesMessageImpl) ReadShort() (int16, jms20subset.JMSException) {
	b, ex := msg.next(2)
	if ex != nil {
		return 0, ex
	}
	return int16(msg.intOrder().Uint16(b)), nil
}

func (msg *BytesMessageImpl) ReadUnsignedShort() (int, jms20subset.JMSException) {
	b, ex := msg.next(2)
	if ex != nil {
		return 0, ex
	}
	return int(msg.intOrder().Uint16(b)), nil
}

func (msg *BytesMessageImpl) ReadChar() (uint16, jms20subset.JMSException) {
	b, ex := msg.next(2)
	if ex != nil {
		return 0, ex
	}
	return msg.intOrder().Uint16(b), nil
}

func (msg *BytesMessageImpl) ReadInt() (int32, jms20subset.JMSException) {
	b, ex := msg.next(4)
	if ex != nil {
		return 0, ex
	}
	return int32(msg.intOrder().Uint32(b)), nil
}

func (msg *BytesMessageImpl) ReadLong() (int64, jms20subset.JMSException) {
	b, ex := msg.next(8)
	if ex != nil {
		return 0, ex
	}
	return int64(msg.intOrder().Uint64(b)), nil
}

func (msg *BytesMessageImpl) ReadFloat() (float32, jms20subset.JMSException) {
	b, ex := msg.next(4)
	if ex != nil {
		return 0, ex
	}
	switch msg.readEncoding & jms20subset.ENC_FLOAT_MASK {
	case jms20subset.ENC_FLOAT_IEEE_REVERSED:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case jms20subset.ENC_FLOAT_S390:
		return s390ToFloat32(binary.BigEndian.Uint32(b)), nil
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (msg *BytesMessageImpl) ReadDouble() (float64, jms20subset.JMSException) {
	b, ex := msg.next(8)
	if ex != nil {
		return 0, ex
	}
	switch msg.readEncoding & jms20subset.ENC_FLOAT_MASK {
	case jms20subset.ENC_FLOAT_IEEE_REVERSED:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case jms20subset.ENC_FLOAT_S390:
		return s390ToFloat64(binary.BigEndian.Uint64(b)), nil
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (msg *BytesMessageImpl) ReadUTF() (string, jms20subset.JMSException) {
	start := msg.readPos
	b, ex := msg.next(2)
	if ex != nil {
		return "", ex
	}
	data, ex := msg.next(int(binary.BigEndian.Uint16(b)))
	if ex != nil {
		msg.readPos = start
		return "", ex
	}
	s, err := decodeModifiedUTF8(data)
	if err != nil {
		msg.readPos = start
		return "", formatError("invalid UTF data", err)
	}
	return s, nil
}

// ReadBytes fills buf from the body and returns the number of bytes read, or
// -1 when the end of the body has been reached.
func (msg *BytesMessageImpl) ReadBytes(buf []byte) (int, jms20subset.JMSException) {
	return msg.ReadBytesLen(buf, len(buf))
}

func (msg *BytesMessageImpl) ReadBytesLen(buf []byte, length int) (int, jms20subset.JMSException) {
	if ex := msg.initRead(); ex != nil {
		return 0, ex
	}
	if length < 0 || length > len(buf) {
		return 0, newException(jms20subset.IllegalArgumentExceptionKind, "length outside the buffer", nil)
	}
	if msg.readPos >= len(msg.readBody) {
		return -1, nil
	}
	n := copy(buf[:length], msg.readBody[msg.readPos:])
	msg.readPos += n
	return n, nil
}

// ClearBody empties the body, returns it to write mode and drops the
// encoding properties that described the old body.
func (msg *BytesMessageImpl) ClearBody() jms20subset.JMSException {
	msg.bodyReadOnly = false
	msg.buf = &bytes.Buffer{}
	msg.ints = nil
	msg.floats = nil
	msg.payload = nil
	msg.payloadSet = false
	msg.bodySetInJsMsg = false
	msg.lastEncoding = 0
	msg.readInit = false
	msg.readBody = nil
	msg.readPos = 0
	msg.readEncoding = 0
	msg.msg.Body = nil
	delete(msg.msg.Properties, propEncoding)
	delete(msg.msg.Properties, propCharacterSet)
	return nil
}

// GetBody returns a copy of the whole body, or nil if it is empty. The read
// position is not affected.
func (msg *BytesMessageImpl) GetBody() (interface{}, jms20subset.JMSException) {
	if ex := msg.exportBody(); ex != nil {
		return nil, ex
	}
	if len(msg.msg.Body) == 0 {
		return nil, nil
	}
	return append([]byte(nil), msg.msg.Body...), nil
}

func (msg *BytesMessageImpl) IsBodyAssignableTo(sample interface{}) bool {
	if len(msg.msg.Body) == 0 && (msg.buf == nil || msg.buf.Len() == 0) && !msg.payloadSet {
		return true
	}
	switch sample.(type) {
	case []byte, *[]byte:
		return true
	}
	return false
}
