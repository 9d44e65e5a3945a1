package jms20subset

// BytesMessage is a message whose body is a stream of bytes written and read
// as typed primitives.
//
// Multi-byte values are laid out according to the JMS_IBM_Encoding property
// of the message, which selects normal or reversed integers and IEEE normal,
// IEEE reversed or S/390 floating point. ReadUTF and WriteUTF always use a
// big-endian length prefix.
//
// A new message is write-only. Reset switches it to read-only and rewinds
// the stream.
type BytesMessage interface {
	Message

	GetBodyLength() (int, JMSException)

	ReadBoolean() (bool, JMSException)
	ReadByte() (int8, JMSException)
	ReadUnsignedByte() (int, JMSException)
	ReadShort() (int16, JMSException)
	ReadUnsignedShort() (int, JMSException)
	ReadChar() (uint16, JMSException)
	ReadInt() (int32, JMSException)
	ReadLong() (int64, JMSException)
	ReadFloat() (float32, JMSException)
	ReadDouble() (float64, JMSException)
	ReadUTF() (string, JMSException)

	// ReadBytes fills buf from the stream and returns the number of bytes
	// read, or -1 once the end of the stream has been reached.
	ReadBytes(buf []byte) (int, JMSException)

	// ReadBytesLen reads at most length bytes into buf.
	ReadBytesLen(buf []byte, length int) (int, JMSException)

	WriteBoolean(value bool) JMSException
	WriteByte(value int8) JMSException
	WriteShort(value int16) JMSException
	WriteChar(value uint16) JMSException
	WriteInt(value int32) JMSException
	WriteLong(value int64) JMSException
	WriteFloat(value float32) JMSException
	WriteDouble(value float64) JMSException
	WriteUTF(value string) JMSException
	WriteBytes(value []byte) JMSException
	WriteBytesRange(value []byte, offset int, length int) JMSException

	// WriteObject writes a value of any supported primitive type, []byte or
	// string.
	WriteObject(value interface{}) JMSException

	Reset() JMSException
}

// Values for the JMS_IBM_Encoding property.
const (
	ENC_INTEGER_MASK        int32 = 0x0000000F
	ENC_DECIMAL_MASK        int32 = 0x000000F0
	ENC_FLOAT_MASK          int32 = 0x00000F00
	ENC_INTEGER_UNDEFINED   int32 = 0x00000000
	ENC_INTEGER_NORMAL      int32 = 0x00000001
	ENC_INTEGER_REVERSED    int32 = 0x00000002
	ENC_DECIMAL_UNDEFINED   int32 = 0x00000000
	ENC_DECIMAL_NORMAL      int32 = 0x00000010
	ENC_DECIMAL_REVERSED    int32 = 0x00000020
	ENC_FLOAT_UNDEFINED     int32 = 0x00000000
	ENC_FLOAT_IEEE_NORMAL   int32 = 0x00000100
	ENC_FLOAT_IEEE_REVERSED int32 = 0x00000200
	ENC_FLOAT_S390          int32 = 0x00000300
	ENC_NATIVE              int32 = ENC_INTEGER_NORMAL | ENC_DECIMAL_NORMAL | ENC_FLOAT_IEEE_NORMAL
)
