// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// Provider-specific properties that applications may set, and the type each
// one must carry.
var ibmProperties = map[string]core.PropertyKind{
	"JMS_IBM_Format":                       core.KindString,
	"JMS_IBM_Character_Set":                core.KindString,
	"JMS_IBM_PutDate":                      core.KindString,
	"JMS_IBM_PutTime":                      core.KindString,
	"JMS_IBM_ExceptionMessage":             core.KindString,
	"JMS_IBM_ExceptionProblemDestination":  core.KindString,
	"JMS_IBM_ExceptionProblemSubscription": core.KindString,
	"JMS_IBM_System_MessageID":             core.KindString,
	"JMS_IBM_ArmCorrelator":                core.KindString,
	"JMS_IBM_RMCorrelator":                 core.KindString,
	"JMS_IBM_MQMD_ReplyToQ":                core.KindString,
	"JMS_IBM_MQMD_ReplyToQMgr":             core.KindString,
	"JMS_IBM_MsgType":                      core.KindInt,
	"JMS_IBM_Feedback":                     core.KindInt,
	"JMS_IBM_PutApplType":                  core.KindInt,
	"JMS_IBM_Report_Exception":             core.KindInt,
	"JMS_IBM_Report_Expiration":            core.KindInt,
	"JMS_IBM_Report_COA":                   core.KindInt,
	"JMS_IBM_Report_COD":                   core.KindInt,
	"JMS_IBM_Report_PAN":                   core.KindInt,
	"JMS_IBM_Report_NAN":                   core.KindInt,
	"JMS_IBM_Report_Pass_Msg_ID":           core.KindInt,
	"JMS_IBM_Report_Pass_Correl_ID":        core.KindInt,
	"JMS_IBM_Report_Discard_Msg":           core.KindInt,
	"JMS_IBM_Encoding":                     core.KindInt,
	"JMS_IBM_ExceptionReason":              core.KindInt,
	"JMS_IBM_MQMD_Persistence":             core.KindInt,
	"JMS_IBM_Last_Msg_In_Group":            core.KindBool,
	"JMS_IBM_ExceptionTimestamp":           core.KindLong,
	"JMS_IBM_MQMD_MsgId":                   core.KindBytes,
	"JMS_IBM_MQMD_CorrelId":                core.KindBytes,
}

const (
	propEncoding     = "JMS_IBM_Encoding"
	propCharacterSet = "JMS_IBM_Character_Set"
	propMsgType      = "JMS_IBM_MsgType"

	propGroupID       = "JMSXGroupID"
	propGroupSeq      = "JMSXGroupSeq"
	propUserID        = "JMSXUserID"
	propAppID         = "JMSXAppID"
	propDeliveryCount = "JMSXDeliveryCount"
)

// JMS_IBM_MsgType values.
const (
	msgTypeRequest  int32 = 1
	msgTypeDatagram int32 = 8
)

// jmsxProperties lists the supported JMSX names; true marks the ones an
// application may set.
var jmsxProperties = map[string]bool{
	propGroupID:       true,
	propGroupSeq:      true,
	propUserID:        false,
	propAppID:         false,
	propDeliveryCount: false,
}

// Selector keywords cannot be used as property names.
var reservedNames = map[string]bool{
	"NULL": true, "TRUE": true, "FALSE": true, "NOT": true, "AND": true, "OR": true,
	"BETWEEN": true, "LIKE": true, "IN": true, "IS": true, "ESCAPE": true,
}

func isIdentifierStart(r rune) bool {
	return unicode.IsLetter(r) || r == '$' || r == '_' ||
		unicode.In(r, unicode.Sc, unicode.Pc)
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || unicode.IsDigit(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc)
}

func isIdentifier(name string) bool {
	for i, r := range name {
		if i == 0 && !isIdentifierStart(r) {
			return false
		}
		if !isIdentifierPart(r) {
			return false
		}
	}
	return name != ""
}

// CheckPropertyName validates a property name an application is setting.
func CheckPropertyName(name string) jms20subset.JMSException {
	if name == "" {
		return newException(jms20subset.IllegalArgumentExceptionKind, "property name must not be empty", nil)
	}
	if !isIdentifier(name) || reservedNames[strings.ToUpper(name)] {
		return formatError("invalid property name "+strconv.Quote(name), nil)
	}

	switch {
	case strings.HasPrefix(name, "JMS_"):
		if _, ok := ibmProperties[name]; !ok {
			return formatError("property name "+name+" is reserved", nil)
		}
	case strings.HasPrefix(name, "JMSX"):
		settable, ok := jmsxProperties[name]
		if !ok {
			return formatError("property "+name+" is not supported", nil)
		}
		if !settable {
			return newException(jms20subset.MessageNotWriteableExceptionKind, "property "+name+" is set by the provider", nil)
		}
	case strings.HasPrefix(name, "JMS"):
		return formatError("property name "+name+" is reserved", nil)
	}
	return nil
}

// CheckPropertyType validates the value type for the provider-defined
// properties that mandate one.
func CheckPropertyType(name string, p core.Property) jms20subset.JMSException {
	want, ok := ibmProperties[name]
	if !ok && name == propGroupSeq {
		want, ok = core.KindInt, true
	}
	if ok && p.Kind != want {
		return newException(jms20subset.JMSExceptionKind, "property "+name+" has the wrong type", nil)
	}
	if !ok && p.Kind == core.KindBytes {
		return formatError("byte array values are only valid for provider properties", nil)
	}
	return nil
}

// CoreDurableSubName qualifies a durable subscription name with the client
// identifier.
func CoreDurableSubName(clientID, subName string) (string, jms20subset.JMSException) {
	if subName == "" {
		return "", newException(jms20subset.InvalidDestinationExceptionKind, "durable subscription name must not be empty", nil)
	}
	return clientID + "##" + subName, nil
}

// InboundMessagePath wraps a received engine message in the message type
// matching its body.
func InboundMessagePath(msg *core.JsMessage, session *SessionImpl) jms20subset.Message {
	base := MessageImpl{
		msg:                msg,
		session:            session,
		propertiesReadOnly: true,
		bodyReadOnly:       true,
		inbound:            true,
	}

	switch msg.BodyType {
	case core.BodyBytes:
		return &BytesMessageImpl{MessageImpl: base}
	case core.BodyText:
		return &TextMessageImpl{MessageImpl: base}
	case core.BodyNull:
	default:
		logger.Debug().Str("bodyType", msg.BodyType.String()).Msg("unsupported body type delivered as plain message")
	}
	return &base
}

func numberFormat(v interface{}, target string) jms20subset.JMSException {
	return newException(jms20subset.NumberFormatExceptionKind, "cannot convert property value to "+target, nil)
}

func conversionError(v interface{}, target string) jms20subset.JMSException {
	return formatError("property of this type cannot be read as "+target, nil)
}

func propertyToBoolean(v interface{}) (bool, jms20subset.JMSException) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		return strings.EqualFold(t, "true"), nil
	}
	return false, conversionError(v, "boolean")
}

func parseIntProperty(s string, bits int, target string) (int64, jms20subset.JMSException) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, newException(jms20subset.NumberFormatExceptionKind, "cannot convert "+strconv.Quote(s)+" to "+target, err)
	}
	return n, nil
}

// propertyToInteger converts to an integer type of the given bit size. byte,
// short, int and long accept their own and narrower types.
func propertyToInteger(v interface{}, bits int, target string) (int64, jms20subset.JMSException) {
	switch t := v.(type) {
	case nil:
		return 0, numberFormat(v, target)
	case int8:
		return int64(t), nil
	case int16:
		if bits >= 16 {
			return int64(t), nil
		}
	case int32:
		if bits >= 32 {
			return int64(t), nil
		}
	case int64:
		if bits >= 64 {
			return t, nil
		}
	case string:
		return parseIntProperty(t, bits, target)
	}
	return 0, conversionError(v, target)
}

func propertyToFloat(v interface{}, bits int, target string) (float64, jms20subset.JMSException) {
	switch t := v.(type) {
	case nil:
		return 0, newException(jms20subset.NullPointerExceptionKind, "property not set", nil)
	case float32:
		return float64(t), nil
	case float64:
		if bits == 64 {
			return t, nil
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), bits)
		if err != nil {
			return 0, newException(jms20subset.NumberFormatExceptionKind, "cannot convert "+strconv.Quote(t)+" to "+target, err)
		}
		return f, nil
	}
	return 0, conversionError(v, target)
}

func propertyToString(v interface{}) (*string, jms20subset.JMSException) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = t
	case bool:
		s = strconv.FormatBool(t)
	case int8:
		s = strconv.FormatInt(int64(t), 10)
	case int16:
		s = strconv.FormatInt(int64(t), 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int64:
		s = strconv.FormatInt(t, 10)
	case float32:
		s = javaFloatString(float64(t), 32)
	case float64:
		s = javaFloatString(t, 64)
	default:
		return nil, conversionError(v, "String")
	}
	return &s, nil
}

// ConvertPropertyToType converts a property value to the Go type of kind,
// following the same rules as the typed property getters. A nil value
// converts to the zero value of bool and to nil for string; other kinds
// report the error the matching getter would.
func ConvertPropertyToType(v interface{}, kind core.PropertyKind) (interface{}, jms20subset.JMSException) {
	switch kind {
	case core.KindBool:
		return propertyToBoolean(v)
	case core.KindByte:
		n, ex := propertyToInteger(v, 8, "byte")
		return int8(n), ex
	case core.KindShort:
		n, ex := propertyToInteger(v, 16, "short")
		return int16(n), ex
	case core.KindInt:
		n, ex := propertyToInteger(v, 32, "int")
		return int32(n), ex
	case core.KindLong:
		return propertyToInteger(v, 64, "long")
	case core.KindFloat:
		f, ex := propertyToFloat(v, 32, "float")
		return float32(f), ex
	case core.KindDouble:
		return propertyToFloat(v, 64, "double")
	case core.KindString:
		s, ex := propertyToString(v)
		if s == nil {
			return nil, ex
		}
		return *s, ex
	case core.KindBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		return nil, conversionError(v, "byte[]")
	}
	return nil, newException(jms20subset.IllegalArgumentExceptionKind, "unknown property kind", nil)
}

// javaFloatString formats f like Float.toString and Double.toString.
func javaFloatString(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

// addressOf resolves an application destination to an engine address.
func addressOf(dest jms20subset.Destination) (core.Address, jms20subset.JMSException) {
	switch d := dest.(type) {
	case nil:
		return core.Address{}, newException(jms20subset.InvalidDestinationExceptionKind, "destination is nil", nil)
	case coreDestination:
		return d.address(), nil
	case jms20subset.Topic:
		return core.Address{Name: d.GetTopicName(), Topic: true}, nil
	case jms20subset.Queue:
		return core.Address{Name: d.GetQueueName()}, nil
	}
	return core.Address{}, newException(jms20subset.InvalidDestinationExceptionKind, "unsupported destination type", nil)
}
