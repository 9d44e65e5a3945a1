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
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

func strPtr(s string) *string {
	return &s
}

func TestPropertyNames(t *testing.T) {
	Convey("Property names are validated before anything else", t, func() {
		msg := newTextMessage(nil)

		So(msg.SetStringProperty("", strPtr("v")), shouldBeKind, jms20subset.IllegalArgumentExceptionKind)
		So(msg.SetIntProperty("1abc", 1), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetIntProperty("a-b", 1), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetBooleanProperty("and", true), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetBooleanProperty("NULL", true), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetStringProperty("JMSPriority", strPtr("x")), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetStringProperty("JMS_Unknown", strPtr("x")), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetStringProperty("JMSXUnknown", strPtr("x")), shouldBeKind, jms20subset.MessageFormatExceptionKind)

		So(msg.SetStringProperty("$dollar_name9", strPtr("x")), ShouldBeNil)
		So(msg.SetStringProperty("ünïcode", strPtr("x")), ShouldBeNil)
	})

	Convey("Provider-set JMSX properties cannot be written", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetStringProperty("JMSXUserID", strPtr("me")), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)
		So(msg.SetStringProperty("JMSXAppID", strPtr("me")), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)
		So(msg.SetIntProperty("JMSXDeliveryCount", 3), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)

		So(msg.SetStringProperty("JMSXGroupID", strPtr("g1")), ShouldBeNil)
		So(msg.SetIntProperty("JMSXGroupSeq", 1), ShouldBeNil)
		So(msg.SetStringProperty("JMSXGroupSeq", strPtr("1")), shouldBeKind, jms20subset.JMSExceptionKind)
	})

	Convey("Provider properties must carry their declared type", t, func() {
		msg := newBytesMessage(false)
		So(msg.SetIntProperty("JMS_IBM_Encoding", 273), ShouldBeNil)
		So(msg.SetStringProperty("JMS_IBM_Encoding", strPtr("273")), shouldBeKind, jms20subset.JMSExceptionKind)
		So(msg.SetLongProperty("JMS_IBM_Feedback", 1), shouldBeKind, jms20subset.JMSExceptionKind)
		So(msg.SetStringProperty("JMS_IBM_Format", strPtr("MQSTR")), ShouldBeNil)
	})

	Convey("Byte arrays are only allowed for provider properties", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetObjectProperty("custom", []byte{1}), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetObjectProperty("JMS_IBM_MQMD_MsgId", []byte{1, 2}), ShouldBeNil)

		v, ex := msg.GetObjectProperty("JMS_IBM_MQMD_MsgId")
		So(ex, ShouldBeNil)
		So(v, ShouldResemble, []byte{1, 2})

		_, ex = msg.GetStringProperty("JMS_IBM_MQMD_MsgId")
		So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
	})

	Convey("CheckPropertyName can be used on its own", t, func() {
		So(CheckPropertyName("ok"), ShouldBeNil)
		So(CheckPropertyName("between"), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(CheckPropertyType("JMSXGroupSeq", core.Property{Kind: core.KindInt, Int: 1}), ShouldBeNil)
	})
}

func TestPropertyConversions(t *testing.T) {
	Convey("Given a message with properties of each type", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetBooleanProperty("b", true), ShouldBeNil)
		So(msg.SetByteProperty("y", -5), ShouldBeNil)
		So(msg.SetShortProperty("s", 300), ShouldBeNil)
		So(msg.SetIntProperty("i", 70000), ShouldBeNil)
		So(msg.SetLongProperty("l", math.MaxInt64), ShouldBeNil)
		So(msg.SetFloatProperty("f", 1.5), ShouldBeNil)
		So(msg.SetDoubleProperty("d", 1e10), ShouldBeNil)
		So(msg.SetStringProperty("str", strPtr("42")), ShouldBeNil)
		So(msg.SetStringProperty("word", strPtr("TRUE")), ShouldBeNil)

		Convey("integers widen but never narrow", func() {
			l, ex := msg.GetLongProperty("y")
			So(ex, ShouldBeNil)
			So(l, ShouldEqual, int64(-5))

			i, ex := msg.GetIntProperty("s")
			So(ex, ShouldBeNil)
			So(i, ShouldEqual, int32(300))

			_, ex = msg.GetShortProperty("i")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
			_, ex = msg.GetIntProperty("l")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
			_, ex = msg.GetIntProperty("b")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
		})

		Convey("floats widen but never narrow", func() {
			d, ex := msg.GetDoubleProperty("f")
			So(ex, ShouldBeNil)
			So(d, ShouldEqual, 1.5)

			_, ex = msg.GetFloatProperty("d")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
			_, ex = msg.GetDoubleProperty("i")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
		})

		Convey("strings are parsed", func() {
			i, ex := msg.GetIntProperty("str")
			So(ex, ShouldBeNil)
			So(i, ShouldEqual, int32(42))

			f, ex := msg.GetFloatProperty("str")
			So(ex, ShouldBeNil)
			So(f, ShouldEqual, float32(42))

			b, ex := msg.GetBooleanProperty("word")
			So(ex, ShouldBeNil)
			So(b, ShouldBeTrue)

			_, ex = msg.GetIntProperty("word")
			So(ex, shouldBeKind, jms20subset.NumberFormatExceptionKind)
			_, ex = msg.GetByteProperty("s")
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
		})

		Convey("everything converts to a string", func() {
			for name, want := range map[string]string{
				"b": "true",
				"y": "-5",
				"l": "9223372036854775807",
				"f": "1.5",
				"d": "1.0E10",
			} {
				s, ex := msg.GetStringProperty(name)
				So(ex, ShouldBeNil)
				So(*s, ShouldEqual, want)
			}
		})

		Convey("missing properties behave like null", func() {
			b, ex := msg.GetBooleanProperty("missing")
			So(ex, ShouldBeNil)
			So(b, ShouldBeFalse)

			s, ex := msg.GetStringProperty("missing")
			So(ex, ShouldBeNil)
			So(s, ShouldBeNil)

			_, ex = msg.GetIntProperty("missing")
			So(ex, shouldBeKind, jms20subset.NumberFormatExceptionKind)
			_, ex = msg.GetDoubleProperty("missing")
			So(ex, shouldBeKind, jms20subset.NullPointerExceptionKind)

			exists, _ := msg.PropertyExists("missing")
			So(exists, ShouldBeFalse)
		})

		Convey("a nil string removes the property", func() {
			So(msg.SetStringProperty("str", nil), ShouldBeNil)
			exists, _ := msg.PropertyExists("str")
			So(exists, ShouldBeFalse)
		})

		Convey("property names are listed in order", func() {
			names, ex := msg.GetPropertyNames()
			So(ex, ShouldBeNil)
			So(names, ShouldResemble, []string{"b", "d", "f", "i", "l", "s", "str", "word", "y"})
		})
	})

	Convey("SetObjectProperty stores a Go int as a JMS int", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetObjectProperty("n", 7), ShouldBeNil)
		v, _ := msg.GetObjectProperty("n")
		So(v, ShouldEqual, int32(7))

		So(msg.SetObjectProperty("n", 1<<40), shouldBeKind, jms20subset.MessageFormatExceptionKind)
		So(msg.SetObjectProperty("n", struct{}{}), shouldBeKind, jms20subset.MessageFormatExceptionKind)
	})

	Convey("Floats print the way Java prints them", t, func() {
		So(javaFloatString(100, 64), ShouldEqual, "100.0")
		So(javaFloatString(1e7, 64), ShouldEqual, "1.0E7")
		So(javaFloatString(1.25e-4, 64), ShouldEqual, "1.25E-4")
		So(javaFloatString(float64(float32(0.1)), 32), ShouldEqual, "0.1")
		So(javaFloatString(math.Inf(-1), 64), ShouldEqual, "-Infinity")
		So(javaFloatString(math.Copysign(0, -1), 64), ShouldEqual, "-0.0")
	})
}

func TestConvertPropertyToType(t *testing.T) {
	Convey("Values convert by property kind", t, func() {
		v, ex := ConvertPropertyToType("12", core.KindShort)
		So(ex, ShouldBeNil)
		So(v, ShouldEqual, int16(12))

		v, ex = ConvertPropertyToType(int8(7), core.KindLong)
		So(ex, ShouldBeNil)
		So(v, ShouldEqual, int64(7))

		v, ex = ConvertPropertyToType(float32(1.5), core.KindDouble)
		So(ex, ShouldBeNil)
		So(v, ShouldEqual, float64(1.5))

		v, ex = ConvertPropertyToType(true, core.KindString)
		So(ex, ShouldBeNil)
		So(v, ShouldEqual, "true")

		v, ex = ConvertPropertyToType("TRUE", core.KindBool)
		So(ex, ShouldBeNil)
		So(v, ShouldEqual, true)

		v, ex = ConvertPropertyToType([]byte{1}, core.KindBytes)
		So(ex, ShouldBeNil)
		So(v, ShouldResemble, []byte{1})
	})

	Convey("Widening only goes one way", t, func() {
		_, ex := ConvertPropertyToType(int32(1), core.KindShort)
		So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)

		_, ex = ConvertPropertyToType("x", core.KindInt)
		So(ex, shouldBeKind, jms20subset.NumberFormatExceptionKind)

		_, ex = ConvertPropertyToType("bytes", core.KindBytes)
		So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
	})

	Convey("Missing values convert like the getters", t, func() {
		v, ex := ConvertPropertyToType(nil, core.KindString)
		So(ex, ShouldBeNil)
		So(v, ShouldBeNil)

		_, ex = ConvertPropertyToType(nil, core.KindInt)
		So(ex, shouldBeKind, jms20subset.NumberFormatExceptionKind)

		_, ex = ConvertPropertyToType(nil, core.KindFloat)
		So(ex, shouldBeKind, jms20subset.NullPointerExceptionKind)
	})
}

func TestMessageHeaders(t *testing.T) {
	Convey("A reply-to destination marks the message as a request", t, func() {
		msg := newTextMessage(nil)
		q := &QueueImpl{queueName: "REPLY"}
		So(msg.SetJMSReplyTo(q), ShouldBeNil)
		So(msg.GetJMSReplyTo(), ShouldEqual, q)
		So(msg.msg.Properties[propMsgType].Int, ShouldEqual, int64(msgTypeRequest))

		So(msg.SetJMSReplyTo(nil), ShouldBeNil)
		So(msg.GetJMSReplyTo(), ShouldBeNil)
		So(msg.msg.Properties[propMsgType].Int, ShouldEqual, int64(msgTypeDatagram))
	})

	Convey("Correlation IDs set as bytes read back in ID form", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetJMSCorrelationIDAsBytes([]byte{0xab, 0x01}), ShouldBeNil)
		So(msg.GetJMSCorrelationID(), ShouldEqual, "ID:AB01")

		So(msg.SetJMSCorrelationID("plain"), ShouldBeNil)
		So(msg.GetJMSCorrelationIDAsBytes(), ShouldResemble, []byte("plain"))
	})

	Convey("Priorities outside 0 to 9 are rejected", t, func() {
		msg := newTextMessage(nil)
		So(msg.SetJMSPriority(10), shouldBeKind, jms20subset.JMSExceptionKind)
		So(msg.SetJMSPriority(9), ShouldBeNil)
		So(msg.GetJMSPriority(), ShouldEqual, 9)
	})

	Convey("A received message is read-only until cleared", t, func() {
		jm := core.NewJsMessage(core.BodyText)
		text := "hello"
		jm.Text = &text
		jm.Properties["p"] = core.Property{Kind: core.KindInt, Int: 1}
		jm.RedeliveredCount = 2

		msg := InboundMessagePath(jm, nil)
		tm, ok := msg.(*TextMessageImpl)
		So(ok, ShouldBeTrue)

		So(tm.SetText("x"), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)
		So(tm.SetIntProperty("q", 1), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)

		count, ex := tm.GetIntProperty("JMSXDeliveryCount")
		So(ex, ShouldBeNil)
		So(count, ShouldEqual, int32(3))
		So(tm.GetJMSRedelivered(), ShouldBeTrue)

		So(tm.Acknowledge(), shouldBeKind, jms20subset.IllegalStateExceptionKind)

		So(tm.ClearBody(), ShouldBeNil)
		So(tm.SetText("x"), ShouldBeNil)
		So(tm.ClearProperties(), ShouldBeNil)
		So(tm.SetIntProperty("q", 1), ShouldBeNil)
	})

	Convey("Received bytes messages start in read mode", t, func() {
		jm := core.NewJsMessage(core.BodyBytes)
		jm.Body = []byte{0, 0, 0, 5}
		msg := InboundMessagePath(jm, nil).(*BytesMessageImpl)

		i, ex := msg.ReadInt()
		So(ex, ShouldBeNil)
		So(i, ShouldEqual, int32(5))
		So(msg.WriteInt(1), shouldBeKind, jms20subset.MessageNotWriteableExceptionKind)
	})
}

func TestDestinations(t *testing.T) {
	Convey("Destinations parse from URIs", t, func() {
		d, ex := ParseDestination("queue://Q1")
		So(ex, ShouldBeNil)
		So(d.(jms20subset.Queue).GetQueueName(), ShouldEqual, "Q1")

		d, ex = ParseDestination("topic://T1?busName=B2")
		So(ex, ShouldBeNil)
		a, ex := addressOf(d)
		So(ex, ShouldBeNil)
		So(a, ShouldResemble, core.Address{Name: "T1", Topic: true, BusName: "B2"})

		d, ex = ParseDestination("BARE")
		So(ex, ShouldBeNil)
		So(d.GetDestinationName(), ShouldEqual, "BARE")

		_, ex = ParseDestination("http://x")
		So(ex, shouldBeKind, jms20subset.InvalidDestinationExceptionKind)
		_, ex = ParseDestination("queue://")
		So(ex, shouldBeKind, jms20subset.InvalidDestinationExceptionKind)
	})

	Convey("Durable subscription names are qualified by client ID", t, func() {
		name, ex := CoreDurableSubName("client", "sub")
		So(ex, ShouldBeNil)
		So(name, ShouldEqual, "client##sub")

		_, ex = CoreDurableSubName("client", "")
		So(ex, shouldBeKind, jms20subset.InvalidDestinationExceptionKind)
	})
}
