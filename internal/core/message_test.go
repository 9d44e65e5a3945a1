package core

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJsMessage(t *testing.T) {
	t.Parallel()

	Convey("JsMessage", t, func() {
		text := "hello"
		m := NewJsMessage(BodyText)
		m.ID = []byte{0x01, 0xab}
		m.Text = &text
		m.Destination = &Address{Name: "Q1"}
		m.ReplyTo = &Address{Name: "T1", Topic: true}
		m.CorrelationIDBytes = []byte{9, 9}
		for name, v := range map[string]interface{}{
			"flag":  true,
			"b":     int8(-3),
			"s":     int16(300),
			"i":     int32(-70000),
			"l":     int64(1) << 40,
			"f":     float32(1.5),
			"d":     2.25,
			"str":   "x",
			"bytes": []byte{1, 2, 3},
		} {
			p, err := NewProperty(v)
			So(err, ShouldBeNil)
			m.Properties[name] = p
		}

		Convey("survives an encode/decode round trip with property types intact", func() {
			data, err := m.Encode()
			So(err, ShouldBeNil)

			got, err := DecodeMessage(data)
			So(err, ShouldBeNil)
			So(got.BodyType, ShouldEqual, BodyText)
			So(*got.Text, ShouldEqual, "hello")
			So(got.Priority, ShouldEqual, 4)
			So(got.Persistent, ShouldBeTrue)
			So(*got.Destination, ShouldResemble, Address{Name: "Q1"})
			So(got.ReplyTo.Topic, ShouldBeTrue)
			So(got.Properties["b"].Value(), ShouldEqual, int8(-3))
			So(got.Properties["s"].Value(), ShouldEqual, int16(300))
			So(got.Properties["i"].Value(), ShouldEqual, int32(-70000))
			So(got.Properties["l"].Value(), ShouldEqual, int64(1)<<40)
			So(got.Properties["f"].Value(), ShouldEqual, float32(1.5))
			So(got.Properties["d"].Value(), ShouldEqual, 2.25)
			So(got.Properties["bytes"].Value(), ShouldResemble, []byte{1, 2, 3})
		})

		Convey("Clone does not share mutable state", func() {
			c := m.Clone()
			c.ID[0] = 0xff
			c.Destination.Name = "other"
			*c.Text = "changed"
			c.Properties["str"] = Property{Kind: KindString, Str: "y"}

			So(m.ID[0], ShouldEqual, 0x01)
			So(m.Destination.Name, ShouldEqual, "Q1")
			So(*m.Text, ShouldEqual, "hello")
			So(m.Properties["str"].Str, ShouldEqual, "x")
		})

		Convey("Lookup exposes headers and non-binary properties", func() {
			v, ok := m.Lookup("JMSDeliveryMode")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "PERSISTENT")

			v, _ = m.Lookup("JMSMessageID")
			So(v, ShouldEqual, "ID:01AB")

			v, _ = m.Lookup("JMSXDeliveryCount")
			So(v, ShouldEqual, int64(1))

			_, ok = m.Lookup("bytes")
			So(ok, ShouldBeFalse)

			_, ok = m.Lookup("JMSType")
			So(ok, ShouldBeFalse)
		})

		Convey("expiry and delivery time are measured in epoch milliseconds", func() {
			now := time.Now()
			So(m.Expired(now), ShouldBeFalse)
			m.Expiration = now.Add(-time.Second).UnixMilli()
			So(m.Expired(now), ShouldBeTrue)

			So(m.Deliverable(now), ShouldBeTrue)
			m.DeliveryTime = now.Add(time.Minute).UnixMilli()
			So(m.Deliverable(now), ShouldBeFalse)
		})
	})

	Convey("NewProperty rejects unsupported types", t, func() {
		_, err := NewProperty(struct{}{})
		So(err, ShouldNotBeNil)
	})
}
