// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"testing"

	"github.com/nats-io/nuid"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ChipArtem/sibjms/jms20subset"
)

func TestConnectionFactoryFromINI(t *testing.T) {
	Convey("A factory is loaded from the sibjms section", t, func() {
		cf, err := NewConnectionFactoryFromINI([]byte(`
[sibjms]
Transport = NATS
Hostname = broker.example.com
PortNumber = 4223
BusName = ORDERS
UserName = app
Password = secret
ClientID = client-1
DupsOkBatchSize = 5
ProducerWontModifyPayloadAfterSet = true
MaxFailedDeliveries = 4
`))
		So(err, ShouldBeNil)
		So(cf.TransportType, ShouldEqual, TransportType_NATS)
		So(cf.natsURL(), ShouldEqual, "nats://broker.example.com:4223")
		So(cf.busName(), ShouldEqual, "ORDERS")
		So(cf.UserName, ShouldEqual, "app")
		So(cf.ClientID, ShouldEqual, "client-1")
		So(cf.DupsOkBatchSize, ShouldEqual, 5)
		So(cf.ProducerWontModifyPayloadAfterSet, ShouldBeTrue)
		So(cf.MaxFailedDeliveries, ShouldEqual, 4)
	})

	Convey("Missing values fall back to defaults", t, func() {
		cf, err := NewConnectionFactoryFromINI([]byte("[sibjms]\n"))
		So(err, ShouldBeNil)
		So(cf.TransportType, ShouldEqual, TransportType_MEMORY)
		So(cf.busName(), ShouldEqual, DefaultBusName)
		So(cf.natsURL(), ShouldEqual, "nats://localhost:4222")

		cf.URL = "nats://other:1234"
		So(cf.natsURL(), ShouldEqual, "nats://other:1234")
	})

	Convey("An unknown transport is an error", t, func() {
		_, err := NewConnectionFactoryFromINI([]byte("[sibjms]\nTransport = carrier-pigeon\n"))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "carrier-pigeon")
	})

	Convey("An unknown transport type cannot connect", t, func() {
		cf := ConnectionFactoryImpl{TransportType: 9}
		_, ex := cf.CreateConnection()
		So(ex, shouldBeKind, jms20subset.IllegalArgumentExceptionKind)
	})

	Convey("An unreachable NATS server is reported", t, func() {
		cf := ConnectionFactoryImpl{TransportType: TransportType_NATS, URL: "nats://127.0.0.1:1"}
		_, ex := cf.CreateContext()
		So(ex, shouldBeKind, jms20subset.JMSExceptionKind)
	})
}

func TestContextMemory(t *testing.T) {
	Convey("Given a context on the in-process transport", t, func() {
		cf := testBus()
		jc, ex := cf.CreateContext(jms20subset.WithMetricsRegisterer(prometheus.NewRegistry()))
		So(ex, ShouldBeNil)
		ctx := jc.(*ContextImpl)
		Reset(ctx.Close)

		q := ctx.CreateQueue("CTXQ")
		consumer, ex := ctx.CreateConsumer(q)
		So(ex, ShouldBeNil)
		producer := ctx.CreateProducer()

		Convey("strings round trip", func() {
			So(producer.SendString(q, "hello"), ShouldBeNil)
			body, ex := consumer.ReceiveStringBody(5000)
			So(ex, ShouldBeNil)
			So(*body, ShouldEqual, "hello")

			body, ex = consumer.ReceiveStringBodyNoWait()
			So(ex, ShouldBeNil)
			So(body, ShouldBeNil)
		})

		Convey("bytes round trip", func() {
			So(producer.SendBytes(q, []byte{1, 2, 3}), ShouldBeNil)
			body, ex := consumer.ReceiveBytesBody(5000)
			So(ex, ShouldBeNil)
			So(*body, ShouldResemble, []byte{1, 2, 3})
		})

		Convey("asking for the wrong body type is a format error", func() {
			So(producer.SendBytes(q, []byte{1}), ShouldBeNil)
			_, ex := consumer.ReceiveStringBody(5000)
			So(ex, shouldBeKind, jms20subset.MessageFormatExceptionKind)
		})

		Convey("producer settings are validated", func() {
			producer.SetPriority(3).SetDeliveryMode(jms20subset.DeliveryMode_NON_PERSISTENT).SetTimeToLive(60000)
			producer.SetPriority(-1).SetDeliveryMode(0).SetTimeToLive(-5).SetDeliveryDelay(-1)
			So(producer.GetPriority(), ShouldEqual, 3)
			So(producer.GetDeliveryMode(), ShouldEqual, jms20subset.DeliveryMode_NON_PERSISTENT)
			So(producer.GetTimeToLive(), ShouldEqual, 60000)
			So(producer.GetDeliveryDelay(), ShouldEqual, 0)

			So(producer.SendString(q, "settings"), ShouldBeNil)
			msg, ex := consumer.Receive(5000)
			So(ex, ShouldBeNil)
			So(msg.GetJMSPriority(), ShouldEqual, 3)
			So(msg.GetJMSDeliveryMode(), ShouldEqual, jms20subset.DeliveryMode_NON_PERSISTENT)
			So(msg.GetJMSExpiration(), ShouldBeGreaterThan, int64(0))
		})

		Convey("sends can complete asynchronously", func() {
			rec := newCompletionRecorder()
			producer.SetAsync(rec)
			So(producer.GetAsync(), ShouldEqual, rec)
			So(producer.SendString(q, "async"), ShouldBeNil)
			So(textOf(await(rec.completed)), ShouldEqual, "async")

			body, ex := consumer.ReceiveStringBody(5000)
			So(ex, ShouldBeNil)
			So(*body, ShouldEqual, "async")
		})

		Convey("a browser sees the queue", func() {
			So(producer.SendString(q, "browse me"), ShouldBeNil)
			browser, ex := ctx.CreateBrowser(q)
			So(ex, ShouldBeNil)
			e, ex := browser.GetEnumeration()
			So(ex, ShouldBeNil)
			So(e.HasMoreElements(), ShouldBeTrue)
			msg, _ := e.NextElement()
			So(textOf(msg), ShouldEqual, "browse me")
		})

		Convey("a selector filters what the consumer sees", func() {
			filtered, ex := ctx.CreateConsumerWithSelector(q, "JMSPriority > 5")
			So(ex, ShouldBeNil)
			consumer.Close()

			producer.SetPriority(2)
			So(producer.SendString(q, "low"), ShouldBeNil)
			producer.SetPriority(8)
			So(producer.SendString(q, "high"), ShouldBeNil)

			body, ex := filtered.ReceiveStringBody(5000)
			So(ex, ShouldBeNil)
			So(*body, ShouldEqual, "high")
		})

		Convey("Commit outside a transaction is refused", func() {
			So(ctx.Commit(), shouldBeKind, jms20subset.IllegalStateExceptionKind)
		})
	})

	Convey("A transacted context rolls back on close", t, func() {
		cf := testBus()
		jc, ex := cf.CreateContextWithSessionMode(jms20subset.JMSContextSESSIONTRANSACTED,
			jms20subset.WithMetricsRegisterer(prometheus.NewRegistry()))
		So(ex, ShouldBeNil)
		q := jc.CreateQueue("TXQ")
		So(jc.CreateProducer().SendString(q, "uncommitted"), ShouldBeNil)
		jc.Close()

		other, ex := cf.CreateContext(jms20subset.WithMetricsRegisterer(prometheus.NewRegistry()))
		So(ex, ShouldBeNil)
		defer other.Close()
		consumer, ex := other.CreateConsumer(q)
		So(ex, ShouldBeNil)
		body, ex := consumer.ReceiveStringBodyNoWait()
		So(ex, ShouldBeNil)
		So(body, ShouldBeNil)
	})

	Convey("An invalid session mode is rejected", t, func() {
		_, ex := testBus().CreateContextWithSessionMode(42)
		So(ex, shouldBeKind, jms20subset.JMSExceptionKind)
	})
}

func TestContextNATS(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	Convey("Given a context on the NATS transport", t, func() {
		cf := ConnectionFactoryImpl{
			TransportType: TransportType_NATS,
			URL:           s.ClientURL(),
			BusName:       "test" + nuid.Next(),
		}
		ctx, ex := cf.CreateContext(jms20subset.WithMetricsRegisterer(prometheus.NewRegistry()))
		So(ex, ShouldBeNil)
		Reset(ctx.Close)

		q := ctx.CreateQueue("NQ")
		consumer, ex := ctx.CreateConsumer(q)
		So(ex, ShouldBeNil)

		Convey("messages round trip through the server", func() {
			So(ctx.CreateProducer().SendString(q, "over nats"), ShouldBeNil)
			body, ex := consumer.ReceiveStringBody(5000)
			So(ex, ShouldBeNil)
			So(body, ShouldNotBeNil)
			So(*body, ShouldEqual, "over nats")
		})

		Convey("bytes keep their content", func() {
			So(ctx.CreateProducer().SendBytes(q, []byte("raw")), ShouldBeNil)
			body, ex := consumer.ReceiveBytesBody(5000)
			So(ex, ShouldBeNil)
			So(string(*body), ShouldEqual, "raw")
		})

		Convey("browsing is not supported", func() {
			_, ex := ctx.CreateBrowser(q)
			So(ex, shouldBeKind, jms20subset.UnsupportedOperationExceptionKind)
		})
	})
}
