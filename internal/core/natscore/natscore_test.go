package natscore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ChipArtem/sibjms/internal/core"
)

func runServer() *server.Server {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	return natsserver.RunServer(&opts)
}

func textMessage(dest core.Address, body string) *core.JsMessage {
	m := core.NewJsMessage(core.BodyText)
	m.Text = &body
	m.Destination = &dest
	return m
}

func receive(cs core.ConsumerSession) core.LockedMessage {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lm, err := cs.Receive(ctx)
	So(err, ShouldBeNil)
	So(lm, ShouldNotBeNil)
	return lm
}

func TestNATSEngine(t *testing.T) {
	s := runServer()
	defer s.Shutdown()
	url := s.ClientURL()

	Convey("With a NATS connection", t, func() {
		ctx := context.Background()
		conn, err := Connect(url, WithSubjectPrefix("test"), WithMaxFailedDeliveries(2))
		So(err, ShouldBeNil)
		defer conn.Close()
		q := core.Address{Name: "orders." + conn.ConnectionID()}

		Convey("a queue message reaches one consumer", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "hello"), nil), ShouldBeNil)

			lm := receive(cs)
			So(*lm.Message().Text, ShouldEqual, "hello")
			So(lm.Delete(nil), ShouldBeNil)
		})

		Convey("an unlocked message is redelivered with its count raised", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "again"), nil), ShouldBeNil)

			lm := receive(cs)
			So(lm.Unlock(), ShouldBeNil)

			lm = receive(cs)
			So(lm.Message().RedeliveredCount, ShouldEqual, 1)
			So(lm.Delete(nil), ShouldBeNil)
		})

		Convey("a message failing too often goes to the exception destination", func() {
			ex, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: core.Address{Name: core.ExceptionDestination}})
			So(err, ShouldBeNil)
			defer ex.Close()
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "poison"), nil), ShouldBeNil)

			So(receive(cs).Unlock(), ShouldBeNil)
			So(receive(cs).Unlock(), ShouldBeNil)

			lm := receive(ex)
			So(*lm.Message().Text, ShouldEqual, "poison")
		})

		Convey("transacted sends are published on commit only", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			tran, err := conn.CreateUncoordinatedTransaction()
			So(err, ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "t"), tran), ShouldBeNil)

			lm, err := cs.ReceiveNoWait()
			So(err, ShouldBeNil)
			So(lm, ShouldBeNil)

			So(tran.Commit(ctx), ShouldBeNil)
			So(*receive(cs).Message().Text, ShouldEqual, "t")
			So(errors.Cause(tran.Commit(ctx)), ShouldEqual, core.ErrTransactionCompleted)
		})

		Convey("a rolled back receive is redelivered", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "r"), nil), ShouldBeNil)
			tran, err := conn.CreateUncoordinatedTransaction()
			So(err, ShouldBeNil)

			So(receive(cs).Delete(tran), ShouldBeNil)
			So(tran.Rollback(ctx), ShouldBeNil)

			lm := receive(cs)
			So(*lm.Message().Text, ShouldEqual, "r")
			So(lm.Message().RedeliveredCount, ShouldEqual, 1)
		})

		Convey("selectors filter topic messages", func() {
			topic := core.Address{Name: "prices." + conn.ConnectionID(), Topic: true}
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: topic, Selector: "colour = 'red'"})
			So(err, ShouldBeNil)

			blue := textMessage(topic, "blue")
			blue.Properties["colour"] = core.Property{Kind: core.KindString, Str: "blue"}
			red := textMessage(topic, "red")
			red.Properties["colour"] = core.Property{Kind: core.KindString, Str: "red"}
			So(conn.Send(ctx, topic, blue, nil), ShouldBeNil)
			So(conn.Send(ctx, topic, red, nil), ShouldBeNil)

			So(*receive(cs).Message().Text, ShouldEqual, "red")
		})

		Convey("noLocal topic consumers skip their own connection", func() {
			topic := core.Address{Name: "local." + conn.ConnectionID(), Topic: true}
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: topic, NoLocal: true})
			So(err, ShouldBeNil)

			own := textMessage(topic, "own")
			own.ProducerConnID = conn.ConnectionID()
			So(conn.Send(ctx, topic, own, nil), ShouldBeNil)
			So(conn.Send(ctx, topic, textMessage(topic, "other"), nil), ShouldBeNil)

			So(*receive(cs).Message().Text, ShouldEqual, "other")
		})

		Convey("a persistent send without a deadline is confirmed by the server", func() {
			m := textMessage(q, "persistent")
			So(m.Persistent, ShouldBeTrue)
			So(conn.Send(context.Background(), q, m, nil), ShouldBeNil)
		})

		Convey("a delayed message is held back without blocking later ones", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			late := textMessage(q, "late")
			late.Persistent = false
			late.DeliveryTime = time.Now().Add(time.Hour).UnixMilli()
			So(conn.Send(ctx, q, late, nil), ShouldBeNil)
			So(conn.Send(ctx, q, textMessage(q, "now"), nil), ShouldBeNil)

			lm := receive(cs)
			So(*lm.Message().Text, ShouldEqual, "now")
			So(lm.Delete(nil), ShouldBeNil)

			for i := 0; i < 3; i++ {
				lm, err := cs.ReceiveNoWait()
				So(err, ShouldBeNil)
				So(lm, ShouldBeNil)
			}
		})

		Convey("a delayed message arrives once it is due", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			soon := textMessage(q, "soon")
			soon.DeliveryTime = time.Now().Add(100 * time.Millisecond).UnixMilli()
			start := time.Now()
			So(conn.Send(ctx, q, soon, nil), ShouldBeNil)

			lm := receive(cs)
			So(*lm.Message().Text, ShouldEqual, "soon")
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 90*time.Millisecond)
		})

		Convey("a durable subscription keeps messages while no consumer is attached", func() {
			topic := core.Address{Name: "news." + conn.ConnectionID(), Topic: true}
			spec := core.ConsumerSpec{Dest: topic, DurableName: "client##news"}
			sub, err := conn.CreateConsumerSession(spec)
			So(err, ShouldBeNil)
			_, err = conn.CreateConsumerSession(spec)
			So(errors.Cause(err), ShouldEqual, core.ErrSubscriptionInUse)
			So(errors.Cause(conn.Unsubscribe("client##news")), ShouldEqual, core.ErrSubscriptionInUse)
			So(sub.Close(), ShouldBeNil)

			So(conn.Send(ctx, topic, textMessage(topic, "while away"), nil), ShouldBeNil)
			sub, err = conn.CreateConsumerSession(spec)
			So(err, ShouldBeNil)
			lm := receive(sub)
			So(*lm.Message().Text, ShouldEqual, "while away")

			Convey("an unlocked message waits for the next consumer", func() {
				So(sub.Close(), ShouldBeNil)
				So(lm.Unlock(), ShouldBeNil)

				sub, err = conn.CreateConsumerSession(spec)
				So(err, ShouldBeNil)
				lm = receive(sub)
				So(*lm.Message().Text, ShouldEqual, "while away")
				So(lm.Message().RedeliveredCount, ShouldEqual, 1)
				So(sub.Close(), ShouldBeNil)
			})

			Convey("unsubscribing removes it", func() {
				So(lm.Delete(nil), ShouldBeNil)
				So(sub.Close(), ShouldBeNil)
				So(conn.Unsubscribe("client##news"), ShouldBeNil)
				So(errors.Cause(conn.Unsubscribe("client##news")), ShouldEqual, core.ErrSubscriptionNotFound)
			})
		})

		Convey("durable subscriptions need a topic", func() {
			_, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q, DurableName: "d"})
			So(errors.Cause(err), ShouldEqual, core.ErrDestinationNotFound)
		})

		Convey("browsing is not supported", func() {
			_, err = conn.CreateBrowserSession(q, "")
			So(errors.Cause(err), ShouldEqual, core.ErrNotSupported)
		})

		Convey("temporary queues cannot be deleted while consumed", func() {
			tq, err := conn.CreateTemporaryQueue()
			So(err, ShouldBeNil)
			So(tq.Name, ShouldStartWith, "_INBOX.")
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: tq})
			So(err, ShouldBeNil)
			So(errors.Cause(conn.DeleteTemporaryDestination(tq)), ShouldEqual, core.ErrDestinationInUse)
			So(cs.Close(), ShouldBeNil)
			So(conn.DeleteTemporaryDestination(tq), ShouldBeNil)
			_, err = conn.CreateConsumerSession(core.ConsumerSpec{Dest: tq})
			So(errors.Cause(err), ShouldEqual, core.ErrDestinationNotFound)
		})

		Convey("a closed session stops a blocked receive", func() {
			cs, err := conn.CreateConsumerSession(core.ConsumerSpec{Dest: q})
			So(err, ShouldBeNil)
			go func() {
				time.Sleep(20 * time.Millisecond)
				cs.Close()
			}()
			_, err = cs.Receive(ctx)
			So(err, ShouldEqual, core.ErrClosed)
		})
	})

	Convey("A send after the server went away reports a lost connection", t, func() {
		s2 := runServer()
		conn, err := Connect(s2.ClientURL())
		So(err, ShouldBeNil)
		defer conn.Close()
		s2.Shutdown()
		conn.nc.Close()

		q := core.Address{Name: "gone"}
		err = conn.Send(context.Background(), q, textMessage(q, "x"), nil)
		So(errors.Cause(err), ShouldEqual, core.ErrConnectionLost)
	})
}
