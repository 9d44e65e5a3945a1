package k6sib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nats-io/nuid"
	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "sib.ini")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestK6SIB(t *testing.T) {
	Convey("Given a module connected to an in-process bus", t, func() {
		path := writeConfig(t, "[sibjms]\nTransport = memory\nBusName = k6-"+nuid.Next()+"\n")

		k, err := new(K6SIB).Connect(path, "LOOP", "LOOP")
		So(err, ShouldBeNil)
		Reset(k.Close)

		Convey("a written message can be read back", func() {
			So(k.Write("ping"), ShouldBeNil)
			body, err := k.Read()
			So(err, ShouldBeNil)
			So(body, ShouldEqual, "ping")
		})

		Convey("reading an empty queue gives up with an error", func() {
			_, err := k.Read()
			So(err, ShouldNotBeNil)
		})

		Convey("a closed module refuses to work", func() {
			k.Close()
			So(k.Write("x"), ShouldNotBeNil)
			_, err := k.Read()
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A missing config file fails to connect", t, func() {
		_, err := new(K6SIB).Connect(filepath.Join(t.TempDir(), "missing.ini"), "A", "B")
		So(err, ShouldNotBeNil)
	})
}

func TestMngSIB(t *testing.T) {
	Convey("A manager moves bytes between two queues", t, func() {
		path := writeConfig(t, "[sibjms]\nBusName = mng-"+nuid.Next()+"\n")

		writer, err := NewSIBMngFromINI(path, "REQUEST", "REPLY")
		So(err, ShouldBeNil)
		defer writer.Close()
		responder, err := NewSIBMngFromINI(path, "REPLY", "REQUEST")
		So(err, ShouldBeNil)
		defer responder.Close()

		So(writer.WriteMessage([]byte("question")), ShouldBeNil)
		got, err := responder.ReadMessage()
		So(err, ShouldBeNil)
		So(string(got), ShouldEqual, "question")

		So(responder.WriteMessage([]byte("answer")), ShouldBeNil)
		got, err = writer.ReadMessage()
		So(err, ShouldBeNil)
		So(string(got), ShouldEqual, "answer")
	})
}
