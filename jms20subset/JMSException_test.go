package jms20subset

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJMSException(t *testing.T) {
	t.Parallel()

	Convey("JMSException helpers", t, func() {
		linked := errors.New("boom")
		ex := CreateJMSException("message is read-only", MessageNotWriteableExceptionKind, linked)

		So(IsKind(ex, MessageNotWriteableExceptionKind), ShouldBeTrue)
		So(IsKind(ex, MessageEOFExceptionKind), ShouldBeFalse)
		So(IsKind(nil, MessageEOFExceptionKind), ShouldBeFalse)

		err := AsError(ex)
		So(err.Error(), ShouldEqual, "MessageNotWriteableException: message is read-only: boom")
		So(errors.Is(err, linked), ShouldBeTrue)
		So(AsError(nil), ShouldBeNil)
	})

	Convey("ApplyOptions folds options in order", t, func() {
		co := ApplyOptions(WithClientID("a"), WithDupsOkBatchSize(5), WithClientID("b"), WithMaxMsgLength(10))
		So(co.ClientID, ShouldEqual, "b")
		So(co.DupsOkBatchSize, ShouldEqual, 5)
		So(co.MaxMsgLength, ShouldEqual, 10)
		So(co.Logger, ShouldBeNil)
	})
}
