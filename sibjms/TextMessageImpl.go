// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"github.com/ChipArtem/sibjms/internal/core"
	"github.com/ChipArtem/sibjms/jms20subset"
)

// TextMessageImpl is a message whose body is a string.
type TextMessageImpl struct {
	MessageImpl
}

func newTextMessage(text *string) *TextMessageImpl {
	msg := &TextMessageImpl{MessageImpl: newMessageImpl(core.BodyText)}
	if text != nil {
		t := *text
		msg.msg.Text = &t
	}
	return msg
}

// SetText stores the supplied string as the body of the message.
func (msg *TextMessageImpl) SetText(newBody string) jms20subset.JMSException {
	if msg.bodyReadOnly {
		return notWriteable("message body")
	}
	msg.msg.Text = &newBody
	return nil
}

// GetText returns nil if no text has been set.
func (msg *TextMessageImpl) GetText() (*string, jms20subset.JMSException) {
	if msg.msg.Text == nil {
		return nil, nil
	}
	t := *msg.msg.Text
	return &t, nil
}

func (msg *TextMessageImpl) ClearBody() jms20subset.JMSException {
	msg.msg.Text = nil
	msg.bodyReadOnly = false
	return nil
}

// GetBody returns the text as a string, or nil when there is none.
func (msg *TextMessageImpl) GetBody() (interface{}, jms20subset.JMSException) {
	if msg.msg.Text == nil {
		return nil, nil
	}
	return *msg.msg.Text, nil
}

func (msg *TextMessageImpl) IsBodyAssignableTo(sample interface{}) bool {
	if msg.msg.Text == nil {
		return true
	}
	switch sample.(type) {
	case string, *string:
		return true
	}
	return false
}
