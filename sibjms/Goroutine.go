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
	"runtime"
	"strconv"
	"sync/atomic"
)

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the runtime's number for the calling goroutine, read
// from the header line of its stack trace ("goroutine 18 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// callbackOwner records which goroutine is running a listener callback.
// Zero means none is.
type callbackOwner struct {
	id atomic.Uint64
}

func (o *callbackOwner) enter(gid uint64) {
	o.id.Store(gid)
}

func (o *callbackOwner) leave() {
	o.id.Store(0)
}

// isCaller reports whether the calling goroutine is inside the callback.
func (o *callbackOwner) isCaller() bool {
	id := o.id.Load()
	return id != 0 && id == goroutineID()
}
