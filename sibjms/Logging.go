// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// The package logger writes info and above; per-message events are logged
// at debug level.
var logger = log.With().Str("pkg", "sibjms").Logger().Level(zerolog.InfoLevel)

// SetLogger replaces the package logger. Connections created afterwards log
// through l; call it before creating any connection.
func SetLogger(l zerolog.Logger) {
	logger = l.With().Str("pkg", "sibjms").Logger()
}
