// File: server/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "errors"

var (
	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("server: already running")

	// ErrNotBound indicates Run was called before Bind.
	ErrNotBound = errors.New("server: not bound to a listen address")

	// ErrNoHandler indicates Run was called before SetHandler.
	ErrNoHandler = errors.New("server: no handler installed")

	// ErrBadAddress indicates Bind was given an unparsable IPv4 address.
	ErrBadAddress = errors.New("server: listen address is not IPv4")
)
