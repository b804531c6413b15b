// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the public contracts of the netcore runtime:
// the connection handle, the application handler callbacks, and the
// disconnect reason codes surfaced through them.
//
// Implementations live in the server package; api stays import-light so
// applications can depend on it without pulling in the runtime.
package api
