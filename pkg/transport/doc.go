// Package transport implements the secline TLS transport: endpoint
// configuration, connection establishment with mutual authentication, and the
// server accept loop.
//
// The server runs one goroutine per accepted connection with no admission
// cap; a flood of connections can exhaust memory. Connections carry no
// deadlines by default, so a stalled peer holds its handler goroutine until
// the socket is closed.
package transport
