// Package transport owns the single TCP connection to a wire server.
//
// Dialers handle how the connection is established (plain TCP or through
// an SSH bastion); [Channel] layers the line-oriented request/response
// discipline of the wire protocol on top of the connection.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
