package channel

import (
	"context"
	"crypto/tls"
	"net"
)

// NewTLSConfig creates a TLS configuration compatible with cast receivers.
// Receivers present a self-signed device certificate that rotates, so there
// is nothing to verify against; authentication happens at the protocol layer.
func NewTLSConfig() *tls.Config {
	return &tls.Config{
		// Receiver certificates are self-signed per device
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
}

// Dialer opens the transport connection for a channel. Tests substitute an
// in-memory pipe here; production channels use the TLS dialer below.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// tlsDial is the default Dialer: TCP then a TLS handshake, both bounded by
// ctx. The raw connection is closed on every failure path so a handshake
// error never leaks a half-open socket.
func tlsDial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(raw, NewTLSConfig())
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	return conn, nil
}
