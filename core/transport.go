package core

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Transport is a thin wrapper over one UDP socket bound to an ephemeral
// local port. The socket is shared by the sender and the receiver; UDP
// supports concurrent send and receive without extra locking.
type Transport struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// resolvePeer resolves the server address and port into a UDP address.
func resolvePeer(address string, port int) (*net.UDPAddr, error) {
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("error while resolving address %s: %w", address, err)
	}
	return peer, nil
}

// newTransport binds a local UDP socket for talking to peer. A failure here
// is the only fatal error class of a run and is surfaced before any probe
// is sent.
func newTransport(peer *net.UDPAddr) (*Transport, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("could not bind UDP socket: %w", err)
	}
	return &Transport{conn: conn, peer: peer}, nil
}

// Send transmits one datagram to the peer.
func (t *Transport) Send(buf []byte) error {
	if _, err := t.conn.WriteToUDP(buf, t.peer); err != nil {
		return fmt.Errorf("error while sending datagram: %w", err)
	}
	return nil
}

// Receive waits at most maxWait for one datagram, filling buf. It returns
// the datagram length and source address; a deadline expiry surfaces as a
// net.Error with Timeout() true.
func (t *Transport) Receive(buf []byte, maxWait time.Duration) (int, net.Addr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(maxWait)); err != nil {
		return 0, nil, fmt.Errorf("error while setting read deadline: %w", err)
	}
	return t.conn.ReadFromUDP(buf)
}

// Close releases the socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// isTimeout reports whether err is a read-deadline expiry.
func isTimeout(err error) bool {
	neterr, ok := err.(net.Error)
	return ok && neterr.Timeout()
}
