package core

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// echoHandler decides how the test server answers one request datagram.
type echoHandler func(conn *net.UDPConn, addr *net.UDPAddr, buf []byte)

// echoVerbatim answers every datagram by echoing it back unchanged, the
// behavior of the cooperating echo server.
func echoVerbatim(conn *net.UDPConn, addr *net.UDPAddr, buf []byte) {
	conn.WriteToUDP(buf, addr)
}

// startEchoServer runs a loopback UDP echo server for the duration of a
// test and returns the port it listens on.
func startEchoServer(t *testing.T, handler echoHandler) int {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, maxDatagramLength)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			datagram := make([]byte, n)
			copy(datagram, buf[:n])
			handler(conn, addr, datagram)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port
}

// dropSequences returns a handler that swallows requests for the given
// sequence numbers and echoes everything else.
func dropSequences(seqs ...uint16) echoHandler {
	dropped := make(map[uint16]bool)
	for _, seq := range seqs {
		dropped[seq] = true
	}
	return func(conn *net.UDPConn, addr *net.UDPAddr, buf []byte) {
		if pkt, err := ParsePacket(buf); err == nil && dropped[pkt.Seq] {
			return
		}
		conn.WriteToUDP(buf, addr)
	}
}

// testSettings returns settings tuned for fast loopback runs.
func testSettings(port, count int) *Settings {
	settings := DefaultSettings()
	settings.Port = port
	settings.Count = count
	settings.Period = 10
	settings.Timeout = 200
	return settings
}
