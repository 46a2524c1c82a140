package core

import (
	"net"
	"time"
)

// RoundTripResult is the end result of one probe.
type RoundTripResult int

const (
	// Replied is the result of when an echo request is successfully replied
	Replied RoundTripResult = iota
	// TimedOut is the result of when an echo request does not receive a reply in the expected time
	TimedOut
	// SendFailed is the result of when an echo request could not be transmitted
	SendFailed
)

// RoundTrip describes the outcome of one probe, handed to the registered
// handlers as soon as the outcome is known.
type RoundTrip struct {
	Seq  uint16          // sequence number of the probe
	Len  int             // length of the reply datagram, successful-only
	Src  net.Addr        // source address of the reply, successful-only
	Time time.Duration   // rtt, successful-only
	Res  RoundTripResult // result
}
