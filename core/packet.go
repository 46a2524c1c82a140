package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// echoRequest and echoReply are the type markers of the two kinds of
	// echo datagrams, matching the ICMP echo types.
	echoRequest = 8
	echoReply   = 0

	echoCode = 0

	// headerLength is the fixed size of the datagram header:
	// type (1), code (1), checksum (2), id (2), seq (2), payload length (2).
	headerLength = 10

	// maxPayloadLength caps the payload so that header+payload always fits
	// in a single UDP datagram.
	maxPayloadLength = 65507 - headerLength
)

var (
	// ErrTruncated is returned when a datagram is shorter than its header
	// or than the length its header declares.
	ErrTruncated = errors.New("truncated datagram")

	// ErrWrongType is returned when the type marker is not an echo request
	// or an echo reply.
	ErrWrongType = errors.New("not an echo datagram")

	// ErrCorrupt is returned when the checksum does not verify.
	ErrCorrupt = errors.New("checksum verification failed")
)

// Packet is one echo datagram, request or reply. The server echoes requests
// verbatim, so both directions share the layout.
type Packet struct {
	Type    uint8
	Code    uint8
	ID      uint16
	Seq     uint16
	Payload []byte
}

// Marshal serializes the packet into its wire form, computing the checksum
// over the whole buffer with the checksum field zeroed.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, headerLength+len(p.Payload))
	buf[0] = p.Type
	buf[1] = p.Code
	// checksum field at buf[2:4] stays zero during the sum
	binary.BigEndian.PutUint16(buf[4:6], p.ID)
	binary.BigEndian.PutUint16(buf[6:8], p.Seq)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(p.Payload)))
	copy(buf[headerLength:], p.Payload)
	binary.BigEndian.PutUint16(buf[2:4], checksum(buf))
	return buf
}

// ParsePacket parses and validates a received datagram. Any returned error
// means the datagram is unusable and should be discarded; none of them is
// fatal to a run.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < headerLength {
		return nil, fmt.Errorf("%w: %d bytes of min %d", ErrTruncated, len(buf), headerLength)
	}
	if buf[0] != echoRequest && buf[0] != echoReply {
		return nil, fmt.Errorf("%w: type %d", ErrWrongType, buf[0])
	}
	if !checksumValid(buf) {
		return nil, ErrCorrupt
	}

	length := int(binary.BigEndian.Uint16(buf[8:10]))
	if headerLength+length != len(buf) {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, datagram carries %d",
			ErrTruncated, length, len(buf)-headerLength)
	}

	return &Packet{
		Type:    buf[0],
		Code:    buf[1],
		ID:      binary.BigEndian.Uint16(buf[4:6]),
		Seq:     binary.BigEndian.Uint16(buf[6:8]),
		Payload: buf[headerLength : headerLength+length],
	}, nil
}

// fold returns the ones'-complement sum of all 16-bit big-endian words of
// buf, folded to 16 bits. An odd trailing byte is padded with zero.
func fold(buf []byte) uint16 {
	var sum uint32
	for ; len(buf) >= 2; buf = buf[2:] {
		sum += uint32(binary.BigEndian.Uint16(buf))
	}
	if len(buf) == 1 {
		sum += uint32(buf[0]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return uint16(sum)
}

// checksum returns the RFC 792 checksum of buf: the complemented folded
// ones'-complement sum. The checksum field must be zero in buf.
func checksum(buf []byte) uint16 {
	return ^fold(buf)
}

// checksumValid reports whether a datagram carrying its checksum sums to
// all ones, the standard verification for this checksum family.
func checksumValid(buf []byte) bool {
	return fold(buf) == 0xffff
}
