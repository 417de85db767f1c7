package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// frameGroupTag prepends key to payload. Every datagram this package sends
// carries the fleet's group-tag key so that unrelated UDP traffic sharing
// the same broadcast port is ignored rather than mistaken for a peer
// (§4.2 "so foreign traffic is ignored").
func frameGroupTag(key string, payload []byte) []byte {
	out := make([]byte, 0, len(key)+len(payload))
	out = append(out, key...)
	out = append(out, payload...)
	return out
}

// stripGroupTag removes a leading key and returns the remainder, or an
// error if the datagram is too short or tagged with someone else's key —
// callers drop the datagram silently, per §7 "malformed datagram ... not
// fatal".
func stripGroupTag(key string, datagram []byte) ([]byte, error) {
	if len(datagram) < len(key) {
		return nil, fmt.Errorf("datagram shorter than group key")
	}
	if !bytes.Equal(datagram[:len(key)], []byte(key)) {
		return nil, fmt.Errorf("datagram carries a foreign group key")
	}
	return datagram[len(key):], nil
}

// uplinkSeqLen is the width of the sequence number prefix on every uplink
// packet (§4.3 "16-bit little-endian monotonic sequence number").
const uplinkSeqLen = 2

// frameUplink prepends a little-endian seq to a marshaled ElevatorContainer.
func frameUplink(seq uint16, containerBytes []byte) []byte {
	out := make([]byte, uplinkSeqLen+len(containerBytes))
	binary.LittleEndian.PutUint16(out, seq)
	copy(out[uplinkSeqLen:], containerBytes)
	return out
}

// parseUplink splits a framed uplink datagram back into its sequence
// number and container payload.
func parseUplink(datagram []byte) (seq uint16, containerBytes []byte, err error) {
	if len(datagram) < uplinkSeqLen {
		return 0, nil, fmt.Errorf("uplink datagram shorter than sequence prefix")
	}
	seq = binary.LittleEndian.Uint16(datagram[:uplinkSeqLen])
	return seq, datagram[uplinkSeqLen:], nil
}

// frameAck encodes R copies of seq back-to-back, the ack format specified
// in §4.3 ("R copies of the 16-bit sequence number").
func frameAck(seq uint16, r int) []byte {
	if r < 1 {
		r = 1
	}
	out := make([]byte, uplinkSeqLen*r)
	for i := 0; i < r; i++ {
		binary.LittleEndian.PutUint16(out[i*uplinkSeqLen:], seq)
	}
	return out
}

// parseAck reads the first sequence number out of an ack datagram — any
// one of the R redundant copies suffices, since they're identical.
func parseAck(datagram []byte) (uint16, error) {
	if len(datagram) < uplinkSeqLen {
		return 0, fmt.Errorf("ack datagram shorter than sequence field")
	}
	return binary.LittleEndian.Uint16(datagram[:uplinkSeqLen]), nil
}
