// File: wire/frame.go
// Author: momentics <momentics@gmail.com>
//
// Packet framing: a 4-byte little-endian length prefix followed by the
// payload. Adapted from the WebSocket frame codec this lineage used to
// carry (FIN bit, opcode, mask key, variable-width extended length) down
// to the simpler fixed-width length-prefix format this protocol uses.

package wire

import (
	"encoding/binary"

	"github.com/localpath/datapath/api"
)

// HeaderSize is the fixed width of the length prefix.
const HeaderSize = 4

// MaxPayload is the largest payload a single packet may carry.
const MaxPayload = 1 << 20 // 1 MiB

// DecodeHeader reads the 4-byte little-endian length prefix from header,
// which must be at least HeaderSize bytes. It returns api.ErrBadSize if
// the declared length exceeds MaxPayload.
func DecodeHeader(header []byte) (uint32, error) {
	if len(header) < HeaderSize {
		return 0, api.ErrBadHeader
	}
	n := binary.LittleEndian.Uint32(header[:HeaderSize])
	if n > MaxPayload {
		return 0, api.ErrBadSize
	}
	return n, nil
}

// PutHeader writes the length prefix for a payload of size n into header,
// which must be at least HeaderSize bytes long. It returns api.ErrBadSize
// if n exceeds MaxPayload.
func PutHeader(header []byte, n int) error {
	if n < 0 || n > MaxPayload {
		return api.ErrBadSize
	}
	if len(header) < HeaderSize {
		return api.ErrBadHeader
	}
	binary.LittleEndian.PutUint32(header[:HeaderSize], uint32(n))
	return nil
}

// Encode returns a single buffer holding the header followed by payload,
// ready to hand to a single Write call. It returns api.ErrBadSize if
// payload exceeds MaxPayload.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, api.ErrBadSize
	}
	buf := make([]byte, HeaderSize+len(payload))
	if err := PutHeader(buf[:HeaderSize], len(payload)); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Decode splits a buffer previously produced by Encode back into its
// payload, validating the embedded length against the buffer's actual
// size. It returns api.ErrBadHeader if buf is shorter than HeaderSize,
// api.ErrBadSize if the declared length is out of range or inconsistent
// with len(buf).
func Decode(buf []byte) ([]byte, error) {
	n, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) != HeaderSize+int(n) {
		return nil, api.ErrBadSize
	}
	return buf[HeaderSize:], nil
}
