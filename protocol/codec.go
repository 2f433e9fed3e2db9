package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the type byte followed by the big-endian payload length.
	HeaderSize = 5

	// MaxPayloadSize bounds a single frame, larger headers are rejected
	// with ErrFrameTooLong.
	MaxPayloadSize = 1 << 20
)

// Encode prepends the frame header to payload.
func Encode(t PacketType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(t)
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode consumes every complete frame at the start of buf.
//
// Incomplete trailing bytes are returned in rest and are not an error, callers
// should prepend them to the next read. A header announcing more than
// MaxPayloadSize bytes stops decoding with ErrFrameTooLong; frames before it
// are still returned.
func Decode(buf []byte) (frames []Frame, rest []byte, err error) {
	for len(buf) >= HeaderSize {
		size := binary.BigEndian.Uint32(buf[1:HeaderSize])
		if size > MaxPayloadSize {
			return frames, buf, fmt.Errorf("%w: %v bytes", ErrFrameTooLong, size)
		}
		end := HeaderSize + int(size)
		if len(buf) < end {
			break
		}
		payload := make([]byte, size)
		copy(payload, buf[HeaderSize:end])
		frames = append(frames, Frame{Type: TypeFromByte(buf[0]), Payload: payload})
		buf = buf[end:]
	}
	return frames, buf, nil
}
