// Package p2p carries the policy sub-protocol over libp2p streams.
package p2p

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/protocol"
)

const ProtocolID protocol.ID = "/contract-gate/policy/1.0.0"

const (
	frameHeaderSize = 5
	MaxPayloadSize  = 4 << 20
)

var ErrFrameTooLarge = errors.New("frame payload too large")

// WriteFrame writes code(1)|len(4, big endian)|payload in a single write.
func WriteFrame(w io.Writer, code uint8, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, frameHeaderSize+len(payload))
	buf[0] = code
	binary.BigEndian.PutUint32(buf[1:frameHeaderSize], uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame returns io.EOF unwrapped when the stream ends cleanly between
// frames.
func ReadFrame(r io.Reader) (uint8, []byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return hdr[0], payload, nil
}
