// Package ipc implements the Zig build server's stdio framing.
//
// The server emits frames back-to-back on its standard output: an 8-byte
// header of tag and payload length (both little-endian uint32), then exactly
// length payload bytes. The client sends the same header format on the
// server's standard input. There is no inter-frame delimiter or alignment
// padding.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/techatrix/zigserve/errbundle"
)

// HeaderSize is the size of a frame header in bytes.
const HeaderSize = 8

// MaxPayloadSize is the sanity limit on a declared payload length (64 MiB).
// Error bundles are diagnostics, not artifacts; anything larger indicates a
// corrupted stream.
const MaxPayloadSize = 64 * 1024 * 1024

// Server-to-client frame tags.
const (
	// TagZigVersion carries the compiler's version string. Informational.
	TagZigVersion uint32 = 0
	// TagErrorBundle carries an encoded error bundle; the build failed.
	TagErrorBundle uint32 = 1
	// TagProgress carries UTF-8 progress text.
	TagProgress uint32 = 2
	// TagEmitBinPath carries a one-byte sub-tag followed by the artifact path.
	TagEmitBinPath uint32 = 3
)

// Client-to-server frame tags.
const (
	// TagExit tells the server to stop accepting commands.
	TagExit uint32 = 0
	// TagUpdate tells the server to run its default step once.
	TagUpdate uint32 = 1
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates the stream ended inside a frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a declared payload exceeding MaxPayloadSize.
	FrameErrorTooLarge
	// FrameErrorProtocol indicates a malformed payload, such as an error
	// bundle whose declared length disagrees with its sub-header.
	FrameErrorProtocol
)

// FrameError represents a frame decoding error. All kinds are fatal to the
// session; the serving protocol has no resynchronization point.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError returns true if err is a *FrameError.
func IsFrameError(err error) bool {
	var frameErr *FrameError
	return errors.As(err, &frameErr)
}

// Frame is one decoded unit of the server output stream. Payload aliases the
// reader's allocation for this frame only and is not retained by the reader.
type Frame struct {
	Tag     uint32
	Payload []byte
}

// FrameReader reassembles frames from a byte stream. A single read from the
// underlying transport may contain zero, one, or many complete frames plus a
// trailing partial frame; ReadFrame blocks until a whole frame is available,
// so the result is invariant under any chunking of the stream.
type FrameReader struct {
	reader io.Reader
}

// NewFrameReader creates a frame reader over r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{reader: r}
}

// ReadFrame reads a single frame.
//
// Errors:
//   - io.EOF: stream ended cleanly on a frame boundary
//   - *FrameError with Kind=FrameErrorPartial: stream ended mid-frame
//   - *FrameError with Kind=FrameErrorTooLarge: declared payload exceeds limit
func (r *FrameReader) ReadFrame() (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r.reader, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read frame header",
			Err:  err,
		}
	}

	tag := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	if length > MaxPayloadSize {
		return Frame{}, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", length, MaxPayloadSize),
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return Frame{}, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  fmt.Sprintf("failed to read %d payload bytes for tag %d", length, tag),
			Err:  err,
		}
	}

	return Frame{Tag: tag, Payload: payload}, nil
}

// AppendHeader appends an 8-byte frame header to buf.
func AppendHeader(buf []byte, tag, length uint32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, tag)
	return binary.LittleEndian.AppendUint32(buf, length)
}

// WriteHandshake writes the session-opening message pair: an update message
// telling the server to run its default step, immediately followed by an exit
// message telling it to stop listening for further commands. Both carry empty
// payloads, so the handshake is exactly 16 bytes.
func WriteHandshake(w io.Writer) error {
	buf := AppendHeader(nil, TagUpdate, 0)
	buf = AppendHeader(buf, TagExit, 0)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}
	return nil
}

// DecodeErrorBundle decodes a TagErrorBundle payload into a Bundle.
//
// The payload begins with two little-endian uint32 counts, extraWordCount and
// stringByteCount, followed by exactly extraWordCount little-endian words and
// stringByteCount string bytes. Any disagreement between the payload length
// and the counts is a protocol error; a partial decode is never returned.
func DecodeErrorBundle(payload []byte) (*errbundle.Bundle, error) {
	if len(payload) < 8 {
		return nil, &FrameError{
			Kind: FrameErrorProtocol,
			Msg:  fmt.Sprintf("error bundle payload too short: %d bytes", len(payload)),
		}
	}

	extraWordCount := binary.LittleEndian.Uint32(payload[0:4])
	stringByteCount := binary.LittleEndian.Uint32(payload[4:8])

	want := 8 + 4*uint64(extraWordCount) + uint64(stringByteCount)
	if uint64(len(payload)) != want {
		return nil, &FrameError{
			Kind: FrameErrorProtocol,
			Msg: fmt.Sprintf("error bundle length mismatch: %d words + %d string bytes need %d payload bytes, have %d",
				extraWordCount, stringByteCount, want, len(payload)),
		}
	}

	extra := make([]uint32, extraWordCount)
	for i := range extra {
		extra[i] = binary.LittleEndian.Uint32(payload[8+4*i:])
	}
	stringBytes := make([]byte, stringByteCount)
	copy(stringBytes, payload[8+4*int(extraWordCount):])

	return errbundle.New(extra, stringBytes), nil
}

// AppendErrorBundle appends a TagErrorBundle frame (header and payload) for
// the given buffers. It is the encoding counterpart of DecodeErrorBundle,
// used by tests and by bundle dump files.
func AppendErrorBundle(buf []byte, extra []uint32, stringBytes []byte) []byte {
	length := uint32(8 + 4*len(extra) + len(stringBytes))
	buf = AppendHeader(buf, TagErrorBundle, length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(extra)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(stringBytes)))
	for _, w := range extra {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	return append(buf, stringBytes...)
}

// DecodeEmitBinPath decodes a TagEmitBinPath payload: a one-byte sub-tag
// (skipped; its meaning is not enumerated by the transport) followed by the
// artifact's filesystem path as UTF-8 text.
func DecodeEmitBinPath(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", &FrameError{
			Kind: FrameErrorProtocol,
			Msg:  "emit bin path payload missing sub-tag byte",
		}
	}
	return string(payload[1:]), nil
}
