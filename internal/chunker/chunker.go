// Package chunker splits large payloads into bounded-size frames for network
// transmission and reassembles them on the receiving side. Frames preserve
// byte order; the payload is treated as opaque bytes.
package chunker

import (
	"fmt"
	"io"
	"iter"
)

// DefaultFrameBytes is the frame size used when none is configured.
const DefaultFrameBytes = 64 << 10 // 64 KiB

// Split returns a lazy sequence of frames over payload, each at most
// frameSize bytes. Frames are subslices of payload; the sequence is finite
// and can be restarted by calling Split again. Split panics if frameSize
// is not positive, mirroring slice-bounds misuse.
func Split(payload []byte, frameSize int) iter.Seq[[]byte] {
	if frameSize <= 0 {
		panic(fmt.Sprintf("chunker: invalid frame size %d", frameSize))
	}
	return func(yield func([]byte) bool) {
		for off := 0; off < len(payload); off += frameSize {
			end := min(off+frameSize, len(payload))
			if !yield(payload[off:end]) {
				return
			}
		}
	}
}

// Reassemble concatenates frames in order into the original payload.
func Reassemble(frames [][]byte) []byte {
	var total int
	for _, f := range frames {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// ReaderFrames reads r to EOF, yielding frames of at most frameSize bytes in
// stream order. The second value is the read error, if any; after a non-nil
// error no further frames are yielded. Each yielded frame is only valid until
// the next iteration step.
func ReaderFrames(r io.Reader, frameSize int) iter.Seq2[[]byte, error] {
	if frameSize <= 0 {
		panic(fmt.Sprintf("chunker: invalid frame size %d", frameSize))
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, frameSize)
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
