package blockfeed

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// maxMessageSize bounds a single feed message. A full block at the
// transaction size cap stays well under this.
const maxMessageSize = 64 * 1024 * 1024

// writeMessage writes a length-prefixed message to the stream with
// context cancellation support. Format: content size as little-endian
// uint32, then the content bytes.
func writeMessage(ctx context.Context, w io.Writer, content []byte) error {
	done := make(chan error, 1)
	go func() {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(content))); err != nil {
			done <- fmt.Errorf("write message size: %w", err)
			return
		}
		if _, err := w.Write(content); err != nil {
			done <- fmt.Errorf("write message content: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readMessage reads one length-prefixed message from the stream with
// context cancellation support.
func readMessage(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		content []byte
		err     error
	}
	done := make(chan result, 1)
	go func() {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			done <- result{nil, fmt.Errorf("read message size: %w", err)}
			return
		}
		if size > maxMessageSize {
			done <- result{nil, fmt.Errorf("message size %d exceeds limit", size)}
			return
		}
		content := make([]byte, size)
		if _, err := io.ReadFull(r, content); err != nil {
			done <- result{nil, fmt.Errorf("read message content: %w", err)}
			return
		}
		done <- result{content, nil}
	}()

	select {
	case res := <-done:
		return res.content, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
