package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/sextant/ipc"
	"github.com/pithecene-io/sextant/types"
)

// Recorder captures every accepted payload as a replayable record.
// Register Tap with the pipeline (session.Config.Taps).
type Recorder struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *ipc.FrameEncoder
	closer io.Closer
	now    func() time.Time
	count  int64
	err    error
}

// NewRecorder writes records to w.
func NewRecorder(w io.Writer) *Recorder {
	buf := bufio.NewWriter(w)
	rec := &Recorder{buf: buf, enc: ipc.NewFrameEncoder(buf), now: time.Now}
	if c, ok := w.(io.Closer); ok {
		rec.closer = c
	}
	return rec
}

// CreateRecorder creates (or truncates) path and records to it.
func CreateRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return NewRecorder(f), nil
}

// Tap records one payload. After the first write error the recorder stops
// and Err reports it.
func (r *Recorder) Tap(payload []byte, kind types.PacketType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	data, err := ipc.EncodeRecord(ipc.NewRecord(kind, payload, r.now()))
	if err != nil {
		r.err = err
		return
	}
	if err := r.enc.WriteFrame(data); err != nil {
		r.err = err
		return
	}
	r.count++
}

// Count returns the number of records written.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes and closes the underlying writer if it is a Closer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.buf.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
		r.closer = nil
	}
	if err != nil {
		return fmt.Errorf("close recording: %w", err)
	}
	return r.err
}
