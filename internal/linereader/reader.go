// Package linereader turns the raw byte stream of a pseudo-terminal into a
// sequence of complete text lines.
//
// Reads go through a cancelable reader so a blocked read on the pty master
// returns promptly when the session is stopped. Lines are handed over
// through a bounded queue; when the consumer falls behind the oldest
// pending line is dropped so memory stays bounded.
package linereader

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/muesli/cancelreader"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
)

// Defaults for Options.
const (
	DefaultMaxPending   = 512
	DefaultBufferSize   = 4096
	DefaultMaxLineBytes = 64 * 1024
)

// dropReportInterval limits how often drops are logged and reported.
const dropReportInterval = time.Second

// Options configures a Reader.
type Options struct {
	// MaxPending caps lines waiting to be consumed.
	MaxPending int
	// BufferSize is the size of a single read.
	BufferSize int
	// MaxLineBytes discards a partial line that grows past this size.
	MaxLineBytes int
	// OnEOF is called once when the source reports end of stream. Its
	// result becomes Err(); a nil result is a clean end of stream.
	OnEOF func() error
	// OnActivity is called after every successful read.
	OnActivity func()
	// OnDrop is called at most once per second while lines are being
	// dropped, with the drops since the previous call and the running total.
	OnDrop func(dropped, total uint64)
	Logger *logging.Logger
}

// Reader yields complete lines read from an io.Reader.
type Reader struct {
	src    cancelreader.CancelReader
	opts   Options
	lines  chan string
	logger *logging.Logger

	canceled atomic.Bool
	dropped  atomic.Uint64

	mu  sync.Mutex
	err error

	lastDropReport time.Time
	reportedDrops  uint64

	// discarding is set while the rest of an oversized line is skipped.
	// Only Run touches it.
	discarding bool
}

// New wraps r. Run must be called to start reading.
func New(r io.Reader, opts Options) (*Reader, error) {
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	cr, err := cancelreader.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cancelable reader")
	}

	return &Reader{
		src:    cr,
		opts:   opts,
		lines:  make(chan string, opts.MaxPending),
		logger: opts.Logger.WithComponent("linereader"),
	}, nil
}

// Lines returns the line sequence. The channel is closed when Run returns;
// Err then reports why.
func (r *Reader) Lines() <-chan string {
	return r.lines
}

// Err returns the terminal error once Lines is closed: nil for a clean end
// of stream or cancellation.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Dropped returns the number of lines discarded because the queue was full.
func (r *Reader) Dropped() uint64 {
	return r.dropped.Load()
}

// Cancel unblocks a pending read and ends Run. Safe to call more than once
// and from any goroutine.
func (r *Reader) Cancel() {
	if r.canceled.Swap(true) {
		return
	}
	r.src.Cancel()
}

// Run reads until end of stream, cancellation or ctx is done. It closes
// Lines before returning.
func (r *Reader) Run(ctx context.Context) {
	defer close(r.lines)
	defer r.src.Close()

	stop := context.AfterFunc(ctx, r.Cancel)
	defer stop()

	buf := make([]byte, r.opts.BufferSize)
	var partial []byte

	for {
		n, err := r.src.Read(buf)
		if n > 0 {
			if r.opts.OnActivity != nil {
				r.opts.OnActivity()
			}
			partial = r.split(append(partial, buf[:n]...))
		}
		if err == nil {
			continue
		}

		if r.canceled.Load() || errors.Is(err, cancelreader.ErrCanceled) {
			r.logger.Debug("read canceled", "discarded_bytes", len(partial))
			return
		}
		if !isEndOfStream(err) {
			r.setErr(errors.Wrap(err, "pty read failed"))
			r.logger.Error("pty read failed", "error", err.Error())
			return
		}

		if line := trimCR(partial); len(line) > 0 {
			r.push(string(line))
		}
		if r.opts.OnEOF != nil {
			r.setErr(r.opts.OnEOF())
		}
		r.logger.Debug("end of stream", "error", errString(r.Err()))
		return
	}
}

// split pushes every complete line in data and returns the remainder.
// Once a partial line outgrows MaxLineBytes everything up to and including
// its newline is dropped, so no tail of it is mistaken for a line.
func (r *Reader) split(data []byte) []byte {
	if r.discarding {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return nil
		}
		r.discarding = false
		data = data[i+1:]
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		r.push(string(trimCR(data[:i])))
		data = data[i+1:]
	}

	if len(data) > r.opts.MaxLineBytes {
		r.logger.Warn("discarding oversized partial line", "bytes", len(data))
		r.discarding = true
		return nil
	}
	// Compact so the backing array does not grow with the stream.
	return append([]byte(nil), data...)
}

// push enqueues a line, dropping the oldest pending one when full. Run is
// the only producer, so after one receive a send cannot block.
func (r *Reader) push(line string) {
	for {
		select {
		case r.lines <- line:
			return
		default:
		}
		select {
		case <-r.lines:
			r.noteDrop()
		default:
		}
	}
}

func (r *Reader) noteDrop() {
	total := r.dropped.Add(1)
	now := time.Now()
	if now.Sub(r.lastDropReport) < dropReportInterval {
		return
	}
	since := total - r.reportedDrops
	r.lastDropReport, r.reportedDrops = now, total

	r.logger.Warn("parser falling behind, dropped pending lines", "dropped", since, "total", total)
	if r.opts.OnDrop != nil {
		r.opts.OnDrop(since, total)
	}
}

func (r *Reader) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// isEndOfStream reports whether err means the writer side went away. A pty
// master returns EIO once the slave is closed.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

func trimCR(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte{'\r'})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
