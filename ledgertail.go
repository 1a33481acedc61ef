// Package ledgertail reads fixed-size records from an append-only ledger
// file as they are written by another process.
//
// A Reader keeps a cursor into the file and a cached "known safe" length,
// the largest file length it has confirmed with a filesystem query. As long
// as the cache covers the next record, Next reads directly from the file
// with no filesystem query at all. Once the cache is exhausted the reader
// polls the file length, never more often than its poll interval, until a
// full record becomes available.
package ledgertail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"time"

	"github.com/dogmatiq/linger"
	"github.com/spf13/afero"
)

// DefaultPollInterval is the minimum spacing between file length queries
// unless overridden with WithPollInterval.
const DefaultPollInterval = 200 * time.Millisecond

// ErrTruncated indicates that the ledger file shrank below a length the
// reader had already confirmed. The append-only assumption no longer holds
// and the reader cannot tell which records it can trust, so the failure is
// permanent; a new reader must be constructed to resume.
var ErrTruncated = errors.New("ledger file truncated")

// ErrClosed is returned by Next after the reader has been closed.
var ErrClosed = errors.New("reader is closed")

// A Reader delivers consecutive fixed-size records from a single ledger
// file. It is not safe for concurrent use; the cursor and length cache are
// mutated without locking and correctness depends on sequential calls.
type Reader struct {
	fsys        afero.Fs
	name        string
	file        afero.File
	recordLen   int64
	cursor      int64
	safeLen     int64
	lastCheck   time.Time
	interval    time.Duration
	waitForFile bool
	counters    Counters
	closed      bool
	failed      error
}

// Open creates a Reader for the ledger file at name, delivering records of
// exactly recordLen bytes.
//
// Unless WithWaitForFile is given, the file must already exist and Open
// queries its length once so that a reader pointed at existing data never
// touches the filesystem again until that data is drained.
func Open(name string, recordLen int64, opts ...Option) (*Reader, error) {
	if recordLen <= 0 {
		return nil, fmt.Errorf("record length must be positive, got %d", recordLen)
	}

	r := &Reader{
		name:      name,
		recordLen: recordLen,
		interval:  DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cursor < 0 {
		return nil, fmt.Errorf("start offset must be non-negative, got %d", r.cursor)
	}

	if r.fsys == nil {
		r.fsys = afero.NewOsFs()
	}

	if r.waitForFile {
		return r, nil
	}

	f, err := r.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	r.file = f

	info, err := r.fsys.Stat(name)
	r.lastCheck = time.Now()
	if err != nil {
		f.Close()
		return nil, err
	}

	if info.Size() < r.cursor {
		f.Close()
		return nil, fmt.Errorf(
			"start offset %d is beyond the ledger length %d: %w",
			r.cursor, info.Size(), ErrTruncated,
		)
	}
	r.safeLen = info.Size()

	return r, nil
}

// Next returns the next record and advances the cursor past it. It blocks
// until a full record is present in the file, suspending for at most one
// poll interval at a time so that cancellation of ctx is observed promptly.
//
// Next never returns a partial record: bytes past the last whole record are
// presumed to belong to a record still being written. A truncation of the
// file below previously confirmed data fails with ErrTruncated and poisons
// the reader permanently. Other I/O errors are returned as-is and leave the
// cursor unchanged, so the caller may retry.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	if r.failed != nil {
		return nil, r.failed
	}
	if r.closed {
		return nil, ErrClosed
	}

	if err := r.ensureOpen(ctx); err != nil {
		return nil, err
	}

	for r.cursor+r.recordLen > r.safeLen {
		if err := r.refreshLength(ctx); err != nil {
			return nil, err
		}
	}

	rec := make([]byte, r.recordLen)
	if n, err := r.file.ReadAt(rec, r.cursor); int64(n) < r.recordLen {
		if err == nil || errors.Is(err, io.EOF) {
			// The file no longer holds data whose existence was already
			// confirmed, which only a truncation can explain.
			r.failed = fmt.Errorf(
				"record at offset %d vanished: %w",
				r.cursor, ErrTruncated,
			)
			return nil, r.failed
		}
		return nil, fmt.Errorf("could not read record at offset %d: %w", r.cursor, err)
	}

	r.cursor += r.recordLen
	inc(r.counters.Records, 1)

	return rec, nil
}

// Offset returns the offset of the next unread byte. It advances by the
// record length on every successful call to Next.
func (r *Reader) Offset() int64 {
	return r.cursor
}

// Close releases the file handle. Any call to Next after Close fails with
// ErrClosed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ensureOpen opens the ledger file if construction deferred it, polling for
// the file to appear under the same rate limit as length queries.
func (r *Reader) ensureOpen(ctx context.Context) error {
	for r.file == nil {
		f, err := r.fsys.Open(r.name)
		if err == nil {
			r.file = f
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := r.pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// refreshLength performs one throttled file length query, growing the
// known-safe length when a full additional record has appeared.
func (r *Reader) refreshLength(ctx context.Context) error {
	if err := r.throttle(ctx); err != nil {
		return err
	}

	info, err := r.fsys.Stat(r.name)
	r.lastCheck = time.Now()
	if err != nil {
		return fmt.Errorf("could not query ledger length: %w", err)
	}
	inc(r.counters.LengthQueries, 1)

	n := info.Size()
	if n < r.safeLen || n < r.cursor {
		r.failed = fmt.Errorf(
			"ledger shrank from %d to %d bytes: %w",
			max(r.safeLen, r.cursor), n, ErrTruncated,
		)
		return r.failed
	}

	if n >= r.cursor+r.recordLen {
		r.safeLen = n
	} else {
		inc(r.counters.WaitRounds, 1)
	}

	return nil
}

// throttle suspends until a full poll interval has elapsed since the last
// length query. A non-positive interval applies no minimum spacing but
// still yields to the scheduler between queries.
func (r *Reader) throttle(ctx context.Context) error {
	if r.interval <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
		return nil
	}
	return linger.SleepUntil(ctx, r.lastCheck.Add(r.interval))
}

// pause is the suspension used while waiting for the file to exist, where
// there is no last query time to anchor on.
func (r *Reader) pause(ctx context.Context) error {
	if r.interval <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
		return nil
	}
	return linger.Sleep(ctx, r.interval)
}
