package ledgertail

import (
	"time"

	"github.com/spf13/afero"
)

// An Option configures a Reader at construction time.
type Option func(*Reader)

// WithStartOffset sets the byte offset the reader starts delivering records
// from. The default is 0, the beginning of the file. Record boundaries are
// counted from this offset.
func WithStartOffset(offset int64) Option {
	return func(r *Reader) {
		r.cursor = offset
	}
}

// WithPollInterval sets the minimum spacing between file length queries.
// The default is DefaultPollInterval. A non-positive interval removes the
// rate limit entirely; the reader then re-queries as fast as the scheduler
// allows.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		r.interval = d
	}
}

// WithWaitForFile makes the reader tolerate the ledger file not existing
// yet. Open succeeds immediately and the first call to Next polls for the
// file to appear, under the same rate limit as length queries. Without this
// option, Open fails if the file does not exist.
func WithWaitForFile() Option {
	return func(r *Reader) {
		r.waitForFile = true
	}
}

// WithFs makes the reader operate on the given filesystem instead of the
// operating system's.
func WithFs(fsys afero.Fs) Option {
	return func(r *Reader) {
		r.fsys = fsys
	}
}

// WithCounters attaches counters that observe the reader's activity. Nil
// fields are simply not counted.
func WithCounters(c Counters) Option {
	return func(r *Reader) {
		r.counters = c
	}
}
