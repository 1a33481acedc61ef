package ledgertail

import (
	"log"
	"os"
	"strconv"
	"sync/atomic"
)

// DefaultLogRate is how many samples a Counter accumulates between summary
// log lines when no explicit rate is configured. It can be overridden with
// the LEDGERTAIL_DEFAULT_LOG_RATE environment variable.
const DefaultLogRate = 1000

const envDefaultLogRate = "LEDGERTAIL_DEFAULT_LOG_RATE"

// A Counter accumulates event counts and emits a summary log line once
// every LogRate samples, so that a hot path can be instrumented without
// producing a log line per event. The zero value is usable; all methods are
// safe for concurrent use.
type Counter struct {
	// Name identifies the counter in its log output.
	Name string

	// LogRate is the number of samples between summary lines. Zero falls
	// back to DefaultLogRate (or the environment override).
	LogRate uint64

	// Printf is the log destination. Nil means the standard logger.
	Printf func(format string, args ...any)

	counts  atomic.Uint64
	times   atomic.Uint64
	lastlog atomic.Uint64
	lograte atomic.Uint64
}

// Inc adds events occurrences to the counter as a single sample.
func (c *Counter) Inc(events uint64) {
	counts := c.counts.Add(events)
	times := c.times.Add(1)

	rate := c.lograte.Load()
	if rate == 0 {
		rate = c.LogRate
		if rate == 0 {
			rate = defaultLogRate()
		}
		c.lograte.Store(rate)
	}

	if times%rate == 0 {
		last := c.lastlog.Swap(counts)
		c.printf(
			`COUNTER:{"name": %q, "counts": %d, "samples": %d, "delta": %d, "events": %d}`,
			c.Name, counts, times, counts-last, events,
		)
	}
}

// Count returns the total number of events recorded so far.
func (c *Counter) Count() uint64 {
	return c.counts.Load()
}

// Samples returns how many times Inc has been called.
func (c *Counter) Samples() uint64 {
	return c.times.Load()
}

func (c *Counter) printf(format string, args ...any) {
	if c.Printf != nil {
		c.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func defaultLogRate() uint64 {
	if v := os.Getenv(envDefaultLogRate); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return DefaultLogRate
}

// Counters groups the optional counters a Reader feeds while it runs.
type Counters struct {
	// LengthQueries counts filesystem length queries.
	LengthQueries *Counter

	// Records counts records delivered to the caller.
	Records *Counter

	// WaitRounds counts length queries that found no complete new record.
	WaitRounds *Counter
}

func inc(c *Counter, events uint64) {
	if c != nil {
		c.Inc(events)
	}
}
