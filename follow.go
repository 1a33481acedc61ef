package ledgertail

import (
	"context"
)

// A Record is one fixed-size ledger entry together with the offset of its
// first byte.
type Record struct {
	Offset int64
	Data   []byte
}

// Follow bridges the reader's pull interface to a push-based channel: it
// repeatedly calls Next and forwards each record to out, in order, until
// ctx is canceled or Next fails. It returns the error that stopped it and
// never closes out, so several followers could feed a shared channel in
// turn.
//
// Follow drives the reader itself; do not call Next concurrently with it.
func (r *Reader) Follow(ctx context.Context, out chan<- Record) error {
	for {
		offset := r.Offset()

		data, err := r.Next(ctx)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- Record{Offset: offset, Data: data}:
		}
	}
}
