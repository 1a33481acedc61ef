package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dogmatiq/linger"
	"github.com/seedtray/ledgertail"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.NewApp()
	app.Name = "ledgertail"
	app.Usage = "follow an append-only ledger of fixed-size records"
	app.ArgsUsage = "FILE"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "record-size, r",
			Usage: "size of one record in bytes (required)",
		},
		cli.Int64Flag{
			Name:  "offset, o",
			Usage: "byte offset to start reading from",
		},
		cli.DurationFlag{
			Name:  "interval, i",
			Usage: "minimum spacing between file length checks",
		},
		cli.BoolFlag{
			Name:  "wait, w",
			Usage: "wait for the file to appear instead of failing",
		},
		cli.Uint64Flag{
			Name:  "count, n",
			Usage: "stop after this many records (0 follows forever)",
		},
		cli.BoolFlag{
			Name:  "hex",
			Usage: "hex-dump records instead of writing raw bytes",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ledgertail:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one FILE argument is required")
	}
	size := c.Int("record-size")
	if size <= 0 {
		return errors.New("--record-size must be a positive number of bytes")
	}

	opts := []ledgertail.Option{
		ledgertail.WithStartOffset(c.Int64("offset")),
		ledgertail.WithPollInterval(linger.MustCoalesce(
			c.Duration("interval"),
			ledgertail.DefaultPollInterval,
		)),
	}
	if c.Bool("wait") {
		opts = append(opts, ledgertail.WithWaitForFile())
	}

	r, err := ledgertail.Open(c.Args().First(), int64(size), opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make(chan ledgertail.Record)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)
		return r.Follow(ctx, records)
	})

	g.Go(func() error {
		var n uint64
		for rec := range records {
			if err := emit(c.Bool("hex"), rec); err != nil {
				return err
			}
			n++
			if limit := c.Uint64("count"); limit > 0 && n >= limit {
				cancel()
				return nil
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func emit(asHex bool, rec ledgertail.Record) error {
	if asHex {
		_, err := fmt.Printf("%08x  %s\n", rec.Offset, hex.EncodeToString(rec.Data))
		return err
	}
	_, err := os.Stdout.Write(rec.Data)
	return err
}
