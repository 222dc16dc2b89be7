package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/pflow-xyz/go-presale/commit"
	"github.com/pflow-xyz/go-presale/eventbus"
	"github.com/pflow-xyz/go-presale/eventlog"
	"github.com/pflow-xyz/go-presale/journal"
	"github.com/pflow-xyz/go-presale/presale"
)

func withStore(c *cli.Context, fn func(journal.Store) error) error {
	store, err := journal.NewSQLiteStore(c.GlobalString("journal"))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// regenerate re-dispatches the journal into a fresh engine with a
// recording sink, reproducing the sale's full event stream.
func regenerate(ctx context.Context, store journal.Store) ([]eventlog.Record, error) {
	rec := eventbus.NewRecorder()
	d := presale.NewDispatcher(presale.NewEngine(presale.WithSink(rec)))

	entries, err := store.Read(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := d.Dispatch(entry.Command); err != nil {
			return nil, fmt.Errorf("replay entry %d (%s): %w", entry.Seq, entry.Command.Type, err)
		}
	}

	events := rec.Events()
	records := make([]eventlog.Record, 0, len(events))
	for _, evt := range events {
		r, err := eventlog.FromEvent(evt)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "print the presale aggregate",
	Action: func(c *cli.Context) error {
		return withProcessor(c, func(proc *journal.Processor) error {
			engine := proc.Dispatcher().Engine()
			if !engine.Initialized() {
				return presale.ErrNotInitialized
			}
			return printJSON(c, engine.State())
		})
	},
}

var buyersCommand = cli.Command{
	Name:  "buyers",
	Usage: "print the buyer ledger",
	Action: func(c *cli.Context) error {
		return withProcessor(c, func(proc *journal.Processor) error {
			return printJSON(c, proc.Dispatcher().Engine().Buyers())
		})
	},
}

var eventsCommand = cli.Command{
	Name:  "events",
	Usage: "export the sale's event stream",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "out", Usage: "output file (default stdout)"},
		cli.BoolFlag{Name: "csv", Usage: "export CSV instead of JSON Lines"},
	},
	Action: func(c *cli.Context) error {
		return withStore(c, func(store journal.Store) error {
			records, err := regenerate(context.Background(), store)
			if err != nil {
				return err
			}

			out := c.App.Writer
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			if c.Bool("csv") {
				return eventlog.WriteCSV(out, records)
			}
			w := eventlog.NewWriter(out)
			for _, rec := range records {
				if err := w.Append(rec); err != nil {
					return err
				}
			}
			return w.Flush()
		})
	},
}

var summaryCommand = cli.Command{
	Name:  "summary",
	Usage: "print aggregate statistics over the event stream",
	Action: func(c *cli.Context) error {
		return withStore(c, func(store journal.Store) error {
			records, err := regenerate(context.Background(), store)
			if err != nil {
				return err
			}
			return printJSON(c, eventlog.NewLog(records).Summarize())
		})
	},
}

var commitCommand = cli.Command{
	Name:  "commit",
	Usage: "print the MiMC commitment root over the journal",
	Action: func(c *cli.Context) error {
		return withStore(c, func(store journal.Store) error {
			entries, err := store.Read(context.Background(), 0)
			if err != nil {
				return err
			}
			root, err := commit.Chain(entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "entries: %d\nroot: %s\n", len(entries), root.Hex())
			return nil
		})
	},
}
