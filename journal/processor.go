package journal

import (
	"context"
	"fmt"

	"github.com/pflow-xyz/go-presale/presale"
)

// Processor ties a dispatcher to a journal: commands the engine admits
// are appended; rejected commands leave the journal untouched.
type Processor struct {
	d     *presale.Dispatcher
	store Store
	seq   int
}

// NewProcessor builds a processor over a dispatcher and a store. The
// store is assumed to be at the sequence the engine state reflects; use
// Replay to build both from an existing journal.
func NewProcessor(d *presale.Dispatcher, store Store, seq int) *Processor {
	return &Processor{d: d, store: store, seq: seq}
}

// Process executes one command and journals it on success.
func (p *Processor) Process(ctx context.Context, cmd presale.Command) error {
	if err := p.d.Dispatch(cmd); err != nil {
		return err
	}
	seq, err := p.store.Append(ctx, p.seq, []*Entry{NewEntry(cmd)})
	if err != nil {
		return fmt.Errorf("journal admitted command %s: %w", cmd.Type, err)
	}
	p.seq = seq
	return nil
}

// Dispatcher exposes the underlying dispatcher for state reads.
func (p *Processor) Dispatcher() *presale.Dispatcher {
	return p.d
}

// Seq returns the journal's last sequence number (-1 when empty).
func (p *Processor) Seq() int {
	return p.seq
}

// Replay rebuilds an engine from the journal and returns a processor
// positioned at its tail. Events are suppressed during replay; attach
// the live sink afterwards via the engine's SetSink.
func Replay(ctx context.Context, store Store, opts ...presale.Option) (*Processor, error) {
	engine := presale.NewEngine(opts...)
	engine.SetSink(presale.NopSink{})
	d := presale.NewDispatcher(engine)

	entries, err := store.Read(ctx, 0)
	if err != nil {
		return nil, err
	}
	seq := -1
	for _, entry := range entries {
		if err := d.Dispatch(entry.Command); err != nil {
			return nil, fmt.Errorf("replay entry %d (%s): %w", entry.Seq, entry.Command.Type, err)
		}
		seq = entry.Seq
	}
	return NewProcessor(d, store, seq), nil
}
