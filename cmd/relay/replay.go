package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/topic"
	"github.com/dshills/relay/internal/replay"
)

type replayCommand struct {
	root     *rootCommand
	script   string
	match    string
	annotate bool
	cont     bool
	hold     bool
}

func newReplayCommand(root *rootCommand) *cobra.Command {
	c := &replayCommand{root: root}
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "replay a JSONL event log",
		Long: `Replay emits every line of a JSONL event log through a registry.
Each line is {"event": "...", "args": [...]} and/or {"event": "...", "payload": {...}}.
Use "-" to read from standard input.`,
		Example: `  relay replay --script hooks.lua events.jsonl
  cat events.jsonl | relay replay --match 'user:*' --continue -`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&c.script, "script", "s", "", "Lua script registering listeners before the replay")
	flags.StringVar(&c.match, "match", "", "replay only events matching this identifier (glob, /regexp/ or name)")
	flags.BoolVar(&c.annotate, "annotate", false, "stamp the source line number into object payloads")
	flags.BoolVar(&c.cont, "continue", false, "keep going after a failing line")
	flags.BoolVar(&c.hold, "hold", false, "queue every emission and deliver them after the whole log is read; counts then reflect delivery")
	return cmd
}

// deliveryCounter forwards emissions and counts the failed ones.
type deliveryCounter struct {
	target event.Emitter
	failed int
}

func (d *deliveryCounter) Emit(ctx context.Context, name topic.Name, args ...any) error {
	err := d.target.Emit(ctx, name, args...)
	if err != nil {
		d.failed++
	}
	return err
}

func (c *replayCommand) options() ([]replay.Option, error) {
	opts := []replay.Option{replay.WithLogger(c.root.logger)}
	if c.annotate {
		opts = append(opts, replay.WithAnnotate())
	}
	if c.cont {
		opts = append(opts, replay.WithContinueOnError())
	}
	if c.match != "" {
		id, err := topic.Parse(c.match)
		if err != nil {
			return nil, fmt.Errorf("--match: %w", err)
		}
		switch v := id.(type) {
		case topic.Pattern:
			opts = append(opts, replay.WithMatch(v))
		case topic.Name:
			opts = append(opts, replay.WithMatch(topic.MustGlob(string(v))))
		}
	}
	return opts, nil
}

func (c *replayCommand) run(cmd *cobra.Command, args []string) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s, err := c.root.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var sum replay.Summary
	err = s.loop.Start(cmd.Context(), func(ctx context.Context) error {
		if c.script != "" {
			if err := s.binding.DoFile(ctx, c.script); err != nil {
				return err
			}
		}

		if !c.hold {
			var err error
			sum, err = replay.Run(ctx, in, s.reg, opts...)
			return err
		}

		counter := &deliveryCounter{target: s.reg}
		buf := event.NewBuffer(counter, c.root.cfg.BufferOptions()...)
		buf.Hold()

		var err error
		sum, err = replay.Run(ctx, in, buf, opts...)
		if err != nil && !c.cont {
			// queued emissions are dropped
			sum.Emitted = 0
			return err
		}
		err = multierr.Append(err, buf.Release(ctx))

		// counts reflect delivery, not queueing
		undelivered := counter.failed + buf.Len()
		sum.Emitted -= undelivered
		sum.Failed += undelivered
		return err
	})

	fmt.Fprintf(cmd.OutOrStdout(), "lines=%d emitted=%d skipped=%d failed=%d\n",
		sum.Lines, sum.Emitted, sum.Skipped, sum.Failed)
	return err
}
