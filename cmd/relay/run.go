package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/relay/internal/config"
)

type runCommand struct {
	root  *rootCommand
	watch bool
}

func newRunCommand(root *rootCommand) *cobra.Command {
	c := &runCommand{root: root}
	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "run a Lua listener script",
		Long: `Run a Lua script against a fresh registry. The script registers
listeners with relay.on and emits with relay.emit. The command returns when
the script and every task it deferred have finished.`,
		Example: `  relay run hooks.lua
  relay run --watch hooks.lua`,
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	cmd.Flags().BoolVarP(&c.watch, "watch", "w", false, "rerun the script whenever it changes")
	return cmd
}

func (c *runCommand) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	if !c.watch {
		return c.runScript(ctx, path)
	}

	changed := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- config.WatchFile(ctx, path, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}, config.WithErrorHandler(func(err error) {
			c.root.logger.Warn("watch error", zap.Error(err))
		}))
	}()

	logger := c.root.logger.With(zap.String("script", path))
	for {
		if err := c.runScript(ctx, path); err != nil {
			logger.Error("script failed", zap.Error(err))
		} else {
			logger.Info("script finished")
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case <-changed:
			logger.Info("script changed, rerunning")
		}
	}
}

func (c *runCommand) runScript(ctx context.Context, path string) error {
	s, err := c.root.newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	err = s.loop.Start(ctx, func(ctx context.Context) error {
		return s.binding.DoFile(ctx, path)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
