package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/relay/internal/config"
	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/eventloop"
	"github.com/dshills/relay/internal/logging"
	"github.com/dshills/relay/internal/luabind"
)

// rootCommand holds the state shared by every subcommand.
type rootCommand struct {
	cmd *cobra.Command

	configPath  string
	logLevel    string
	metricsAddr string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *event.Metrics
	server  *http.Server
}

func newRootCommand() *rootCommand {
	c := &rootCommand{}
	c.cmd = &cobra.Command{
		Use:   "relay",
		Short: "run event listener scripts and replay event logs",
		Long: `relay dispatches named events to listeners registered by exact name,
glob, or regular expression. Listeners are written in Lua.`,
		Version:            fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.persistentPreRunE,
		PersistentPostRunE: c.persistentPostRunE,
	}

	flags := c.cmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a YAML or TOML configuration file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address; overrides the config file")

	c.cmd.AddCommand(
		newRunCommand(c),
		newReplayCommand(c),
		newConfigCommand(c),
	)
	return c
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Addr = c.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.logger, err = logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	c.metrics, err = event.NewMetrics(promReg, cfg.Metrics.Namespace)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		c.serveMetrics(cmd.Context(), promReg, cfg.Metrics.Addr)
	}
	return nil
}

func (c *rootCommand) persistentPostRunE(*cobra.Command, []string) error {
	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.server.Shutdown(ctx)
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return nil
}

func (c *rootCommand) serveMetrics(ctx context.Context, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	c.logger.Info("serving metrics", zap.String("addr", addr))

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = c.server.Close()
	}()
}

// newRegistry builds a registry from the loaded configuration.
func (c *rootCommand) newRegistry() (*event.Registry, error) {
	opts, err := c.cfg.RegistryOptions(c.logger, c.metrics)
	if err != nil {
		return nil, err
	}
	opts = append(opts, event.WithPanicHandler(func(e event.Event, subID string, recovered any) {
		c.logger.Warn("listener panic recovered",
			zap.String("event", e.Name.String()),
			zap.String("subscription", subID),
			zap.Any("value", recovered),
		)
	}))
	return event.NewRegistry(opts...), nil
}

// session is one registry with a loop and a Lua state bound to it.
type session struct {
	reg     *event.Registry
	loop    *eventloop.Loop
	binding *luabind.Binding
}

func (c *rootCommand) newSession() (*session, error) {
	reg, err := c.newRegistry()
	if err != nil {
		return nil, err
	}
	loop := eventloop.New(eventloop.WithLogger(c.logger))
	return &session{
		reg:     reg,
		loop:    loop,
		binding: luabind.New(reg, loop, luabind.WithLogger(c.logger)),
	}, nil
}

func (s *session) Close() {
	s.binding.Close()
}
