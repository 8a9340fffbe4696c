package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cb "github.com/sushydev/circular_buffer_go"
	"github.com/sushydev/circular_buffer_go/stress"
)

type options struct {
	configPath string
	verbose    bool

	capacity stress.Size
	chunk    stress.Size
	read     stress.Size
	total    stress.Size
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ringstress",
		Short: "Stress a circular buffer with one producer and one consumer",
		Long: `ringstress writes chunks of an incrementing byte counter into a circular
buffer from one goroutine while another polls for data, reads it and checks
that no byte was lost, duplicated or reordered.

Sizes accept human readable values such as 4KiB or 1MB.

Examples:
  ringstress --capacity 256 --chunk 32 --read 64 --total 64KiB
  ringstress -c stress.yaml -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.Var(&opts.capacity, "capacity", "buffer capacity")
	flags.Var(&opts.chunk, "chunk", "bytes per write")
	flags.Var(&opts.read, "read", "bytes per read")
	flags.Var(&opts.total, "total", "bytes to transfer")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort the run after this long")

	return cmd
}

// Loads the config file (if any) and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *options) (stress.Config, error) {
	cfg := stress.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = stress.LoadConfig(opts.configPath); err != nil {
			return stress.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("capacity") {
		cfg.Capacity = opts.capacity
	}
	if flags.Changed("chunk") {
		cfg.ChunkSize = opts.chunk
	}
	if flags.Changed("read") {
		cfg.ReadSize = opts.read
	}
	if flags.Changed("total") {
		cfg.Total = opts.total
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, opts *options) error {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	buf, err := cb.NewCircularBuffer(int(cfg.Capacity))
	if err != nil {
		return fmt.Errorf("create buffer: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := (&stress.Runner{Log: log}).Run(ctx, cfg, buf)
	if err != nil {
		return err
	}

	log.WithFields(report.Fields()).Info("stress run passed")
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}
